// Package validation maps loosely-shaped input into validated template
// records before any merge or save logic runs.
//
// Field-level checks (required name, known status) are declared as
// validate struct tags on the model and evaluated by
// go-playground/validator; record-level rules that tags cannot express
// (id/slug agreement, unique variable names) are applied on top. Failures
// convert to the shared AppError taxonomy via ValidationResult.ToAppError().
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/dpshade/prompt-catalog/internal/errors"
	"github.com/dpshade/prompt-catalog/internal/models"
)

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationResult represents the result of validating one record
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ToAppError converts a failed result into an AppError for the interface
// layers. Returns nil for a valid result.
func (r *ValidationResult) ToAppError() *apperrors.AppError {
	if r.Valid {
		return nil
	}

	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}

	appErr := apperrors.ValidationError(strings.Join(messages, "; "))
	for _, e := range r.Errors {
		appErr.WithContext(e.Field, e.Code)
	}
	return appErr
}

// Validator validates template records
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateTemplate checks one record against the field tags on the model
// plus the record-level invariants of the store.
func (v *Validator) ValidateTemplate(t *models.Template) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if err := v.validate.Struct(t); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				result.Valid = false
				result.Errors = append(result.Errors, convertFieldError(fe))
			}
		} else {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   "record",
				Code:    "INVALID_RECORD",
				Message: err.Error(),
			})
		}
	}

	// The id is derived state; a record whose id disagrees with its name's
	// slug would break merge-by-id on the next import.
	if t.Name != "" && t.ID != "" && t.ID != models.Slugify(t.Name) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   "id",
			Code:    "ID_SLUG_MISMATCH",
			Message: fmt.Sprintf("id %q does not match slug of name (%q)", t.ID, models.Slugify(t.Name)),
			Value:   t.ID,
		})
	}

	seen := make(map[string]bool, len(t.Variables))
	for _, variable := range t.Variables {
		if variable.Name == "" {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   "variables",
				Code:    "MISSING_VARIABLE_NAME",
				Message: "variable without a name",
			})
			continue
		}
		if seen[variable.Name] {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   "variables",
				Code:    "DUPLICATE_VARIABLE",
				Message: fmt.Sprintf("variable %q declared more than once", variable.Name),
				Value:   variable.Name,
			})
		}
		seen[variable.Name] = true
	}

	return result
}

// convertFieldError maps a go-playground field error to the result shape
func convertFieldError(fe validator.FieldError) ValidationError {
	switch fe.Tag() {
	case "required":
		return ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Code:    "REQUIRED_FIELD_MISSING",
			Message: fmt.Sprintf("Field '%s' is required", strings.ToLower(fe.Field())),
		}
	case "oneof":
		return ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Code:    "INVALID_OPTION",
			Message: fmt.Sprintf("Field '%s' must be one of: %s", strings.ToLower(fe.Field()), fe.Param()),
			Value:   fe.Value(),
		}
	default:
		return ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Code:    "INVALID_VALUE",
			Message: fmt.Sprintf("Field '%s' failed %s validation", strings.ToLower(fe.Field()), fe.Tag()),
			Value:   fe.Value(),
		}
	}
}
