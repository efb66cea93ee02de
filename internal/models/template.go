package models

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Status describes the review state of a template.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusApproved   Status = "approved"
	StatusDeprecated Status = "deprecated"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusDeprecated:
		return true
	}
	return false
}

// Variable is a named placeholder a template's text blocks may reference.
type Variable struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
}

// Safety holds usage guidance attached to a template.
type Safety struct {
	Do   []string `json:"do,omitempty" yaml:"do,omitempty"`
	Dont []string `json:"dont,omitempty" yaml:"dont,omitempty"`
}

// Template represents one prompt template record with its metadata and
// text blocks. The ID is the slug of the name and is the unique key
// within the store.
type Template struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name" validate:"required"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	UseCase     string     `json:"use_case,omitempty" yaml:"use_case,omitempty"`
	Audience    string     `json:"audience,omitempty" yaml:"audience,omitempty"`
	Tone        string     `json:"tone,omitempty" yaml:"tone,omitempty"`
	ModelFamily string     `json:"model_family,omitempty" yaml:"model_family,omitempty"`
	Owner       string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	Status      Status     `json:"status" yaml:"status" validate:"omitempty,oneof=draft approved deprecated"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Variables   []Variable `json:"variables,omitempty" yaml:"variables,omitempty"`
	System      string     `json:"system,omitempty" yaml:"system,omitempty"`
	User        string     `json:"user,omitempty" yaml:"user,omitempty"`
	Tools       string     `json:"tools,omitempty" yaml:"tools,omitempty"`
	Safety      Safety     `json:"safety,omitempty" yaml:"safety,omitempty"`
	Evaluation  string     `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
	References  []string   `json:"references,omitempty" yaml:"references,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Slugify derives the id-safe key used to identify a template. Lowercase,
// non-alphanumerics collapsed to hyphens; applying it twice is a no-op.
func Slugify(name string) string {
	return slug.Make(name)
}

// Clone returns a deep copy of the template. Snapshots and duplicates must
// not share slice memory with the live record.
func (t *Template) Clone() *Template {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.Variables = append([]Variable(nil), t.Variables...)
	c.References = append([]string(nil), t.References...)
	c.Safety.Do = append([]string(nil), t.Safety.Do...)
	c.Safety.Dont = append([]string(nil), t.Safety.Dont...)
	return &c
}

// HasTag reports whether the template carries the given tag (case-insensitive).
func (t *Template) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if strings.EqualFold(have, tag) {
			return true
		}
	}
	return false
}

// VariableDefaults returns the declared default value for each variable
// that has one, keyed by variable name.
func (t *Template) VariableDefaults() map[string]string {
	defaults := make(map[string]string)
	for _, v := range t.Variables {
		if v.Default != "" {
			defaults[v.Name] = v.Default
		}
	}
	return defaults
}

// Merge overlays the fields present in overlay onto t, preserving fields the
// overlay leaves empty. This is the merge-by-id semantics used when an import
// row matches an existing record: present fields overwrite, absent fields
// survive. Identity and creation time always come from the existing record.
func (t *Template) Merge(overlay *Template) {
	if overlay.Name != "" {
		t.Name = overlay.Name
	}
	if overlay.Description != "" {
		t.Description = overlay.Description
	}
	if overlay.UseCase != "" {
		t.UseCase = overlay.UseCase
	}
	if overlay.Audience != "" {
		t.Audience = overlay.Audience
	}
	if overlay.Tone != "" {
		t.Tone = overlay.Tone
	}
	if overlay.ModelFamily != "" {
		t.ModelFamily = overlay.ModelFamily
	}
	if overlay.Owner != "" {
		t.Owner = overlay.Owner
	}
	if overlay.Status != "" {
		t.Status = overlay.Status
	}
	if len(overlay.Tags) > 0 {
		t.Tags = append([]string(nil), overlay.Tags...)
	}
	if len(overlay.Variables) > 0 {
		t.Variables = append([]Variable(nil), overlay.Variables...)
	}
	if overlay.System != "" {
		t.System = overlay.System
	}
	if overlay.User != "" {
		t.User = overlay.User
	}
	if overlay.Tools != "" {
		t.Tools = overlay.Tools
	}
	if len(overlay.Safety.Do) > 0 {
		t.Safety.Do = append([]string(nil), overlay.Safety.Do...)
	}
	if len(overlay.Safety.Dont) > 0 {
		t.Safety.Dont = append([]string(nil), overlay.Safety.Dont...)
	}
	if overlay.Evaluation != "" {
		t.Evaluation = overlay.Evaluation
	}
	if len(overlay.References) > 0 {
		t.References = append([]string(nil), overlay.References...)
	}
}
