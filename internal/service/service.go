// Package service provides business logic for template management. It is
// the single entry point the CLI and HTTP layers talk to; storage is
// injected, never reached around.
package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	apperrors "github.com/dpshade/prompt-catalog/internal/errors"
	"github.com/dpshade/prompt-catalog/internal/importer"
	"github.com/dpshade/prompt-catalog/internal/models"
	"github.com/dpshade/prompt-catalog/internal/renderer"
	"github.com/dpshade/prompt-catalog/internal/storage"
	"github.com/dpshade/prompt-catalog/internal/validation"
)

// ExportFormat identifies a supported export serialization.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
)

// Service provides business logic for template management
type Service struct {
	storage   *storage.Storage
	validator *validation.Validator
}

// NewService creates a new service instance rooted at rootDir (empty means
// the storage default, ~/.prompt-catalog).
func NewService(rootDir string) (*Service, error) {
	store, err := storage.NewStorage(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &Service{
		storage:   store,
		validator: validation.NewValidator(),
	}, nil
}

// InitLibrary initializes the on-disk library structure
func (s *Service) InitLibrary() error {
	return s.storage.InitLibrary()
}

// BaseDir returns the data directory in use
func (s *Service) BaseDir() string {
	return s.storage.GetBaseDir()
}

// ListTemplates returns all templates ordered stably by name
func (s *Service) ListTemplates() ([]*models.Template, error) {
	templates, err := s.storage.List()
	if err != nil {
		return nil, err
	}
	models.SortByName(templates)
	return templates, nil
}

// GetTemplate returns a template by id
func (s *Service) GetTemplate(id string) (*models.Template, error) {
	return s.storage.Get(id)
}

// SaveTemplate validates and upserts a template. The id is always derived
// from the name; an existing record with the same id is overwritten in
// place, keeping its creation time. Every save appends one version
// snapshot.
func (s *Service) SaveTemplate(t *models.Template) (*models.Template, error) {
	record := t.Clone()
	if record.Status == "" {
		record.Status = models.StatusDraft
	}
	if record.ID == "" {
		record.ID = models.Slugify(record.Name)
	}

	if result := s.validator.ValidateTemplate(record); !result.Valid {
		return nil, result.ToAppError()
	}

	now := time.Now().UTC()
	record.UpdatedAt = now
	if existing, err := s.storage.Get(record.ID); err == nil {
		record.CreatedAt = existing.CreatedAt
	} else if isNotFound(err) {
		record.CreatedAt = now
	} else {
		return nil, err
	}

	return s.storage.Upsert(record)
}

// DeleteTemplate removes a template by id. Its snapshots are retained.
func (s *Service) DeleteTemplate(id string) error {
	return s.storage.Delete(id)
}

// DuplicateTemplate copies a record under a derived "-copy" identity with
// fresh timestamps.
func (s *Service) DuplicateTemplate(id string) (*models.Template, error) {
	original, err := s.storage.Get(id)
	if err != nil {
		return nil, err
	}

	dup := original.Clone()
	dup.Name = original.Name + " (Copy)"
	dup.ID = models.Slugify(dup.Name)
	now := time.Now().UTC()
	dup.CreatedAt = now
	dup.UpdatedAt = now

	return s.storage.Upsert(dup)
}

// FilterTemplates returns the subset matching every supplied criterion,
// ordered stably by name.
func (s *Service) FilterTemplates(q models.Query) ([]*models.Template, error) {
	templates, err := s.storage.List()
	if err != nil {
		return nil, err
	}

	var filtered []*models.Template
	for _, t := range templates {
		if q.Matches(t) {
			filtered = append(filtered, t)
		}
	}
	models.SortByName(filtered)
	return filtered, nil
}

// SearchTemplates performs fuzzy free-text search over the catalog,
// returning matches in relevance order.
func (s *Service) SearchTemplates(query string) ([]*models.Template, error) {
	templates, err := s.ListTemplates()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return templates, nil
	}

	var searchStrings []string
	for _, t := range templates {
		searchStr := fmt.Sprintf("%s %s %s %s %s",
			t.Name,
			t.Description,
			t.UseCase,
			strings.Join(t.Tags, " "),
			t.Owner)
		searchStrings = append(searchStrings, searchStr)
	}

	matches := fuzzy.Find(query, searchStrings)

	var results []*models.Template
	for _, match := range matches {
		results = append(results, templates[match.Index])
	}
	return results, nil
}

// ListTags returns all unique tags across the catalog, sorted
func (s *Service) ListTags() ([]string, error) {
	templates, err := s.storage.List()
	if err != nil {
		return nil, err
	}

	tagMap := make(map[string]bool)
	for _, t := range templates {
		for _, tag := range t.Tags {
			tagMap[tag] = true
		}
	}

	tags := make([]string, 0, len(tagMap))
	for tag := range tagMap {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Import parses a payload, merges the rows into the store by slugified id,
// and archives a raw copy of the payload. Existing records are updated in
// place: fields the row carries overwrite, fields it leaves blank survive.
func (s *Service) Import(data []byte, format importer.Format) (*importer.Result, error) {
	imp := importer.New()
	templates, warnings, err := imp.Parse(data, format)
	if err != nil {
		return nil, apperrors.ImportError(string(format), err)
	}

	result := &importer.Result{Warnings: warnings}
	now := time.Now().UTC()

	for _, incoming := range templates {
		existing, err := s.storage.Get(incoming.ID)
		switch {
		case err == nil:
			merged := existing.Clone()
			merged.Merge(incoming)
			merged.UpdatedAt = now
			if _, err := s.storage.Upsert(merged); err != nil {
				return nil, err
			}
			result.Updated++
		case isNotFound(err):
			incoming.CreatedAt = now
			incoming.UpdatedAt = now
			if _, err := s.storage.Upsert(incoming); err != nil {
				return nil, err
			}
			result.Created++
		default:
			return nil, err
		}
	}

	archivePath, err := s.storage.RecordImport(data, string(format))
	if err != nil {
		// The merge already succeeded; losing the traceability copy is a
		// warning, not a failed import.
		result.Warnings = append(result.Warnings, importer.Warning{
			Message: fmt.Sprintf("failed to archive import payload: %v", err),
		})
	} else {
		result.ArchivePath = archivePath
	}

	return result, nil
}

// Export serializes the whole collection to the requested format
func (s *Service) Export(format ExportFormat) ([]byte, error) {
	col, err := s.storage.Load()
	if err != nil {
		return nil, err
	}
	models.SortByName(col.Templates)
	return marshalExport(col, format)
}

// ExportTemplate serializes a single record, wrapped in the same
// {"templates": [...]} envelope the importer accepts.
func (s *Service) ExportTemplate(id string, format ExportFormat) ([]byte, error) {
	t, err := s.storage.Get(id)
	if err != nil {
		return nil, err
	}

	payload := struct {
		Templates []*models.Template `json:"templates" yaml:"templates"`
	}{Templates: []*models.Template{t}}

	return marshalExport(payload, format)
}

func marshalExport(payload interface{}, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportJSON:
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to serialize export: %w", err)
		}
		return append(data, '\n'), nil
	case ExportYAML:
		data, err := yaml.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize export: %w", err)
		}
		return data, nil
	}
	return nil, apperrors.ValidationError(fmt.Sprintf("Unsupported export format '%s'", format))
}

// RenderTemplate renders a stored template with the supplied variable
// values. Missing values fall back to declared defaults; anything still
// unresolved is left verbatim.
func (s *Service) RenderTemplate(id string, values map[string]string, asJSON bool) (string, error) {
	t, err := s.storage.Get(id)
	if err != nil {
		return "", err
	}

	r := renderer.NewRenderer(t)
	if asJSON {
		return r.RenderJSON(values)
	}
	return r.RenderText(values), nil
}

// ListVersions returns the snapshot history for one id, oldest first
func (s *Service) ListVersions(id string) ([]storage.VersionInfo, error) {
	return s.storage.ListVersions(id)
}

// GetVersion loads one snapshot by file name
func (s *Service) GetVersion(file string) (*storage.Snapshot, error) {
	return s.storage.LoadVersion(file)
}

// UndeclaredPlaceholders lists placeholders referenced in a record's text
// blocks but missing from its declared variables.
func (s *Service) UndeclaredPlaceholders(id string) ([]string, error) {
	t, err := s.storage.Get(id)
	if err != nil {
		return nil, err
	}
	return renderer.UndeclaredPlaceholders(t), nil
}

func isNotFound(err error) bool {
	return apperrors.GetAppError(err).Code == apperrors.ErrCodeNotFound
}
