// Package storage handles all file system operations for the template
// collection, its version snapshots, and the import archive.
//
// Layout under the root directory:
//
//	templates.json      authoritative collection file
//	versions/           one immutable snapshot per save, <id>-<timestamp>.json
//	imports/            raw copies of imported payloads for traceability
//
// The collection file is always written atomically (temp file + rename) so a
// crash mid-save never leaves a corrupt store. Snapshots are append-only and
// never rewritten.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/dpshade/prompt-catalog/internal/errors"
	"github.com/dpshade/prompt-catalog/internal/models"
)

const (
	collectionFile = "templates.json"
	versionsDir    = "versions"
	importsDir     = "imports"

	snapshotTimeLayout = "20060102-150405"
)

// Collection is the on-disk shape of the authoritative store.
type Collection struct {
	Meta      Meta               `json:"meta" yaml:"meta"`
	Templates []*models.Template `json:"templates" yaml:"templates"`
}

// Meta carries collection-level bookkeeping.
type Meta struct {
	Version   int       `json:"version" yaml:"version"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Snapshot is the on-disk shape of one version snapshot file.
type Snapshot struct {
	SavedAt  time.Time        `json:"saved_at"`
	Template *models.Template `json:"template"`
}

// VersionInfo describes one snapshot file without its full contents.
type VersionInfo struct {
	File    string        `json:"file"`
	ID      string        `json:"id"`
	SavedAt time.Time     `json:"saved_at"`
	Name    string        `json:"name"`
	Status  models.Status `json:"status"`
}

// Storage handles file system operations for the template collection
type Storage struct {
	rootPath string
}

// NewStorage creates a new storage instance rooted at rootPath, defaulting
// to ~/.prompt-catalog when empty.
func NewStorage(rootPath string) (*Storage, error) {
	if rootPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		rootPath = filepath.Join(homeDir, ".prompt-catalog")
	}

	s := &Storage{rootPath: rootPath}
	if err := s.InitLibrary(); err != nil {
		return nil, err
	}
	return s, nil
}

// InitLibrary creates the directory structure for a template library
func (s *Storage) InitLibrary() error {
	dirs := []string{
		s.rootPath,
		filepath.Join(s.rootPath, versionsDir),
		filepath.Join(s.rootPath, importsDir),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// GetBaseDir returns the root path of the storage
func (s *Storage) GetBaseDir() string {
	return s.rootPath
}

func (s *Storage) collectionPath() string {
	return filepath.Join(s.rootPath, collectionFile)
}

// Load reads the collection from disk, returning an empty skeleton when the
// collection file does not exist yet.
func (s *Storage) Load() (*Collection, error) {
	data, err := os.ReadFile(s.collectionPath())
	if os.IsNotExist(err) {
		return &Collection{
			Meta:      Meta{Version: 1, UpdatedAt: time.Now().UTC()},
			Templates: []*models.Template{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}

	var col Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeFileCorrupted, "Collection file is not valid JSON")
	}
	if col.Templates == nil {
		col.Templates = []*models.Template{}
	}

	return &col, nil
}

// save persists the collection atomically: the new contents are written to a
// temp file in the same directory and renamed over the collection file.
func (s *Storage) save(col *Collection) error {
	col.Meta.UpdatedAt = time.Now().UTC()
	if col.Meta.Version == 0 {
		col.Meta.Version = 1
	}

	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize collection: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.rootPath, ".templates-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, s.collectionPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace collection file: %w", err)
	}

	return nil
}

// List returns all current templates in the collection
func (s *Storage) List() ([]*models.Template, error) {
	col, err := s.Load()
	if err != nil {
		return nil, err
	}
	return col.Templates, nil
}

// Get returns the template with the given id
func (s *Storage) Get(id string) (*models.Template, error) {
	col, err := s.Load()
	if err != nil {
		return nil, err
	}

	for _, t := range col.Templates {
		if t.ID == id {
			return t, nil
		}
	}

	return nil, apperrors.NotFoundError(fmt.Sprintf("Template '%s'", id))
}

// Upsert writes or overwrites a template by id, persists the whole
// collection, and appends exactly one version snapshot for the record.
// Returns the stored template.
func (s *Storage) Upsert(t *models.Template) (*models.Template, error) {
	col, err := s.Load()
	if err != nil {
		return nil, err
	}

	stored := t.Clone()
	replaced := false
	for i, existing := range col.Templates {
		if existing.ID == stored.ID {
			col.Templates[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		col.Templates = append(col.Templates, stored)
	}

	if err := s.save(col); err != nil {
		return nil, err
	}

	if _, err := s.writeSnapshot(stored); err != nil {
		return nil, err
	}

	return stored, nil
}

// Delete removes a template from the collection. Snapshots of the deleted
// template stay on disk; history is purely additive.
func (s *Storage) Delete(id string) error {
	col, err := s.Load()
	if err != nil {
		return err
	}

	kept := col.Templates[:0]
	found := false
	for _, t := range col.Templates {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return apperrors.NotFoundError(fmt.Sprintf("Template '%s'", id))
	}
	col.Templates = kept

	return s.save(col)
}

// writeSnapshot writes one immutable version snapshot for the template.
// File names encode the id and save time; a numeric suffix keeps names
// unique when two saves land in the same second.
func (s *Storage) writeSnapshot(t *models.Template) (string, error) {
	snap := Snapshot{
		SavedAt:  time.Now().UTC(),
		Template: t,
	}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	data = append(data, '\n')

	base := fmt.Sprintf("%s-%s", t.ID, snap.SavedAt.Format(snapshotTimeLayout))
	name := base + ".json"
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(s.rootPath, versionsDir, name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s-%d.json", base, n)
	}

	path := filepath.Join(s.rootPath, versionsDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot file: %w", err)
	}

	return name, nil
}

// ListVersions returns snapshot descriptors for one template id, oldest
// first. Each snapshot file is read to match on the stored id rather than
// trusting filename prefixes, since ids themselves may contain hyphens.
func (s *Storage) ListVersions(id string) ([]VersionInfo, error) {
	dir := filepath.Join(s.rootPath, versionsDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []VersionInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read versions directory: %w", err)
	}

	var versions []VersionInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if !strings.HasPrefix(entry.Name(), id+"-") {
			continue
		}

		snap, err := s.LoadVersion(entry.Name())
		if err != nil {
			// Skip unreadable snapshots but keep listing the rest
			fmt.Fprintf(os.Stderr, "Warning: failed to load snapshot %s: %v\n", entry.Name(), err)
			continue
		}
		if snap.Template == nil || snap.Template.ID != id {
			continue
		}

		versions = append(versions, VersionInfo{
			File:    entry.Name(),
			ID:      snap.Template.ID,
			SavedAt: snap.SavedAt,
			Name:    snap.Template.Name,
			Status:  snap.Template.Status,
		})
	}

	sort.Slice(versions, func(i, j int) bool {
		if !versions[i].SavedAt.Equal(versions[j].SavedAt) {
			return versions[i].SavedAt.Before(versions[j].SavedAt)
		}
		return versions[i].File < versions[j].File
	})

	return versions, nil
}

// LoadVersion reads one snapshot file by name.
func (s *Storage) LoadVersion(file string) (*Snapshot, error) {
	// Snapshot names are generated by writeSnapshot; reject path traversal
	if file != filepath.Base(file) {
		return nil, apperrors.ValidationError("Invalid snapshot file name")
	}

	data, err := os.ReadFile(filepath.Join(s.rootPath, versionsDir, file))
	if os.IsNotExist(err) {
		return nil, apperrors.NotFoundError(fmt.Sprintf("Snapshot '%s'", file))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeFileCorrupted, "Snapshot file is not valid JSON")
	}

	return &snap, nil
}

// RecordImport persists a raw copy of an imported payload for traceability.
// Returns the path of the stored copy.
func (s *Storage) RecordImport(payload []byte, extension string) (string, error) {
	ext := strings.TrimPrefix(extension, ".")
	if ext == "" {
		ext = "dat"
	}

	base := fmt.Sprintf("import-%d", time.Now().UTC().Unix())
	name := fmt.Sprintf("%s.%s", base, ext)
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(s.rootPath, importsDir, name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s-%d.%s", base, n, ext)
	}

	path := filepath.Join(s.rootPath, importsDir, name)
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return "", fmt.Errorf("failed to archive import payload: %w", err)
	}

	return path, nil
}
