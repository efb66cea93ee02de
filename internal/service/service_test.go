package service

import (
	"strings"
	"testing"

	apperrors "github.com/dpshade/prompt-catalog/internal/errors"
	"github.com/dpshade/prompt-catalog/internal/importer"
	"github.com/dpshade/prompt-catalog/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc
}

func TestSaveTemplateDerivesID(t *testing.T) {
	svc := newTestService(t)

	stored, err := svc.SaveTemplate(&models.Template{Name: "Launch Email"})
	if err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}
	if stored.ID != "launch-email" {
		t.Errorf("expected id 'launch-email', got %q", stored.ID)
	}
	if stored.Status != models.StatusDraft {
		t.Errorf("expected default draft status, got %q", stored.Status)
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestSaveTemplateRequiresName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SaveTemplate(&models.Template{})
	if err == nil {
		t.Fatal("expected validation error for empty name")
	}
	if apperrors.GetAppError(err).Code != apperrors.ErrCodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSaveTemplatePreservesCreatedAt(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.SaveTemplate(&models.Template{Name: "Launch Email"})
	if err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}

	second, err := svc.SaveTemplate(&models.Template{Name: "Launch Email", Description: "v2"})
	if err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("overwrite must preserve the original creation time")
	}

	all, err := svc.ListTemplates()
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("same name must overwrite, got %d records", len(all))
	}
}

func TestDuplicateTemplate(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SaveTemplate(&models.Template{Name: "Launch Email", Tags: []string{"email"}}); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}

	dup, err := svc.DuplicateTemplate("launch-email")
	if err != nil {
		t.Fatalf("DuplicateTemplate failed: %v", err)
	}
	if dup.Name != "Launch Email (Copy)" {
		t.Errorf("unexpected duplicate name: %q", dup.Name)
	}
	if dup.ID != "launch-email-copy" {
		t.Errorf("unexpected duplicate id: %q", dup.ID)
	}

	all, err := svc.ListTemplates()
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 records after duplicate, got %d", len(all))
	}
}

func TestFilterTemplates(t *testing.T) {
	svc := newTestService(t)

	records := []*models.Template{
		{Name: "Launch Email", Tags: []string{"email", "launch"}, Status: models.StatusApproved, Owner: "alice"},
		{Name: "Churn Analysis", Tags: []string{"analytics"}, Status: models.StatusDraft, Owner: "bob"},
		{Name: "Welcome Email", Tags: []string{"email"}, Status: models.StatusDraft, Owner: "alice"},
	}
	for _, r := range records {
		if _, err := svc.SaveTemplate(r); err != nil {
			t.Fatalf("SaveTemplate failed: %v", err)
		}
	}

	byTag, err := svc.FilterTemplates(models.Query{Tags: []string{"email"}})
	if err != nil {
		t.Fatalf("FilterTemplates failed: %v", err)
	}
	if len(byTag) != 2 {
		t.Errorf("expected 2 email templates, got %d", len(byTag))
	}

	combined, err := svc.FilterTemplates(models.Query{Tags: []string{"email"}, Status: models.StatusDraft})
	if err != nil {
		t.Fatalf("FilterTemplates failed: %v", err)
	}
	if len(combined) != 1 || combined[0].ID != "welcome-email" {
		t.Errorf("AND filter failed: %v", combined)
	}

	byText, err := svc.FilterTemplates(models.Query{Text: "churn"})
	if err != nil {
		t.Fatalf("FilterTemplates failed: %v", err)
	}
	if len(byText) != 1 || byText[0].ID != "churn-analysis" {
		t.Errorf("keyword filter failed: %v", byText)
	}
}

func TestSearchTemplates(t *testing.T) {
	svc := newTestService(t)

	for _, name := range []string{"Launch Email", "Churn Analysis"} {
		if _, err := svc.SaveTemplate(&models.Template{Name: name}); err != nil {
			t.Fatalf("SaveTemplate failed: %v", err)
		}
	}

	results, err := svc.SearchTemplates("launch")
	if err != nil {
		t.Fatalf("SearchTemplates failed: %v", err)
	}
	if len(results) == 0 || results[0].ID != "launch-email" {
		t.Errorf("expected launch-email first, got %v", results)
	}
}

func TestListTags(t *testing.T) {
	svc := newTestService(t)

	records := []*models.Template{
		{Name: "A", Tags: []string{"email", "launch"}},
		{Name: "B", Tags: []string{"email"}},
	}
	for _, r := range records {
		if _, err := svc.SaveTemplate(r); err != nil {
			t.Fatalf("SaveTemplate failed: %v", err)
		}
	}

	tags, err := svc.ListTags()
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 2 || tags[0] != "email" || tags[1] != "launch" {
		t.Errorf("unexpected tags: %v", tags)
	}
}

const importCSV = `name,prompt,tags
Launch Email,Write a launch email,"email"
Announce X,Draft an announcement,
`

func TestImportCreatesAndUpdates(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Import([]byte(importCSV), importer.FormatCSV)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 {
		t.Errorf("expected 2 created / 0 updated, got %d / %d", result.Created, result.Updated)
	}
	if result.ArchivePath == "" {
		t.Error("expected the payload to be archived")
	}

	// Re-importing the same names updates in place instead of duplicating
	again, err := svc.Import([]byte(importCSV), importer.FormatCSV)
	if err != nil {
		t.Fatalf("Second import failed: %v", err)
	}
	if again.Created != 0 || again.Updated != 2 {
		t.Errorf("expected 0 created / 2 updated, got %d / %d", again.Created, again.Updated)
	}

	all, err := svc.ListTemplates()
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 records after re-import, got %d", len(all))
	}
}

func TestImportMergePreservesUntouchedFields(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SaveTemplate(&models.Template{
		Name:   "Launch Email",
		Owner:  "alice",
		System: "Hand-written system block",
	}); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}

	payload := `{"templates": [{"name": "Launch Email", "description": "From import"}]}`
	result, err := svc.Import([]byte(payload), importer.FormatJSON)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", result.Updated)
	}

	got, err := svc.GetTemplate("launch-email")
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if got.Description != "From import" {
		t.Errorf("imported field not applied: %q", got.Description)
	}
	if got.Owner != "alice" {
		t.Errorf("merge clobbered owner: %q", got.Owner)
	}
}

func TestImportBadPayload(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Import([]byte(`"nope"`), importer.FormatJSON)
	if err == nil {
		t.Fatal("expected error for unparseable payload")
	}
	if apperrors.GetAppError(err).Code != apperrors.ErrCodeImportFailure {
		t.Errorf("expected IMPORT_FAILURE, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SaveTemplate(&models.Template{
		Name:      "Launch Email",
		Tags:      []string{"email"},
		User:      "Write about {{product}}",
		Variables: []models.Variable{{Name: "product"}},
	}); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}

	data, err := svc.Export(ExportJSON)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	other := newTestService(t)
	result, err := other.Import(data, importer.FormatJSON)
	if err != nil {
		t.Fatalf("Import of exported data failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("expected 1 created, got %d", result.Created)
	}

	got, err := other.GetTemplate("launch-email")
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if got.User != "Write about {{product}}" {
		t.Errorf("round trip changed user block: %q", got.User)
	}
}

func TestExportYAML(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SaveTemplate(&models.Template{Name: "Launch Email"}); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}

	data, err := svc.Export(ExportYAML)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(data), "launch-email") {
		t.Errorf("YAML export missing record: %s", data)
	}
}

func TestRenderTemplate(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SaveTemplate(&models.Template{
		Name:      "Greeting",
		System:    "Be nice.",
		User:      "Greet {{name}}.",
		Variables: []models.Variable{{Name: "name", Default: "there"}},
	}); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}

	out, err := svc.RenderTemplate("greeting", map[string]string{"name": "Sam"}, false)
	if err != nil {
		t.Fatalf("RenderTemplate failed: %v", err)
	}
	if !strings.Contains(out, "Greet Sam.") {
		t.Errorf("unexpected render output: %q", out)
	}

	// Default applies when the caller omits the value
	out, err = svc.RenderTemplate("greeting", nil, false)
	if err != nil {
		t.Fatalf("RenderTemplate failed: %v", err)
	}
	if !strings.Contains(out, "Greet there.") {
		t.Errorf("expected default fallback, got %q", out)
	}

	if _, err := svc.RenderTemplate("missing", nil, false); err == nil {
		t.Error("expected error rendering a missing template")
	}
}

func TestVersionHistoryThroughService(t *testing.T) {
	svc := newTestService(t)

	for _, desc := range []string{"v1", "v2", "v3"} {
		if _, err := svc.SaveTemplate(&models.Template{Name: "Launch Email", Description: desc}); err != nil {
			t.Fatalf("SaveTemplate failed: %v", err)
		}
	}

	versions, err := svc.ListVersions("launch-email")
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(versions))
	}

	snap, err := svc.GetVersion(versions[0].File)
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if snap.Template.Description != "v1" {
		t.Errorf("oldest snapshot should hold the first save, got %q", snap.Template.Description)
	}
}

func TestUndeclaredPlaceholders(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SaveTemplate(&models.Template{
		Name:      "Greeting",
		User:      "Greet {{name}} about {{topic}}.",
		Variables: []models.Variable{{Name: "name"}},
	}); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}

	missing, err := svc.UndeclaredPlaceholders("greeting")
	if err != nil {
		t.Fatalf("UndeclaredPlaceholders failed: %v", err)
	}
	if len(missing) != 1 || missing[0] != "topic" {
		t.Errorf("expected [topic], got %v", missing)
	}
}

func TestDeleteTemplate(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SaveTemplate(&models.Template{Name: "Launch Email"}); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}
	if err := svc.DeleteTemplate("launch-email"); err != nil {
		t.Fatalf("DeleteTemplate failed: %v", err)
	}
	if _, err := svc.GetTemplate("launch-email"); err == nil {
		t.Error("expected template to be gone")
	}

	// History outlives the record
	versions, err := svc.ListVersions("launch-email")
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("expected snapshot to survive deletion, got %d", len(versions))
	}
}
