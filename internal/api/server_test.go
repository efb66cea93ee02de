package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dpshade/prompt-catalog/internal/models"
	"github.com/dpshade/prompt-catalog/internal/service"
)

func newTestServer(t *testing.T) *APIServer {
	t.Helper()
	svc, err := service.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return NewAPIServer(svc, 0)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func TestCreateAndGetTemplate(t *testing.T) {
	srv := newTestServer(t)

	body := `{"name": "Launch Email", "tags": ["email"], "user": "Write about {{product}}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleTemplates(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/templates/launch-email", nil)
	rec = httptest.NewRecorder()
	srv.handleTemplatesWithID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("get returned %d: %s", rec.Code, rec.Body.String())
	}
	resp = decodeResponse(t, rec)
	data, _ := json.Marshal(resp.Data)
	var tmpl models.Template
	if err := json.Unmarshal(data, &tmpl); err != nil {
		t.Fatalf("payload is not a template: %v", err)
	}
	if tmpl.ID != "launch-email" || tmpl.Name != "Launch Email" {
		t.Errorf("unexpected record: %+v", tmpl)
	}
}

func TestGetMissingTemplateReturns404(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates/missing", nil)
	rec := httptest.NewRecorder()
	srv.handleTemplatesWithID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateInvalidTemplateReturns400(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", strings.NewReader(`{"tags": ["no-name"]}`))
	rec := httptest.NewRecorder()
	srv.handleTemplates(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListTemplatesWithFilter(t *testing.T) {
	srv := newTestServer(t)

	records := []string{
		`{"name": "Launch Email", "tags": ["email"], "status": "approved"}`,
		`{"name": "Churn Analysis", "tags": ["analytics"]}`,
	}
	for _, body := range records {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.handleTemplates(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates?tags=email&status=approved", nil)
	rec := httptest.NewRecorder()
	srv.handleTemplates(rec, req)

	resp := decodeResponse(t, rec)
	data, _ := json.Marshal(resp.Data)
	var list []models.Template
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("payload is not a template list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "launch-email" {
		t.Errorf("unexpected filter result: %+v", list)
	}
}

func TestRenderEndpoint(t *testing.T) {
	srv := newTestServer(t)

	create := `{"name": "Greeting", "user": "Greet {{name}}.", "variables": [{"name": "name", "default": "there"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", strings.NewReader(create))
	rec := httptest.NewRecorder()
	srv.handleTemplates(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/templates/greeting/render",
		strings.NewReader(`{"values": {"name": "Sam"}}`))
	rec = httptest.NewRecorder()
	srv.handleTemplatesWithID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("render returned %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Greet Sam.") {
		t.Errorf("render output missing substitution: %s", rec.Body.String())
	}
}

func TestDeleteEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", strings.NewReader(`{"name": "Launch Email"}`))
	rec := httptest.NewRecorder()
	srv.handleTemplates(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create returned %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/templates/launch-email", nil)
	rec = httptest.NewRecorder()
	srv.handleTemplatesWithID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete returned %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/templates/launch-email", nil)
	rec = httptest.NewRecorder()
	srv.handleTemplatesWithID(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestImportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	csv := "name,prompt\nLaunch Email,Write a launch email\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?format=csv", strings.NewReader(csv))
	rec := httptest.NewRecorder()
	srv.handleImport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import returned %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"created": 1`) {
		t.Errorf("expected created count in response: %s", rec.Body.String())
	}
}

func TestImportEndpointRejectsUnknownFormat(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?format=xml", strings.NewReader("<x/>"))
	rec := httptest.NewRecorder()
	srv.handleImport(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestExportEndpointReturnsRawPayload(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", strings.NewReader(`{"name": "Launch Email"}`))
	rec := httptest.NewRecorder()
	srv.handleTemplates(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create returned %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/export?format=json", nil)
	rec = httptest.NewRecorder()
	srv.handleExport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("export returned %d: %s", rec.Code, rec.Body.String())
	}

	// The export body is the bare collection, not the API envelope
	var payload struct {
		Templates []models.Template `json:"templates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("export is not a collection document: %v", err)
	}
	if len(payload.Templates) != 1 {
		t.Errorf("expected 1 exported record, got %d", len(payload.Templates))
	}
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	srv.handleSearch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Errorf("expected success, got %+v", resp)
	}
}
