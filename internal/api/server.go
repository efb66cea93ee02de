// Package api provides the RESTful HTTP API server for prompt-catalog.
//
// SYSTEM ARCHITECTURE ROLE:
// This module implements the HTTP interface layer of the system. It exposes
// the catalog operations as JSON endpoints with a middleware stack and a
// standardized response envelope, and is the integration point for external
// tools (editors, shortcuts, scripts).
//
// INTEGRATION POINTS:
// - internal/service/service.go: all operations go through the Service
// - internal/errors/handlers.go: HTTPErrorHandler formats error responses
// - github.com/rs/cors: cross-origin support for browser-based clients
//
// ENDPOINT STRUCTURE:
// - /api/v1/templates: template CRUD and filtering
// - /api/v1/templates/{id}: single record, plus /versions, /duplicate,
//   /render, /placeholders subresources
// - /api/v1/versions/{file}: one immutable snapshot
// - /api/v1/search: fuzzy free-text search
// - /api/v1/import, /api/v1/export: batch exchange in CSV/JSON/YAML
// - /api/v1/tags, /api/v1/health
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/dpshade/prompt-catalog/internal/errors"
	"github.com/dpshade/prompt-catalog/internal/importer"
	"github.com/dpshade/prompt-catalog/internal/models"
	"github.com/dpshade/prompt-catalog/internal/service"
)

// APIServer provides the HTTP API with middleware support
type APIServer struct {
	service      *service.Service
	errorHandler *errors.HTTPErrorHandler
	port         int
	server       *http.Server
}

// NewAPIServer creates a new API server instance
func NewAPIServer(svc *service.Service, port int) *APIServer {
	return &APIServer{
		service:      svc,
		errorHandler: errors.NewHTTPErrorHandler(true), // Include details in responses
		port:         port,
	}
}

// Start begins serving HTTP requests with middleware
func (s *APIServer) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/templates", s.withMiddleware(s.handleTemplates))
	mux.HandleFunc("/api/v1/templates/", s.withMiddleware(s.handleTemplatesWithID))
	mux.HandleFunc("/api/v1/versions/", s.withMiddleware(s.handleVersion))
	mux.HandleFunc("/api/v1/search", s.withMiddleware(s.handleSearch))
	mux.HandleFunc("/api/v1/import", s.withMiddleware(s.handleImport))
	mux.HandleFunc("/api/v1/export", s.withMiddleware(s.handleExport))
	mux.HandleFunc("/api/v1/tags", s.withMiddleware(s.handleTags))
	mux.HandleFunc("/api/v1/health", s.withMiddleware(s.handleHealth))

	handler := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}).Handler(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("API server starting on http://localhost:%d", s.port)
	log.Printf("Data directory: %s", s.service.BaseDir())

	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// withMiddleware applies middleware to HTTP handlers
func (s *APIServer) withMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return s.loggingMiddleware(
		s.errorMiddleware(handler),
	)
}

// loggingMiddleware logs HTTP requests
func (s *APIServer) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		duration := time.Since(start)
		log.Printf("[%s] %s %s - %v", r.Method, r.URL.Path, r.RemoteAddr, duration)
	}
}

// errorMiddleware handles panics and errors
func (s *APIServer) errorMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic in handler: %v", err)
				appErr := errors.InternalError("Internal server error")
				s.errorHandler.WriteHTTPError(w, appErr)
			}
		}()
		next(w, r)
	}
}

// APIResponse represents a standardized API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// writeResponse writes a standardized JSON response
func (s *APIServer) writeResponse(w http.ResponseWriter, data interface{}, message string, statusCode int) {
	response := APIResponse{
		Success:   statusCode < 400,
		Data:      data,
		Message:   message,
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Pretty-printed JSON for readability
	jsonData, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		json.NewEncoder(w).Encode(response)
		return
	}

	w.Write(jsonData)
}

// writeError writes an error response using the error handler
func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	s.errorHandler.WriteHTTPError(w, err)
}

// handleTemplates handles /api/v1/templates
func (s *APIServer) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTemplates(w, r)
	case http.MethodPost:
		s.handleSaveTemplate(w, r)
	default:
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
	}
}

// handleListTemplates handles GET /api/v1/templates with optional filters
func (s *APIServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	query := models.Query{
		Text:        r.URL.Query().Get("q"),
		ModelFamily: r.URL.Query().Get("model_family"),
		Status:      models.Status(r.URL.Query().Get("status")),
		Owner:       r.URL.Query().Get("owner"),
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		query.Tags = strings.Split(tags, ",")
	}
	if query.Status != "" && !query.Status.Valid() {
		s.writeError(w, errors.ValidationError(fmt.Sprintf("Unknown status '%s'", query.Status)))
		return
	}

	templates, err := s.service.FilterTemplates(query)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, templates, fmt.Sprintf("%d templates", len(templates)), http.StatusOK)
}

// handleSaveTemplate handles POST /api/v1/templates
func (s *APIServer) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.writeError(w, errors.ValidationError("Request body is not a valid template record"))
		return
	}

	stored, err := s.service.SaveTemplate(&t)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, stored, fmt.Sprintf("Saved template '%s'", stored.ID), http.StatusOK)
}

// handleTemplatesWithID handles /api/v1/templates/{id} and its subresources
func (s *APIServer) handleTemplatesWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/templates/")
	if path == "" {
		s.writeError(w, errors.ValidationError("Template ID is required"))
		return
	}

	id := path
	sub := ""
	if i := strings.IndexByte(path, '/'); i >= 0 {
		id, sub = path[:i], path[i+1:]
	}

	switch sub {
	case "":
		s.handleTemplate(w, r, id)
	case "versions":
		s.handleTemplateVersions(w, r, id)
	case "duplicate":
		s.handleDuplicateTemplate(w, r, id)
	case "render":
		s.handleRenderTemplate(w, r, id)
	case "placeholders":
		s.handleTemplatePlaceholders(w, r, id)
	default:
		s.writeError(w, errors.NotFoundError(fmt.Sprintf("Resource '%s'", sub)))
	}
}

// handleTemplate handles GET/PUT/DELETE /api/v1/templates/{id}
func (s *APIServer) handleTemplate(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		t, err := s.service.GetTemplate(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeResponse(w, t, "", http.StatusOK)

	case http.MethodPut:
		var t models.Template
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			s.writeError(w, errors.ValidationError("Request body is not a valid template record"))
			return
		}
		stored, err := s.service.SaveTemplate(&t)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeResponse(w, stored, fmt.Sprintf("Saved template '%s'", stored.ID), http.StatusOK)

	case http.MethodDelete:
		if err := s.service.DeleteTemplate(id); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeResponse(w, nil, fmt.Sprintf("Deleted template '%s'", id), http.StatusOK)

	default:
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
	}
}

// handleTemplateVersions handles GET /api/v1/templates/{id}/versions
func (s *APIServer) handleTemplateVersions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	versions, err := s.service.ListVersions(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, versions, fmt.Sprintf("%d snapshots", len(versions)), http.StatusOK)
}

// handleDuplicateTemplate handles POST /api/v1/templates/{id}/duplicate
func (s *APIServer) handleDuplicateTemplate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	dup, err := s.service.DuplicateTemplate(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, dup, fmt.Sprintf("Duplicated as '%s'", dup.ID), http.StatusOK)
}

// renderRequest is the body accepted by the render subresource
type renderRequest struct {
	Values map[string]string `json:"values"`
	Format string            `json:"format"` // "text" (default) or "json"
}

// handleRenderTemplate handles POST /api/v1/templates/{id}/render
func (s *APIServer) handleRenderTemplate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	req := renderRequest{Format: "text"}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.ValidationError("Request body is not a valid render request"))
			return
		}
	}
	if req.Format == "" {
		req.Format = "text"
	}
	if req.Format != "text" && req.Format != "json" {
		s.writeError(w, errors.ValidationError(fmt.Sprintf("Unknown render format '%s'", req.Format)))
		return
	}

	rendered, err := s.service.RenderTemplate(id, req.Values, req.Format == "json")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, map[string]string{"rendered": rendered}, "", http.StatusOK)
}

// handleTemplatePlaceholders handles GET /api/v1/templates/{id}/placeholders
func (s *APIServer) handleTemplatePlaceholders(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	undeclared, err := s.service.UndeclaredPlaceholders(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, map[string]interface{}{"undeclared": undeclared}, "", http.StatusOK)
}

// handleVersion handles GET /api/v1/versions/{file}
func (s *APIServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	file := strings.TrimPrefix(r.URL.Path, "/api/v1/versions/")
	if file == "" {
		s.writeError(w, errors.ValidationError("Snapshot file name is required"))
		return
	}

	snap, err := s.service.GetVersion(file)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, snap, "", http.StatusOK)
}

// handleSearch handles GET /api/v1/search
func (s *APIServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, errors.ValidationError("Search query 'q' parameter is required"))
		return
	}

	results, err := s.service.SearchTemplates(query)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, results, fmt.Sprintf("%d matches", len(results)), http.StatusOK)
}

// handleImport handles POST /api/v1/import?format=csv|json|yaml
func (s *APIServer) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	format := importer.Format(r.URL.Query().Get("format"))
	switch format {
	case importer.FormatCSV, importer.FormatJSON, importer.FormatYAML:
	default:
		s.writeError(w, errors.ValidationError("Query parameter 'format' must be csv, json or yaml"))
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, errors.ValidationError("Failed to read request body"))
		return
	}
	if len(data) == 0 {
		s.writeError(w, errors.ValidationError("Import payload is empty"))
		return
	}

	result, err := s.service.Import(data, format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	message := fmt.Sprintf("Imported %d new, updated %d templates", result.Created, result.Updated)
	s.writeResponse(w, result, message, http.StatusOK)
}

// handleExport handles GET /api/v1/export?format=json|yaml[&id=...]
// The export body is the raw serialized collection, not the API envelope,
// so the output can be fed straight back into import.
func (s *APIServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	format := service.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = service.ExportJSON
	}
	if format != service.ExportJSON && format != service.ExportYAML {
		s.writeError(w, errors.ValidationError("Query parameter 'format' must be json or yaml"))
		return
	}

	var data []byte
	var err error
	if id := r.URL.Query().Get("id"); id != "" {
		data, err = s.service.ExportTemplate(id, format)
	} else {
		data, err = s.service.Export(format)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	contentType := "application/json"
	if format == service.ExportYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleTags handles GET /api/v1/tags
func (s *APIServer) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, errors.NewAppError(errors.ErrCodeInvalidCommand, "Method not allowed"))
		return
	}

	tags, err := s.service.ListTags()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeResponse(w, tags, fmt.Sprintf("%d tags", len(tags)), http.StatusOK)
}

// handleHealth handles GET /api/v1/health
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":   "ok",
		"data_dir": s.service.BaseDir(),
	}
	s.writeResponse(w, status, "", http.StatusOK)
}
