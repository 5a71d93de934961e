package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/natefinch/atomic"
)

// TemplateAPI holds the dependencies for the template API handlers.
type TemplateAPI struct {
	rt     *runtime
	logger *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(rt *runtime, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		rt:     rt,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/templates endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates/cache", t.handleCache)
	mux.HandleFunc("/api/templates/test", t.handleTest)
	mux.HandleFunc("/api/templates/preview", t.handlePreview)
	mux.HandleFunc("/api/templates/exists", t.handleExists)
	mux.HandleFunc("/api/templates/", t.handleFile)
}

// apiRequest builds the render request described by the query string:
// "cp=1" selects the control panel root and "locale" the site locale.
func apiRequest(r *http.Request) templating.Request {
	q := r.URL.Query()
	req := templating.Request{Kind: templating.SiteRequest, Locale: q.Get("locale"), Action: q.Has("action")}
	if q.Get("cp") == "1" || q.Get("cp") == "true" {
		req.Kind = templating.CPRequest
	}
	return req
}

func (t *TemplateAPI) engine(r *http.Request) *templating.Engine {
	req := apiRequest(r)
	opts := []templating.EngineOption{templating.WithURLs(t.rt.urls)}
	if req.Locale != "" {
		opts = append(opts, templating.WithTranslator(t.rt.locales.Translator(req.Locale)))
	}
	return t.rt.env.NewEngine(req, opts...)
}

// handleCache drops the resolved template paths and parsed templates.
func (t *TemplateAPI) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:write' scope")
		return
	}
	t.rt.env.InvalidateCaches()
	t.logger.Info("Template caches invalidated via API")
	w.WriteHeader(http.StatusNoContent)
}

// handleExists reports whether a template name resolves, and to which file.
func (t *TemplateAPI) handleExists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}
	path, err := t.engine(r).FindTemplate(name)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"name":   name,
		"exists": path != "",
		"path":   path,
	})
}

// handleTest renders the request body as a template string. Variables may be
// passed as a JSON object in the "vars" query parameter.
func (t *TemplateAPI) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	vars, err := queryVars(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	html, err := t.engine(r).RenderString(string(body), vars)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Template execution failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

// handlePreview renders a named template the way a page request would,
// including its head and foot output.
func (t *TemplateAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}
	vars, err := queryVars(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	html, err := t.engine(r).Render(name, vars)
	if err != nil {
		switch {
		case errors.Is(err, templating.ErrTemplateNotFound):
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", name))
		case errors.Is(err, templating.ErrInvalidTemplateName):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render preview: %v", err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func queryVars(r *http.Request) (map[string]any, error) {
	raw := r.URL.Query().Get("vars")
	if raw == "" {
		return map[string]any{}, nil
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, fmt.Errorf("query parameter 'vars' must be a JSON object: %w", err)
	}
	return vars, nil
}

// templateFilePath maps an API file name onto the template root of the
// request, refusing anything that leaves it.
func (t *TemplateAPI) templateFilePath(r *http.Request, name string) (string, error) {
	clean, err := templating.CleanTemplateName(name)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return "", errors.New("empty template name")
	}

	root, err := filepath.Abs(t.rt.env.TemplateRoot(apiRequest(r).Kind))
	if err != nil {
		return "", fmt.Errorf("failed to resolve template directory: %w", err)
	}
	path := filepath.Join(root, filepath.FromSlash(clean))
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", errors.New("path outside template directory")
	}
	return path, nil
}

// handleFile manages CRUD operations for a single template file.
func (t *TemplateAPI) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if name == "" || strings.HasSuffix(name, "/") {
		respondWithError(w, http.StatusNotFound, "Not Found")
		return
	}

	path, err := t.templateFilePath(r, name)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid template name: %v", err))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "templates:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
			return
		}
		content, err := os.ReadFile(path)
		if err != nil {
			respondWithError(w, http.StatusNotFound, "Template not found")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(content)

	case http.MethodPut:
		if !hasScope(r, "templates:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:write' scope")
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read request body: %v", err))
			return
		}
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create template directory: %v", err))
			return
		}
		if err = atomic.WriteFile(path, bytes.NewReader(body)); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to write template file: %v", err))
			return
		}
		t.rt.env.InvalidateCaches()
		t.logger.Info("Template saved via API", "path", path)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if !hasScope(r, "templates:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:write' scope")
			return
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				respondWithError(w, http.StatusNotFound, "Template not found")
				return
			}
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete template file: %v", err))
			return
		}
		t.rt.env.InvalidateCaches()
		t.logger.Info("Template deleted via API", "path", path)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
