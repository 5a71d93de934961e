package main

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/elements"
	"github.com/CTAG07/Nepenthes/pkg/flash"
	"github.com/CTAG07/Nepenthes/pkg/locale"
	"github.com/CTAG07/Nepenthes/pkg/plugins"
	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/CTAG07/Nepenthes/pkg/urls"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/text/language"
)

// runtime is everything needed to render templates, shared by the server and
// the render command.
type runtime struct {
	env     *templating.Environment
	plugins *plugins.Registry
	locales *locale.Service
	urls    *urls.Helper
}

// newRuntime builds the rendering environment and its collaborators from config.
func newRuntime(config *Config, logger *slog.Logger, fsys afero.Fs) (*runtime, error) {
	registry := plugins.NewRegistry(logger.With("component", "plugins"))

	// The environment registers plugin functions once the registry is loaded.
	env := templating.NewEnvironment(logger, config.Templates,
		templating.WithFs(fsys),
		templating.WithPlugins(registry))

	if exists, _ := afero.DirExists(fsys, config.Server.PluginsPath); exists {
		found, err := plugins.Discover(fsys, config.Server.PluginsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to discover plugins: %w", err)
		}
		for _, p := range found {
			if err := registry.Register(p); err != nil {
				return nil, err
			}
		}
	}
	registry.Load()

	source, err := language.Parse(config.Server.SourceLocale)
	if err != nil {
		return nil, fmt.Errorf("invalid source locale %q: %w", config.Server.SourceLocale, err)
	}
	catalog := locale.NewCatalog(source)
	if exists, _ := afero.DirExists(fsys, config.Server.TranslationsPath); exists {
		if err := catalog.LoadDir(fsys, config.Server.TranslationsPath, logger); err != nil {
			return nil, err
		}
	}

	helper, err := urls.New(config.Server.BaseURL, config.Server.CPTrigger, config.Server.ResourceTrigger)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", config.Server.BaseURL, err)
	}

	return &runtime{
		env:     env,
		plugins: registry,
		locales: locale.NewService(catalog),
		urls:    helper,
	}, nil
}

type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	rt          *runtime
	flashes     *flash.Store
	authAPI     *AuthAPI
	templateAPI *TemplateAPI
	flashAPI    *FlashAPI
	serverAPI   *ServerAPI
	siteMux     *http.ServeMux
	apiMux      *http.ServeMux
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {
	config := cm.Get()

	rt, err := newRuntime(&config, logger, afero.NewOsFs())
	if err != nil {
		return nil, fmt.Errorf("failed to create rendering runtime: %w", err)
	}
	cm.SetEnvironment(rt.env)

	flashes, err := flash.NewStore(db, logger.With("component", "flash"))
	if err != nil {
		return nil, fmt.Errorf("failed to create flash store: %w", err)
	}

	server := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		rt:          rt,
		flashes:     flashes,
		authAPI:     NewAuthAPI(db, logger),
		templateAPI: NewTemplateAPI(rt, logger),
		flashAPI:    NewFlashAPI(flashes, logger),
		serverAPI:   NewServerAPI(cm, actionChan, rt, logger),
		siteMux:     http.NewServeMux(),
		apiMux:      http.NewServeMux(),
	}

	apiMux := http.NewServeMux()
	server.authAPI.RegisterRoutes(apiMux)
	server.templateAPI.RegisterRoutes(apiMux)
	server.flashAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first
	server.apiMux.Handle("/api/", server.authAPI.Authenticate(apiMux))

	resources := "/" + rt.urls.ResourceTrigger() + "/"
	server.siteMux.Handle(resources, http.StripPrefix(resources, http.FileServer(http.Dir(config.Server.ResourcePath))))
	server.siteMux.HandleFunc("/", server.handleSite)

	return server, nil
}

// Close releases the prepared statements held by the server.
func (s *Server) Close() {
	s.flashes.Close()
}

// requestFor classifies an incoming request and returns the template path it
// asks for, relative to its template root.
func (s *Server) requestFor(r *http.Request) (templating.Request, string) {
	path := strings.Trim(r.URL.Path, "/")
	req := templating.Request{
		Kind:   templating.SiteRequest,
		Action: r.URL.Query().Has("action"),
		Locale: s.rt.locales.FromAcceptLanguage(r.Header.Get("Accept-Language")),
	}
	trigger := s.rt.urls.CPTrigger()
	if path == trigger || strings.HasPrefix(path, trigger+"/") {
		req.Kind = templating.CPRequest
		path = strings.TrimPrefix(strings.TrimPrefix(path, trigger), "/")
	}
	if path == "" {
		path = "index"
	}
	return req, path
}

// sessionID returns the session cookie value, issuing a new one when missing.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func csrfToken(sessionID string) string {
	sum := sha256.Sum256([]byte("csrf:" + sessionID))
	return hex.EncodeToString(sum[:16])
}

func (s *Server) newEngine(w http.ResponseWriter, r *http.Request, req templating.Request) *templating.Engine {
	config := s.cm.Get()
	sid := s.sessionID(w, r, config.Server.SessionCookie)
	req.CSRFToken = csrfToken(sid)

	opts := []templating.EngineOption{
		templating.WithURLs(s.rt.urls),
		templating.WithTranslator(s.rt.locales.Translator(req.Locale)),
		templating.WithFlashes(s.flashes.Session(r.Context(), sid)),
	}
	if req.Kind == templating.CPRequest {
		opts = append(opts, templating.WithPermissions(elements.NewPermissionSet(config.Server.CPPermissions...)))
	}
	return s.rt.env.NewEngine(req, opts...)
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	req, name := s.requestFor(r)
	e := s.newEngine(w, r, req)
	vars := map[string]any{
		"path":    name,
		"query":   r.URL.Query(),
		"locale":  req.Locale,
		"locales": s.rt.locales.Locales(),
	}

	html, err := e.Render(name, vars)
	status := http.StatusOK
	if errors.Is(err, templating.ErrTemplateNotFound) || errors.Is(err, templating.ErrInvalidTemplateName) {
		s.logger.Debug("No template for request", "path", r.URL.Path, "error", err)
		status = http.StatusNotFound
		html, err = e.Render("404", vars)
		if errors.Is(err, templating.ErrTemplateNotFound) {
			http.NotFound(w, r)
			return
		}
	}
	if err != nil {
		s.logger.Error("Failed to render template", "template", name, "request", req.Kind.String(), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Serving page", "template", name, "request", req.Kind.String(), "locale", req.Locale, "remote_addr", r.RemoteAddr)
	s.setPageHeaders(w)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

func (s *Server) setPageHeaders(w http.ResponseWriter) {
	config := s.cm.Get()
	for key, value := range config.Server.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
}
