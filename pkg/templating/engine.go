package templating

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
)

// maxRenderDepth bounds nested renders so a template that includes itself
// fails instead of exhausting the stack.
const maxRenderDepth = 64

// Engine renders templates for a single request. It carries everything that
// must not leak between requests: the render stack, the input namespace, the
// output queues and the translation queue. An Engine is not safe for
// concurrent use; create one per request with Environment.NewEngine.
type Engine struct {
	*Output

	env         *Environment
	req         Request
	logger      *slog.Logger
	flashes     FlashStore
	urls        URLHelper
	translator  Translator
	permissions Permissions

	rendering    []string
	namespace    string
	strict       bool
	bound        map[boundKey]*template.Template
	translations translationQueue
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFlashes sets the session flash store FootHTML drains on CP requests.
func WithFlashes(flashes FlashStore) EngineOption {
	return func(e *Engine) { e.flashes = flashes }
}

// WithURLs sets the helper used to build resource and CP URLs.
func WithURLs(urls URLHelper) EngineOption {
	return func(e *Engine) { e.urls = urls }
}

// WithTranslator sets the translator used by t, includeTranslations and hooks.
func WithTranslator(translator Translator) EngineOption {
	return func(e *Engine) { e.translator = translator }
}

// WithPermissions sets the permission checker of the current user.
func WithPermissions(permissions Permissions) EngineOption {
	return func(e *Engine) { e.permissions = permissions }
}

// NewEngine creates the rendering state for one request.
func (env *Environment) NewEngine(req Request, opts ...EngineOption) *Engine {
	e := &Engine{
		Output:       NewOutput(),
		env:          env,
		req:          req,
		logger:       env.logger.With("request", req.Kind.String()),
		strict:       env.strictVariables(),
		bound:        make(map[boundKey]*template.Template),
		translations: translationQueue{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Environment returns the environment the engine was created from.
func (e *Engine) Environment() *Environment {
	return e.env
}

// Request returns the request the engine renders for.
func (e *Engine) Request() Request {
	return e.req
}

// FindTemplate resolves a template name to a file path. It returns "" when
// the template does not exist and an error wrapping ErrInvalidTemplateName
// when the name is not acceptable.
func (e *Engine) FindTemplate(name string) (string, error) {
	return e.env.findTemplate(e.req, name)
}

// DoesTemplateExist reports whether name resolves to a template file.
func (e *Engine) DoesTemplateExist(name string) bool {
	path, err := e.FindTemplate(name)
	return err == nil && path != ""
}

func (e *Engine) enter(id string) (func(), error) {
	if len(e.rendering) >= maxRenderDepth {
		return nil, fmt.Errorf("maximum render depth of %d exceeded while rendering %s", maxRenderDepth, id)
	}
	e.rendering = append(e.rendering, id)
	return func() {
		e.rendering = e.rendering[:len(e.rendering)-1]
	}, nil
}

// IsRendering reports whether a render is in progress.
func (e *Engine) IsRendering() bool {
	return len(e.rendering) > 0
}

// RenderingTemplate returns the innermost template being rendered: the file
// path for named templates, or the "string:" identifier for string templates.
// It returns "" when nothing is rendering.
func (e *Engine) RenderingTemplate() string {
	if len(e.rendering) == 0 {
		return ""
	}
	id := e.rendering[len(e.rendering)-1]
	if strings.HasPrefix(id, "string:") {
		return id
	}
	if path, err := e.FindTemplate(id); err == nil && path != "" {
		return path
	}
	return e.env.templatesPath(e.req) + "/" + id
}

func (e *Engine) load(name string) (*parsedTemplate, error) {
	path, err := e.FindTemplate(name)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, &LoaderError{Name: name}
	}
	e.logger.Debug("Loading template", "template", name, "path", path)
	return e.env.parseFile(path)
}

func (e *Engine) execute(p *parsedTemplate, entry string, data any) (string, error) {
	t, err := e.bind(p)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, entry, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", entry, err)
	}
	return buf.String(), nil
}

// Render renders the named template with vars.
func (e *Engine) Render(name string, vars map[string]any) (string, error) {
	leave, err := e.enter(name)
	if err != nil {
		return "", err
	}
	defer leave()

	p, err := e.load(name)
	if err != nil {
		return "", err
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return e.execute(p, p.name, vars)
}

// RenderString renders a template given as source.
func (e *Engine) RenderString(source string, vars map[string]any) (string, error) {
	leave, err := e.enter("string:" + source)
	if err != nil {
		return "", err
	}
	defer leave()

	p, err := e.env.parseString(source)
	if err != nil {
		return "", err
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return e.execute(p, p.name, vars)
}

// fieldsProvider is implemented by objects that expose their template
// variables as a map.
type fieldsProvider interface {
	TemplateFields() map[string]any
}

// RenderObjectTemplate renders a short template against object, such as a
// URL format like "blog/{slug}". "{field}" is shorthand for the object's
// field. Sources without "{" are returned as they are. Missing fields render
// empty even when strict variables are on. Struct objects are read through
// their exported fields, so "{slug}" needs a field named slug; implement
// TemplateFields to expose lower-case names. A nil object renders nothing.
func (e *Engine) RenderObjectTemplate(source string, object any) (string, error) {
	if !strings.Contains(source, "{") {
		return source, nil
	}
	if isNil(object) {
		return "", nil
	}

	leave, err := e.enter("string:" + source)
	if err != nil {
		return "", err
	}
	defer leave()

	strict := e.strict
	e.strict = false
	defer func() { e.strict = strict }()

	p, err := e.env.parseObject(source)
	if err != nil {
		return "", err
	}
	if f, ok := object.(fieldsProvider); ok {
		object = f.TemplateFields()
	}
	return e.execute(p, p.name, map[string]any{"object": object})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// RenderMacro renders the macro block of the named template with args as dot.
// Macros are defined as {{define "macro:name"}}...{{end}}.
func (e *Engine) RenderMacro(name, macro string, args ...any) (string, error) {
	leave, err := e.enter(name)
	if err != nil {
		return "", err
	}
	defer leave()

	p, err := e.load(name)
	if err != nil {
		return "", err
	}
	entry := MacroTemplateName(macro)
	if !p.hasTemplate(entry) {
		return "", fmt.Errorf("template %s does not define macro %q", name, macro)
	}
	if args == nil {
		args = []any{}
	}
	return e.execute(p, entry, args)
}

// SetNamespace sets the active input namespace.
func (e *Engine) SetNamespace(namespace string) {
	e.namespace = namespace
}

// Namespace returns the active input namespace.
func (e *Engine) Namespace() string {
	return e.namespace
}

// NamespaceInputs namespaces html with the active namespace, including id
// and related attributes.
func (e *Engine) NamespaceInputs(html string) string {
	return NamespaceHTML(html, e.namespace, true)
}

// NamespaceInputsWith namespaces html with an explicit namespace.
func (e *Engine) NamespaceInputsWith(html, namespace string, otherAttributes bool) string {
	return NamespaceHTML(html, namespace, otherAttributes)
}

// NamespaceInputName namespaces an input name with the active namespace.
func (e *Engine) NamespaceInputName(name string) string {
	return NamespaceInputName(name, e.namespace)
}

// NamespaceInputID namespaces an input id with the active namespace.
func (e *Engine) NamespaceInputID(id string) string {
	return NamespaceInputID(id, e.namespace)
}

// RenderNamespaced runs render with namespace nested inside the active one
// and namespaces its output with namespace alone; enclosing calls add the
// outer segments. The previous namespace is restored afterwards.
func (e *Engine) RenderNamespaced(namespace string, render func() (string, error)) (string, error) {
	previous := e.namespace
	e.namespace = e.NamespaceInputName(namespace)
	defer func() { e.namespace = previous }()

	html, err := render()
	if err != nil {
		return "", err
	}
	return NamespaceHTML(html, namespace, true), nil
}

func (e *Engine) resourceURL(path string) string {
	if e.urls == nil {
		return path
	}
	return e.urls.ResourceURL(path)
}

// IncludeCSSResource queues the stylesheet of a resource path.
func (e *Engine) IncludeCSSResource(path string, first bool) {
	e.IncludeCSSFile(e.resourceURL(path), first)
}

// IncludeJSResource queues the script of a resource path.
func (e *Engine) IncludeJSResource(path string, first bool) {
	e.IncludeJSFile(e.resourceURL(path), first)
}

// FootHTML drains the foot queue. On CP requests the scripts flashed by the
// previous request are queued first.
func (e *Engine) FootHTML() (string, error) {
	if e.req.isCP() && e.flashes != nil {
		paths, err := e.flashes.JSResourceFlashes()
		if err != nil {
			return "", fmt.Errorf("failed to read script resource flashes: %w", err)
		}
		for _, path := range paths {
			e.IncludeJSResource(path, false)
		}
		snippets, err := e.flashes.JSFlashes()
		if err != nil {
			return "", fmt.Errorf("failed to read script flashes: %w", err)
		}
		for _, js := range snippets {
			e.IncludeJS(js, true)
		}
	}
	return e.Output.FootHTML(), nil
}

// CSRFInput returns a hidden input carrying the request's CSRF token, or ""
// when CSRF protection is off.
func (e *Engine) CSRFInput() template.HTML {
	config := e.env.Config()
	if !config.EnableCSRFProtection {
		return ""
	}
	return template.HTML(`<input type="hidden" name="` + template.HTMLEscapeString(config.CSRFTokenName) +
		`" value="` + template.HTMLEscapeString(e.req.CSRFToken) + `">`)
}

// CPURL builds a control panel URL.
func (e *Engine) CPURL(path string, params url.Values) string {
	if e.urls == nil {
		return path
	}
	return e.urls.CPURL(path, params)
}
