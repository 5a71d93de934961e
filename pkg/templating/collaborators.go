package templating

import (
	"html/template"
	"net/url"
)

// RequestKind tells the engine which side of the system a request belongs to.
type RequestKind int

const (
	// SiteRequest is a front-end request rendered from the site template root.
	SiteRequest RequestKind = iota
	// CPRequest is a control panel request rendered from the CP template root.
	CPRequest
	// ConsoleRequest is a command-line render; it never uses locale or plugin lookups.
	ConsoleRequest
)

func (k RequestKind) String() string {
	switch k {
	case SiteRequest:
		return "site"
	case CPRequest:
		return "cp"
	case ConsoleRequest:
		return "console"
	default:
		return "unknown"
	}
}

// Request is the slice of the incoming request the engine needs.
type Request struct {
	Kind RequestKind
	// Action marks a controller action request. Action requests may resolve
	// plugin templates even on the site side.
	Action bool
	// Locale is the request's locale ID, e.g. "en-US".
	Locale string
	// CSRFToken is echoed by csrfInput.
	CSRFToken string
}

func (r Request) isConsole() bool { return r.Kind == ConsoleRequest }
func (r Request) isCP() bool      { return r.Kind == CPRequest }
func (r Request) isSite() bool    { return r.Kind == SiteRequest }

// Plugin is a loaded plugin as seen by the rendering engine.
type Plugin interface {
	Handle() string
	// TemplatesPath is the plugin's own template directory.
	TemplatesPath() string
	// TemplateFuncs returns the functions the plugin adds to every template.
	// It may return nil.
	TemplateFuncs() template.FuncMap
}

// PluginSource enumerates plugins and reports when loading finishes.
type PluginSource interface {
	Loaded() bool
	Plugin(handle string) (Plugin, bool)
	All() []Plugin
	// OnLoad registers fn to run once plugin loading completes.
	OnLoad(fn func())
}

// FlashStore drains the script flashes carried over from a previous request.
type FlashStore interface {
	JSResourceFlashes() ([]string, error)
	JSFlashes() ([]string, error)
}

// Translator translates source messages for the current locale. ok is false
// when no translation exists.
type Translator interface {
	Translate(message string, args ...any) (translated string, ok bool)
}

// URLHelper builds resource and control panel URLs.
type URLHelper interface {
	ResourceURL(path string) string
	CPURL(path string, params url.Values) string
}

// Permissions answers permission checks for the current user.
type Permissions interface {
	Can(permission string) bool
}

// CardElement is the view of a content element the element card hook renders.
type CardElement interface {
	ID() int
	Locale() string
	Status() string
	Label() string
	URL() string
	Level() int
	ThumbURL(size int) string
	IconURL(size int) string
	CPEditURL() string
	HasStatuses() bool
	IsEditable() bool
}
