package templating

import (
	"html/template"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Environment is the process-wide half of the rendering engine. It owns the
// configuration, the locator and parse caches, the hook registry and the
// plugin-supplied template functions. All methods are concurrent-safe.
//
// Request-scoped rendering state lives in an Engine created by NewEngine.
type Environment struct {
	logger  *slog.Logger
	config  *Config
	fs      afero.Fs
	plugins PluginSource
	hooks   *HookRegistry

	markdown goldmark.Markdown

	mu                sync.RWMutex
	generation        uint64
	paths             map[TemplateKey]string
	parsed            map[string]*parsedTemplate
	extFuncs          template.FuncMap
	registeredPlugins map[string]struct{}
}

// EnvironmentOption configures an Environment.
type EnvironmentOption func(*Environment)

// WithFs makes the environment read templates through fs instead of the OS.
func WithFs(fs afero.Fs) EnvironmentOption {
	return func(env *Environment) {
		env.fs = fs
	}
}

// WithPlugins connects the environment to a plugin source. Plugin template
// directories become locator candidates and plugin template functions are
// registered once the source reports that loading has completed.
func WithPlugins(plugins PluginSource) EnvironmentOption {
	return func(env *Environment) {
		env.plugins = plugins
	}
}

// NewEnvironment creates a rendering environment. A nil config means
// DefaultConfig. The element card hook is registered before anything else so
// that later handlers for the same hook run after it.
func NewEnvironment(logger *slog.Logger, config *Config, opts ...EnvironmentOption) *Environment {
	if config == nil {
		config = DefaultConfig()
	}
	env := &Environment{
		logger:            logger,
		config:            config,
		fs:                afero.NewOsFs(),
		hooks:             NewHookRegistry(),
		paths:             make(map[TemplateKey]string),
		parsed:            make(map[string]*parsedTemplate),
		extFuncs:          template.FuncMap{},
		registeredPlugins: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(env)
	}
	env.markdown = newMarkdown(config.MarkdownUnsafe)

	env.hooks.Add(ElementCardHook, elementCardHook)
	env.registerPluginFuncs()

	logger.Info("Rendering environment initialized",
		"site_templates", config.SiteTemplatesPath,
		"cp_templates", config.CPTemplatesPath,
		"dev_mode", config.DevMode)
	return env
}

func newMarkdown(unsafe bool) goldmark.Markdown {
	if unsafe {
		return goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe()))
	}
	return goldmark.New()
}

// Config returns a copy of the current configuration.
func (env *Environment) Config() Config {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return *env.config
}

// SetConfig replaces the configuration and drops every cached lookup, since
// template roots and extensions may have changed.
func (env *Environment) SetConfig(config *Config) {
	env.mu.Lock()
	env.config = config
	env.markdown = newMarkdown(config.MarkdownUnsafe)
	env.mu.Unlock()
	env.InvalidateCaches()
}

// InvalidateCaches forgets every resolved template path and parsed template.
// Engines created afterwards see newly added template files.
func (env *Environment) InvalidateCaches() {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.generation++
	env.paths = make(map[TemplateKey]string)
	env.parsed = make(map[string]*parsedTemplate)
	env.logger.Debug("Template caches invalidated", "generation", env.generation)
}

// TemplateRoot returns the template root that requests of the given kind
// resolve against.
func (env *Environment) TemplateRoot(kind RequestKind) string {
	return env.templatesPath(Request{Kind: kind})
}

// Hook registers fn to run whenever the named hook is invoked. Handlers run in
// registration order.
func (env *Environment) Hook(name string, fn HookFunc) {
	env.hooks.Add(name, fn)
}

func (env *Environment) strictVariables() bool {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.config.StrictVariables || env.config.DevMode
}

// registerPluginFuncs adds the template functions of every loaded plugin. When
// plugins are not loaded yet it waits for the plugin source to finish loading
// and tries again.
func (env *Environment) registerPluginFuncs() {
	if env.plugins == nil {
		return
	}
	if !env.plugins.Loaded() {
		env.logger.Debug("Plugins not loaded yet, deferring template function registration")
		env.plugins.OnLoad(env.registerPluginFuncs)
		return
	}

	reserved := builtinFuncNames()

	env.mu.Lock()
	defer env.mu.Unlock()
	for _, p := range env.plugins.All() {
		handle := strings.ToLower(p.Handle())
		if _, done := env.registeredPlugins[handle]; done {
			continue
		}
		env.registeredPlugins[handle] = struct{}{}
		for name, fn := range p.TemplateFuncs() {
			if _, taken := reserved[name]; taken {
				env.logger.Warn("Plugin template function shadows a built-in, skipping", "plugin", handle, "func", name)
				continue
			}
			if _, taken := env.extFuncs[name]; taken {
				env.logger.Warn("Plugin template function already registered, skipping", "plugin", handle, "func", name)
				continue
			}
			env.extFuncs[name] = fn
		}
		env.logger.Info("Registered plugin template functions", "plugin", handle)
	}
}
