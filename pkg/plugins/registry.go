package plugins

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/CTAG07/Nepenthes/pkg/templating"
)

// Registry holds the installed plugins. Plugins are registered during start
// up; Load marks the set as complete and notifies everything waiting for it.
// All methods are concurrent-safe.
type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	plugins   map[string]*Plugin
	order     []string
	loaded    bool
	listeners []func()
}

// NewRegistry returns an empty, not yet loaded registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		plugins: make(map[string]*Plugin),
	}
}

// Register adds a plugin. It fails once the registry is loaded or when the
// handle is taken.
func (r *Registry) Register(p *Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return fmt.Errorf("cannot register plugin %s: plugins are already loaded", p.Handle())
	}
	if _, exists := r.plugins[p.Handle()]; exists {
		return fmt.Errorf("plugin %s is already registered", p.Handle())
	}
	r.plugins[p.Handle()] = p
	r.order = append(r.order, p.Handle())
	r.logger.Info("Registered plugin", "handle", p.Handle(), "version", p.Version())
	return nil
}

// Load marks the registry as loaded and runs the OnLoad listeners. Calling it
// again does nothing.
func (r *Registry) Load() {
	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return
	}
	r.loaded = true
	listeners := r.listeners
	r.listeners = nil
	count := len(r.plugins)
	r.mu.Unlock()

	r.logger.Info("Plugins loaded", "count", count)
	for _, fn := range listeners {
		fn()
	}
}

// Loaded reports whether Load has been called.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// OnLoad runs fn once the registry is loaded, immediately if it already is.
func (r *Registry) OnLoad(fn func()) {
	r.mu.Lock()
	if !r.loaded {
		r.listeners = append(r.listeners, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	fn()
}

// Plugin returns the plugin with the given lower-case handle.
func (r *Registry) Plugin(handle string) (templating.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[handle]
	if !ok {
		return nil, false
	}
	return p, true
}

// All returns the plugins in registration order.
func (r *Registry) All() []templating.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]templating.Plugin, 0, len(r.order))
	for _, handle := range r.order {
		all = append(all, r.plugins[handle])
	}
	return all
}
