package templating

import (
	"fmt"
	"strings"
	"sync"
)

// HookFunc renders a fragment of HTML for a named hook point. Handlers may
// modify ctx; later handlers of the same invocation see the changes.
type HookFunc func(e *Engine, ctx map[string]any) (string, error)

// HookRegistry maps hook names to their handlers in registration order.
// Handlers can only be added. It is safe for concurrent use.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string][]HookFunc
}

// NewHookRegistry returns an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string][]HookFunc)}
}

// Add appends fn to the handlers of name.
func (r *HookRegistry) Add(name string, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = append(r.hooks[name], fn)
}

// Handlers returns a snapshot of the handlers registered for name.
func (r *HookRegistry) Handlers(name string) []HookFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]HookFunc(nil), r.hooks[name]...)
}

// Hook registers fn for the named hook on the engine's environment. The
// handler stays registered after the request ends.
func (e *Engine) Hook(name string, fn HookFunc) {
	e.env.Hook(name, fn)
}

// InvokeHook runs every handler registered for name and concatenates their
// output. It stops at the first handler that fails. A nil ctx is treated as
// empty.
func (e *Engine) InvokeHook(name string, ctx map[string]any) (string, error) {
	if ctx == nil {
		ctx = map[string]any{}
	}
	var b strings.Builder
	for _, fn := range e.env.hooks.Handlers(name) {
		out, err := fn(e, ctx)
		if err != nil {
			return "", fmt.Errorf("hook %s failed: %w", name, err)
		}
		b.WriteString(out)
	}
	return b.String(), nil
}
