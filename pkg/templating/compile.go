package templating

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/spf13/afero"
)

// parsedTemplate is a parsed but unbound template set. The trees are never
// executed directly; every Engine binds its own copies.
type parsedTemplate struct {
	name    string
	set     *texttemplate.Template
	modTime time.Time
}

// hasTemplate reports whether the set defines a template called name.
func (p *parsedTemplate) hasTemplate(name string) bool {
	t := p.set.Lookup(name)
	return t != nil && t.Tree != nil
}

// MacroTemplateName is the name of the define block RenderMacro executes for macro.
func MacroTemplateName(macro string) string {
	return "macro:" + macro
}

func sourceKey(prefix, source string) string {
	sum := sha256.Sum256([]byte(source))
	return prefix + hex.EncodeToString(sum[:])
}

// parseFuncs returns every function name a template may reference. The
// request-bound entries are placeholders; execution always uses the Engine's
// own map.
func (env *Environment) parseFuncs() texttemplate.FuncMap {
	funcs := texttemplate.FuncMap{}
	for name, fn := range env.staticFuncs() {
		funcs[name] = fn
	}
	env.mu.RLock()
	for name, fn := range env.extFuncs {
		funcs[name] = fn
	}
	env.mu.RUnlock()
	for name, fn := range (&Engine{env: env}).boundFuncs() {
		funcs[name] = fn
	}
	return funcs
}

func (env *Environment) parse(name, source string) (*parsedTemplate, error) {
	set, err := texttemplate.New(name).Funcs(env.parseFuncs()).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return &parsedTemplate{name: name, set: set}, nil
}

func (env *Environment) cached(key string) *parsedTemplate {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.parsed[key]
}

func (env *Environment) store(key string, p *parsedTemplate) {
	env.mu.Lock()
	env.parsed[key] = p
	env.mu.Unlock()
}

// parseFile returns the parsed template at path. A cached parse is reused
// until the file's modification time changes.
func (env *Environment) parseFile(path string) (*parsedTemplate, error) {
	info, err := env.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat template %s: %w", path, err)
	}
	key := "file:" + path
	if p := env.cached(key); p != nil && p.modTime.Equal(info.ModTime()) {
		return p, nil
	}

	source, err := afero.ReadFile(env.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	p, err := env.parse(path, string(source))
	if err != nil {
		return nil, err
	}
	p.modTime = info.ModTime()
	env.store(key, p)
	env.logger.Debug("Parsed template file", "path", path)
	return p, nil
}

// parseString returns the parsed form of a template source, keyed by its hash.
func (env *Environment) parseString(source string) (*parsedTemplate, error) {
	key := sourceKey("string:", source)
	if p := env.cached(key); p != nil {
		return p, nil
	}
	p, err := env.parse(key, source)
	if err != nil {
		return nil, err
	}
	env.store(key, p)
	return p, nil
}

// parseObject returns the parsed form of an object template after its
// single-brace shorthand has been expanded.
func (env *Environment) parseObject(source string) (*parsedTemplate, error) {
	key := sourceKey("object:", source)
	if p := env.cached(key); p != nil {
		return p, nil
	}
	p, err := env.parse(key, formatObjectTemplate(source))
	if err != nil {
		return nil, err
	}
	env.store(key, p)
	return p, nil
}

// formatObjectTemplate expands the object template shorthand: a lone "{"
// opens "{{.object." and a lone "}" closes with " | raw}}". Braces next to
// another brace of the same kind or a "%" are kept as they are, so regular
// actions pass through untouched.
func formatObjectTemplate(source string) string {
	var b strings.Builder
	b.Grow(len(source) + 16)
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case c == '{' && !besideAny(source, i, '{', '%'):
			b.WriteString("{{.object.")
			for i+1 < len(source) && isSpace(source[i+1]) {
				i++
			}
			continue
		case c == '}' && !besideAny(source, i, '}', '%'):
			b.WriteString(" | raw}}")
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func besideAny(s string, i int, a, b byte) bool {
	if i > 0 && (s[i-1] == a || s[i-1] == b) {
		return true
	}
	if i+1 < len(s) && (s[i+1] == a || s[i+1] == b) {
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

type boundKey struct {
	parsed *parsedTemplate
	strict bool
}

// bind attaches copies of the parsed trees to a fresh html/template set
// carrying this Engine's functions. html/template escapes trees in place on
// first execution, which is why the cached trees are never bound directly.
func (e *Engine) bind(p *parsedTemplate) (*template.Template, error) {
	key := boundKey{parsed: p, strict: e.strict}
	if t, ok := e.bound[key]; ok {
		return t, nil
	}

	missingKey := "missingkey=zero"
	if e.strict {
		missingKey = "missingkey=error"
	}
	t := template.New(p.name).Funcs(e.funcMap()).Option(missingKey)
	for _, tt := range p.set.Templates() {
		if tt.Tree == nil {
			continue
		}
		if _, err := t.AddParseTree(tt.Name(), tt.Tree.Copy()); err != nil {
			return nil, fmt.Errorf("failed to bind template %s: %w", tt.Name(), err)
		}
	}
	e.bound[key] = t
	return t, nil
}
