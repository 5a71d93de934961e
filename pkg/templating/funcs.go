package templating

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
)

// staticFuncs are the functions that do not depend on the request.
func (env *Environment) staticFuncs() template.FuncMap {
	return template.FuncMap{
		// Formatting
		"raw":           raw,
		"markdown":      env.renderMarkdown,
		"md":            env.renderMarkdown,
		"filesize":      filesize,
		"timeago":       timeago,
		"formatInputId": FormatInputID,

		// Math (from funcs_simple.go)
		"add":  add,
		"sub":  sub,
		"div":  div,
		"mult": mult,
		"max":  maxInt,
		"min":  minInt,
		"mod":  mod,
		"inc":  inc,
		"dec":  dec,

		// Collections (from funcs_logic.go)
		"isSet":   isSet,
		"repeat":  repeat,
		"list":    list,
		"dict":    dict,
		"default": defaultValue,
	}
}

// boundFuncs are the functions that read or write the state of one request.
func (e *Engine) boundFuncs() template.FuncMap {
	return template.FuncMap{
		// Rendering
		"include":           e.includeFunc,
		"includeNamespaced": e.includeNamespacedFunc,
		"hook":              e.hookFunc,
		"renderObject":      e.renderObjectFunc,
		"isRendering":       e.IsRendering,

		// Output
		"headHtml": func() template.HTML { return template.HTML(e.HeadHTML()) },
		"footHtml": func() (template.HTML, error) {
			html, err := e.FootHTML()
			return template.HTML(html), err
		},
		"includeCssFile":     func(url string, first ...bool) string { e.IncludeCSSFile(url, isFirst(first)); return "" },
		"includeJsFile":      func(url string, first ...bool) string { e.IncludeJSFile(url, isFirst(first)); return "" },
		"includeCssResource": func(path string, first ...bool) string { e.IncludeCSSResource(path, isFirst(first)); return "" },
		"includeJsResource":  func(path string, first ...bool) string { e.IncludeJSResource(path, isFirst(first)); return "" },
		"includeCss":         func(css string, first ...bool) string { e.IncludeCSS(css, isFirst(first)); return "" },
		"includeHiResCss":    func(css string, first ...bool) string { e.IncludeHiResCSS(css, isFirst(first)); return "" },
		"includeJs":          func(js string, first ...bool) string { e.IncludeJS(js, isFirst(first)); return "" },
		"includeHeadHtml":    func(html string, first ...bool) string { e.IncludeHeadHTML(html, isFirst(first)); return "" },
		"includeFootHtml":    func(html string, first ...bool) string { e.IncludeFootHTML(html, isFirst(first)); return "" },

		// Translation
		"includeTranslations": func(messages ...string) string { e.IncludeTranslations(messages...); return "" },
		"translations": func() (template.JS, error) {
			js, err := e.Translations()
			return template.JS(js), err
		},
		"t": e.Translate,

		// Namespacing
		"namespaceInputs": func(namespace string, html any) template.HTML {
			return template.HTML(e.NamespaceInputsWith(toString(html), namespace, true))
		},
		"namespaceInputName": e.NamespaceInputName,
		"namespaceInputId":   e.NamespaceInputID,

		// Misc
		"csrfInput":   e.CSRFInput,
		"cpUrl":       func(path string) string { return e.CPURL(path, nil) },
		"resourceUrl": e.resourceURL,
	}
}

// funcMap merges every function available to this engine's templates.
// Plugin functions never override built-ins.
func (e *Engine) funcMap() template.FuncMap {
	funcs := template.FuncMap{}
	e.env.mu.RLock()
	for name, fn := range e.env.extFuncs {
		funcs[name] = fn
	}
	e.env.mu.RUnlock()
	for name, fn := range e.env.staticFuncs() {
		funcs[name] = fn
	}
	for name, fn := range e.boundFuncs() {
		funcs[name] = fn
	}
	return funcs
}

// builtinFuncNames is the set of names plugins may not register.
func builtinFuncNames() map[string]struct{} {
	names := map[string]struct{}{}
	for name := range (&Environment{}).staticFuncs() {
		names[name] = struct{}{}
	}
	for name := range (&Engine{}).boundFuncs() {
		names[name] = struct{}{}
	}
	for _, name := range []string{
		"and", "call", "html", "index", "slice", "js", "len", "not", "or",
		"print", "printf", "println", "urlquery", "eq", "ge", "gt", "le", "lt", "ne",
	} {
		names[name] = struct{}{}
	}
	return names
}

func isFirst(first []bool) bool {
	return len(first) > 0 && first[0]
}

func mergeVars(vars []map[string]any) map[string]any {
	merged := map[string]any{}
	for _, v := range vars {
		for key, val := range v {
			merged[key] = val
		}
	}
	return merged
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case template.HTML:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func (e *Engine) includeFunc(name string, vars ...map[string]any) (template.HTML, error) {
	html, err := e.Render(name, mergeVars(vars))
	return template.HTML(html), err
}

func (e *Engine) includeNamespacedFunc(namespace, name string, vars ...map[string]any) (template.HTML, error) {
	html, err := e.RenderNamespaced(namespace, func() (string, error) {
		return e.Render(name, mergeVars(vars))
	})
	return template.HTML(html), err
}

func (e *Engine) hookFunc(name string, ctx ...map[string]any) (template.HTML, error) {
	var c map[string]any
	if len(ctx) > 0 {
		c = ctx[0]
	}
	html, err := e.InvokeHook(name, c)
	return template.HTML(html), err
}

func (e *Engine) renderObjectFunc(source string, object any) (template.HTML, error) {
	html, err := e.RenderObjectTemplate(source, object)
	return template.HTML(html), err
}

// raw marks a value as safe HTML.
func raw(v any) template.HTML {
	return template.HTML(toString(v))
}

func (env *Environment) renderMarkdown(v any) (template.HTML, error) {
	env.mu.RLock()
	md := env.markdown
	env.mu.RUnlock()

	var buf bytes.Buffer
	if err := md.Convert([]byte(toString(v)), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func filesize(v any) (string, error) {
	n, err := toInt(v)
	if err != nil {
		return "", err
	}
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n)), nil
}

func timeago(t time.Time) string {
	return humanize.Time(t)
}
