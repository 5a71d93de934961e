package templating

import (
	"slices"
	"strings"

	"github.com/a-h/templ"
)

// hiResMediaQuery opens the block that wraps hi-res CSS in HeadHTML.
const hiResMediaQuery = "@media only screen and (-webkit-min-device-pixel-ratio: 1.5),\n" +
	"only screen and (   -moz-min-device-pixel-ratio: 1.5),\n" +
	"only screen and (     -o-min-device-pixel-ratio: 3/2),\n" +
	"only screen and (        min-device-pixel-ratio: 1.5),\n" +
	"only screen and (        min-resolution: 1.5dppx){\n"

// Output collects the head and foot HTML, stylesheets, scripts and inline
// code that templates queue while rendering. Every getter drains what it
// returns. An Output is not safe for concurrent use.
type Output struct {
	headHTML  []string
	footHTML  []string
	cssFiles  []string
	jsFiles   []string
	css       []string
	hiResCSS  []string
	jsBuffers [][]string
}

// NewOutput returns an empty Output with one open JS buffer.
func NewOutput() *Output {
	return &Output{jsBuffers: [][]string{{}}}
}

func prependOrAppend[T any](queue []T, item T, first bool) []T {
	if first {
		return slices.Insert(queue, 0, item)
	}
	return append(queue, item)
}

// IncludeHeadHTML queues HTML for the page head.
func (o *Output) IncludeHeadHTML(html string, first bool) {
	o.headHTML = prependOrAppend(o.headHTML, html, first)
}

// IncludeFootHTML queues HTML for the end of the page body.
func (o *Output) IncludeFootHTML(html string, first bool) {
	o.footHTML = prependOrAppend(o.footHTML, html, first)
}

// IncludeCSSFile queues a stylesheet link. A URL that is already queued is ignored.
func (o *Output) IncludeCSSFile(url string, first bool) {
	if slices.Contains(o.cssFiles, url) {
		return
	}
	o.cssFiles = prependOrAppend(o.cssFiles, url, first)
}

// IncludeJSFile queues a script file. A URL that is already queued is ignored.
func (o *Output) IncludeJSFile(url string, first bool) {
	if slices.Contains(o.jsFiles, url) {
		return
	}
	o.jsFiles = prependOrAppend(o.jsFiles, url, first)
}

// IncludeCSS queues inline CSS.
func (o *Output) IncludeCSS(css string, first bool) {
	o.css = prependOrAppend(o.css, strings.TrimSpace(css), first)
}

// IncludeHiResCSS queues CSS that only applies to high pixel density screens.
func (o *Output) IncludeHiResCSS(css string, first bool) {
	o.hiResCSS = prependOrAppend(o.hiResCSS, strings.TrimSpace(css), first)
}

// IncludeJS queues a script snippet in the innermost JS buffer. Surrounding
// whitespace and semicolons are trimmed and exactly one ";" is appended.
func (o *Output) IncludeJS(js string, first bool) {
	js = strings.Trim(js, " \t\n\r\x00\x0B;") + ";"
	last := len(o.jsBuffers) - 1
	o.jsBuffers[last] = prependOrAppend(o.jsBuffers[last], js, first)
}

// StartJSBuffer opens a new JS buffer. Scripts included until the matching
// ClearJSBuffer land in it instead of the page.
func (o *Output) StartJSBuffer() {
	o.jsBuffers = append(o.jsBuffers, []string{})
}

// ClearJSBuffer closes the innermost JS buffer and returns its contents,
// wrapped in a script tag when scriptTag is set. ok is false when only the
// page buffer is open. An empty buffer yields ("", true).
func (o *Output) ClearJSBuffer(scriptTag bool) (js string, ok bool) {
	if len(o.jsBuffers) <= 1 {
		return "", false
	}
	last := len(o.jsBuffers) - 1
	buffer := o.jsBuffers[last]
	o.jsBuffers = o.jsBuffers[:last]
	if len(buffer) == 0 {
		return "", true
	}
	if scriptTag {
		return ScriptTag(buffer...), true
	}
	return strings.Join(buffer, "\n\n"), true
}

// HeadHTML drains the head queue. Stylesheet links come first as link tags,
// then all inline CSS (hi-res CSS in one media query block) in a single style
// tag, each appended after the HTML queued with IncludeHeadHTML.
func (o *Output) HeadHTML() string {
	for _, url := range o.cssFiles {
		o.IncludeHeadHTML(`<link rel="stylesheet" type="text/css" href="`+templ.EscapeString(url)+`"/>`, false)
	}
	o.cssFiles = nil

	if len(o.hiResCSS) > 0 {
		o.IncludeCSS(hiResMediaQuery+strings.Join(o.hiResCSS, "\n\n")+"\n}", false)
		o.hiResCSS = nil
	}

	if len(o.css) > 0 {
		o.IncludeHeadHTML("<style type=\"text/css\">\n"+strings.Join(o.css, "\n\n")+"\n</style>", false)
		o.css = nil
	}

	if len(o.headHTML) == 0 {
		return ""
	}
	html := strings.Join(o.headHTML, "\n")
	o.headHTML = nil
	return html
}

// FootHTML drains the foot queue: script file tags, then one inline script
// tag per non-empty JS buffer, after the HTML queued with IncludeFootHTML.
// All JS buffers are closed.
func (o *Output) FootHTML() string {
	for _, url := range o.jsFiles {
		o.IncludeFootHTML(`<script type="text/javascript" src="`+templ.EscapeString(url)+`"></script>`, false)
	}
	o.jsFiles = nil

	for _, buffer := range o.jsBuffers {
		if len(buffer) > 0 {
			o.IncludeFootHTML(ScriptTag(buffer...), false)
		}
	}
	o.jsBuffers = [][]string{{}}

	if len(o.footHTML) == 0 {
		return ""
	}
	html := strings.Join(o.footHTML, "\n")
	o.footHTML = nil
	return html
}

// ScriptTag joins js fragments with blank lines and wraps them in a script tag.
func ScriptTag(js ...string) string {
	return "<script type=\"text/javascript\">\n/*<![CDATA[*/\n" + strings.Join(js, "\n\n") + "\n/*]]>*/\n</script>"
}
