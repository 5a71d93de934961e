package templating

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadHTML(t *testing.T) {
	o := NewOutput()
	o.IncludeHeadHTML(`<meta name="a">`, false)
	o.IncludeHeadHTML(`<meta name="first">`, true)
	o.IncludeCSSFile("/b.css", false)
	o.IncludeCSSFile("/a.css", true)
	o.IncludeCSSFile("/b.css", false)
	o.IncludeCSS("  .x { color: red; }  ", false)
	o.IncludeCSS(".first {}", true)
	o.IncludeHiResCSS(".hi { zoom: 2; }", false)

	want := strings.Join([]string{
		`<meta name="first">`,
		`<meta name="a">`,
		`<link rel="stylesheet" type="text/css" href="/a.css"/>`,
		`<link rel="stylesheet" type="text/css" href="/b.css"/>`,
		"<style type=\"text/css\">\n.first {}\n\n.x { color: red; }\n\n" + hiResMediaQuery + ".hi { zoom: 2; }\n}\n</style>",
	}, "\n")
	assert.Equal(t, want, o.HeadHTML())
	assert.Empty(t, o.HeadHTML(), "HeadHTML drains the queue")
}

func TestHeadHTMLEscapesURLs(t *testing.T) {
	o := NewOutput()
	o.IncludeCSSFile(`/x.css?a=1&b="2"`, false)
	assert.Equal(t, `<link rel="stylesheet" type="text/css" href="/x.css?a=1&amp;b=&#34;2&#34;"/>`, o.HeadHTML())
}

func TestFootHTML(t *testing.T) {
	o := NewOutput()
	o.IncludeFootHTML("<p>foot</p>", false)
	o.IncludeJSFile("/b.js", false)
	o.IncludeJSFile("/a.js", true)
	o.IncludeJSFile("/a.js", false)
	o.IncludeJS("  one();;\n", false)
	o.IncludeJS("zero()", true)

	want := strings.Join([]string{
		"<p>foot</p>",
		`<script type="text/javascript" src="/a.js"></script>`,
		`<script type="text/javascript" src="/b.js"></script>`,
		ScriptTag("zero();", "one();"),
	}, "\n")
	assert.Equal(t, want, o.FootHTML())
	assert.Empty(t, o.FootHTML(), "FootHTML drains the queue")
}

func TestJSBuffers(t *testing.T) {
	o := NewOutput()

	_, ok := o.ClearJSBuffer(true)
	assert.False(t, ok, "the page buffer cannot be cleared")

	o.IncludeJS("page()", false)
	o.StartJSBuffer()
	o.IncludeJS("a()", false)
	o.IncludeJS("b()", false)

	js, ok := o.ClearJSBuffer(false)
	require.True(t, ok)
	assert.Equal(t, "a();\n\nb();", js)

	o.StartJSBuffer()
	js, ok = o.ClearJSBuffer(true)
	require.True(t, ok)
	assert.Empty(t, js)

	o.StartJSBuffer()
	o.IncludeJS("c()", false)
	js, ok = o.ClearJSBuffer(true)
	require.True(t, ok)
	assert.Equal(t, "<script type=\"text/javascript\">\n/*<![CDATA[*/\nc();\n/*]]>*/\n</script>", js)

	assert.Equal(t, ScriptTag("page();"), o.FootHTML())
}

func TestFootHTMLFlushesOpenBuffers(t *testing.T) {
	o := NewOutput()
	o.IncludeJS("page()", false)
	o.StartJSBuffer()
	o.IncludeJS("nested()", false)
	o.StartJSBuffer()

	assert.Equal(t, ScriptTag("page();")+"\n"+ScriptTag("nested();"), o.FootHTML())

	_, ok := o.ClearJSBuffer(false)
	assert.False(t, ok, "FootHTML closes every buffer")
}
