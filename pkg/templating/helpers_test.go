package templating

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	testSiteRoot = "/site"
	testCPRoot   = "/cp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *Config {
	config := DefaultConfig()
	config.SiteTemplatesPath = testSiteRoot
	config.CPTemplatesPath = testCPRoot
	return config
}

// writeFiles creates every file in files, keyed by absolute path.
func writeFiles(tb testing.TB, fs afero.Fs, files map[string]string) {
	tb.Helper()
	for path, content := range files {
		require.NoError(tb, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(tb, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
}

// newTestEnv returns an environment reading from an in-memory filesystem
// seeded with files.
func newTestEnv(tb testing.TB, files map[string]string, opts ...EnvironmentOption) (*Environment, afero.Fs) {
	tb.Helper()
	fs := afero.NewMemMapFs()
	writeFiles(tb, fs, files)
	opts = append([]EnvironmentOption{WithFs(fs)}, opts...)
	return NewEnvironment(discardLogger(), testConfig(), opts...), fs
}

type fakePlugin struct {
	handle string
	path   string
	funcs  template.FuncMap
}

func (p *fakePlugin) Handle() string                  { return p.handle }
func (p *fakePlugin) TemplatesPath() string           { return p.path }
func (p *fakePlugin) TemplateFuncs() template.FuncMap { return p.funcs }

type fakePlugins struct {
	loaded    bool
	plugins   []*fakePlugin
	listeners []func()
}

func (s *fakePlugins) Loaded() bool { return s.loaded }

func (s *fakePlugins) Plugin(handle string) (Plugin, bool) {
	for _, p := range s.plugins {
		if p.handle == handle {
			return p, true
		}
	}
	return nil, false
}

func (s *fakePlugins) All() []Plugin {
	all := make([]Plugin, 0, len(s.plugins))
	for _, p := range s.plugins {
		all = append(all, p)
	}
	return all
}

func (s *fakePlugins) OnLoad(fn func()) { s.listeners = append(s.listeners, fn) }

func (s *fakePlugins) load() {
	s.loaded = true
	for _, fn := range s.listeners {
		fn()
	}
}

type mapTranslator map[string]string

func (m mapTranslator) Translate(msg string, args ...any) (string, bool) {
	tr, ok := m[msg]
	if !ok {
		return "", false
	}
	if len(args) > 0 {
		return fmt.Sprintf(tr, args...), true
	}
	return tr, true
}

type fakeURLs struct{}

func (fakeURLs) ResourceURL(path string) string { return "https://example.com/cpresources/" + path }

func (fakeURLs) CPURL(path string, params url.Values) string {
	u := "https://example.com/admin/" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

type fakeFlashes struct {
	resources []string
	js        []string
	err       error
}

func (f *fakeFlashes) JSResourceFlashes() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.resources
	f.resources = nil
	return out, nil
}

func (f *fakeFlashes) JSFlashes() ([]string, error) {
	out := f.js
	f.js = nil
	return out, nil
}

type allowList map[string]bool

func (a allowList) Can(permission string) bool { return a[permission] }

// cardElement is a minimal CardElement for hook tests.
type cardElement struct {
	id         int
	label      string
	status     string
	url        string
	level      int
	thumb      string
	icon       string
	editURL    string
	statuses   bool
	editable   bool
	permission string
}

func (c *cardElement) ID() int           { return c.id }
func (c *cardElement) Locale() string    { return "en-US" }
func (c *cardElement) Status() string    { return c.status }
func (c *cardElement) Label() string     { return c.label }
func (c *cardElement) URL() string       { return c.url }
func (c *cardElement) Level() int        { return c.level }
func (c *cardElement) CPEditURL() string { return c.editURL }
func (c *cardElement) HasStatuses() bool { return c.statuses }
func (c *cardElement) IsEditable() bool  { return c.editable }

func (c *cardElement) EditPermission() string { return c.permission }

func (c *cardElement) ThumbURL(size int) string {
	if c.thumb == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d", c.thumb, size)
}

func (c *cardElement) IconURL(size int) string {
	if c.icon == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d", c.icon, size)
}
