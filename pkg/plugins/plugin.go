package plugins

import (
	"fmt"
	"html/template"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the file that marks a directory as a plugin.
const ManifestFile = "plugin.yaml"

var validHandle = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Manifest is the content of a plugin.yaml file.
type Manifest struct {
	Handle      string         `yaml:"handle"`
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	Variables   map[string]any `yaml:"variables"`
}

// Plugin is an installed plugin.
type Plugin struct {
	manifest      Manifest
	templatesPath string
	funcs         template.FuncMap
}

// New creates a plugin from Go. funcs may be nil.
func New(handle, templatesPath string, funcs template.FuncMap) (*Plugin, error) {
	handle = strings.ToLower(handle)
	if !validHandle.MatchString(handle) {
		return nil, fmt.Errorf("invalid plugin handle %q", handle)
	}
	return &Plugin{
		manifest:      Manifest{Handle: handle, Name: handle},
		templatesPath: templatesPath,
		funcs:         funcs,
	}, nil
}

// Handle returns the plugin's lower-case handle.
func (p *Plugin) Handle() string { return p.manifest.Handle }

// Name returns the plugin's display name.
func (p *Plugin) Name() string { return p.manifest.Name }

// Version returns the plugin's version, if its manifest declares one.
func (p *Plugin) Version() string { return p.manifest.Version }

// TemplatesPath returns the directory holding the plugin's templates.
func (p *Plugin) TemplatesPath() string { return p.templatesPath }

// TemplateFuncs returns the functions the plugin adds to templates.
func (p *Plugin) TemplateFuncs() template.FuncMap { return p.funcs }

// Discover loads every plugin found in the direct subdirectories of root.
// Directories without a manifest are ignored; a malformed manifest is an error.
func Discover(fsys afero.Fs, root string) ([]*Plugin, error) {
	entries, err := afero.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory %s: %w", root, err)
	}

	var found []*Plugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := path.Join(root, entry.Name())
		data, err := afero.ReadFile(fsys, path.Join(dir, ManifestFile))
		if err != nil {
			continue
		}
		p, err := fromManifest(dir, data)
		if err != nil {
			return nil, err
		}
		found = append(found, p)
	}
	return found, nil
}

func fromManifest(dir string, data []byte) (*Plugin, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest in %s: %w", dir, err)
	}
	if m.Handle == "" {
		m.Handle = path.Base(dir)
	}
	m.Handle = strings.ToLower(m.Handle)
	if !validHandle.MatchString(m.Handle) {
		return nil, fmt.Errorf("invalid plugin handle %q in %s", m.Handle, dir)
	}
	if m.Name == "" {
		m.Name = m.Handle
	}

	funcs := template.FuncMap{}
	for name, value := range m.Variables {
		funcs[name] = func() any { return value }
	}
	return &Plugin{
		manifest:      m,
		templatesPath: path.Join(dir, "templates"),
		funcs:         funcs,
	}, nil
}
