package templating

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// TemplateKey identifies a resolved template path in the locator cache.
// Base captures everything besides the name that changes the search: the
// template root, the site locale, plugin eligibility and the cache version.
type TemplateKey struct {
	Base string
	Name string
}

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// normalizeTemplateName converts separators to "/", collapses repeated
// separators and trims leading and trailing ones.
func normalizeTemplateName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = repeatedSlashes.ReplaceAllString(name, "/")
	return strings.Trim(name, "/")
}

// validateTemplateName rejects NUL bytes and names whose ".." segments climb
// above the template root.
func validateTemplateName(name string) error {
	if strings.ContainsRune(name, 0) {
		return &InvalidTemplateNameError{Name: name, Reason: "a template name cannot contain NUL bytes"}
	}
	depth := 0
	for _, segment := range strings.Split(name, "/") {
		switch segment {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return &InvalidTemplateNameError{Name: name, Reason: "looks like you try to load a template outside the template folder"}
			}
		default:
			depth++
		}
	}
	return nil
}

// CleanTemplateName normalizes name the way the locator does and rejects it
// when it is not an acceptable template name.
func CleanTemplateName(name string) (string, error) {
	name = normalizeTemplateName(name)
	if err := validateTemplateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// templatesPath returns the template root for a request without trailing separators.
func (env *Environment) templatesPath(req Request) string {
	env.mu.RLock()
	defer env.mu.RUnlock()
	root := env.config.SiteTemplatesPath
	if req.isCP() {
		root = env.config.CPTemplatesPath
	}
	return strings.TrimRight(root, `/\`)
}

// searchLists returns the extensions and index filenames used for a request.
func (env *Environment) searchLists(req Request) (extensions, indexes []string) {
	if req.isCP() {
		return cpTemplateExtensions, cpIndexFilenames
	}
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.config.DefaultTemplateExtensions, env.config.IndexTemplateFilenames
}

func pluginEligible(req Request) bool {
	return !req.isConsole() && (req.isCP() || req.Action)
}

func (env *Environment) templateKey(req Request, root, name string) TemplateKey {
	base := root
	if req.isSite() && req.Locale != "" {
		base += "@" + req.Locale
	}
	if pluginEligible(req) {
		base += "+plugins"
	}
	env.mu.RLock()
	if env.config.CacheVersion != "" {
		base += "#" + env.config.CacheVersion
	}
	env.mu.RUnlock()
	return TemplateKey{Base: base, Name: name}
}

// findTemplate resolves name to a template file for req. It returns "" when no
// candidate exists. Hits and misses are both cached for the lifetime of the
// environment.
func (env *Environment) findTemplate(req Request, name string) (string, error) {
	name, err := CleanTemplateName(name)
	if err != nil {
		return "", err
	}

	root := env.templatesPath(req)
	key := env.templateKey(req, root, name)

	env.mu.RLock()
	path, cached := env.paths[key]
	env.mu.RUnlock()
	if cached {
		return path, nil
	}

	path = env.locate(req, root, name)

	env.mu.Lock()
	env.paths[key] = path
	env.mu.Unlock()

	if path == "" {
		env.logger.Debug("Template not found", "template", name, "root", root, "request", req.Kind.String())
	}
	return path, nil
}

func (env *Environment) locate(req Request, root, name string) string {
	extensions, indexes := env.searchLists(req)

	var basePaths []string
	if req.isSite() && req.Locale != "" {
		localized := filepath.Join(root, req.Locale)
		if ok, _ := afero.DirExists(env.fs, localized); ok {
			basePaths = append(basePaths, localized)
		}
	}
	basePaths = append(basePaths, root)

	for _, basePath := range basePaths {
		if path := env.searchBase(basePath, name, extensions, indexes); path != "" {
			return path
		}
	}

	if !pluginEligible(req) || env.plugins == nil {
		return ""
	}

	var parts []string
	for _, part := range strings.Split(strings.ToValidUTF8(name, ""), "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	plugin, ok := env.plugins.Plugin(strings.ToLower(parts[0]))
	if !ok {
		return ""
	}
	rest := strings.Join(parts[1:], "/")
	if validateTemplateName(rest) != nil {
		return ""
	}
	return env.searchBase(plugin.TemplatesPath(), rest, extensions, indexes)
}

// searchBase tries, in order: the literal name, the name with each extension,
// and each index filename with each extension inside the name's directory.
func (env *Environment) searchBase(basePath, name string, extensions, indexes []string) string {
	basePath = strings.TrimRight(filepath.ToSlash(basePath), "/")
	name = strings.Trim(filepath.ToSlash(name), "/")

	if name != "" {
		if candidate := filepath.Join(basePath, name); env.isFile(candidate) {
			return candidate
		}
		for _, ext := range extensions {
			if candidate := filepath.Join(basePath, name+"."+ext); env.isFile(candidate) {
				return candidate
			}
		}
	}

	for _, index := range indexes {
		for _, ext := range extensions {
			if candidate := filepath.Join(basePath, name, index+"."+ext); env.isFile(candidate) {
				return candidate
			}
		}
	}
	return ""
}

func (env *Environment) isFile(path string) bool {
	info, err := env.fs.Stat(path)
	return err == nil && !info.IsDir()
}
