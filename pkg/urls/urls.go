// Package urls builds the site, control panel and resource URLs used by
// templates.
package urls

import (
	"net/url"
	"strings"
)

// Helper builds URLs from a base URL, the control panel trigger segment and
// the resource trigger segment. It satisfies templating.URLHelper.
type Helper struct {
	base            *url.URL
	cpTrigger       string
	resourceTrigger string
}

// New parses baseURL and returns a helper. cpTrigger and resourceTrigger are
// the first path segments of control panel and resource URLs.
func New(baseURL, cpTrigger, resourceTrigger string) (*Helper, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	return &Helper{
		base:            base,
		cpTrigger:       strings.Trim(cpTrigger, "/"),
		resourceTrigger: strings.Trim(resourceTrigger, "/"),
	}, nil
}

// CPTrigger returns the path segment that starts control panel URLs.
func (h *Helper) CPTrigger() string {
	return h.cpTrigger
}

// ResourceTrigger returns the path segment that starts resource URLs.
func (h *Helper) ResourceTrigger() string {
	return h.resourceTrigger
}

// URL returns the site URL of path with optional query params. Absolute
// URLs are returned unchanged.
func (h *Helper) URL(path string, params url.Values) string {
	if isAbsolute(path) {
		return path
	}
	u := *h.base
	u.Path = joinPath(u.Path, path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// CPURL returns the control panel URL of path.
func (h *Helper) CPURL(path string, params url.Values) string {
	if isAbsolute(path) {
		return path
	}
	return h.URL(joinPath(h.cpTrigger, path), params)
}

// ResourceURL returns the URL a resource path is served from.
func (h *Helper) ResourceURL(path string) string {
	if isAbsolute(path) {
		return path
	}
	return h.URL(joinPath(h.resourceTrigger, path), nil)
}

func joinPath(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.TrimLeft(path, "/")
	if path == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	if base == "" {
		return "/" + path
	}
	return base + "/" + path
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "//") || strings.Contains(path, "://")
}
