package elements

import (
	"net/url"
	"strings"
	"time"
)

// Statuses an element can report.
const (
	StatusLive     = "live"
	StatusPending  = "pending"
	StatusExpired  = "expired"
	StatusDisabled = "disabled"
	StatusEnabled  = "enabled"
)

// URLs builds the URLs elements link to.
type URLs interface {
	URL(path string, params url.Values) string
	CPURL(path string, params url.Values) string
	ResourceURL(path string) string
}

// Base holds what every element type shares.
type Base struct {
	ElementID   int
	LocaleID    string
	Title       string
	Slug        string
	URI         string
	Enabled     bool
	Depth       int
	DateCreated time.Time
	DateUpdated time.Time
	Content     *Content
	URLs        URLs
}

// ID returns the element's ID.
func (b *Base) ID() int { return b.ElementID }

// Locale returns the locale the element was loaded in.
func (b *Base) Locale() string { return b.LocaleID }

// Level returns the element's depth in its structure, 0 when it has none.
func (b *Base) Level() int { return b.Depth }

// Label returns the element's title, or its slug when it has no title.
func (b *Base) Label() string {
	if strings.TrimSpace(b.Title) != "" {
		return b.Title
	}
	return b.Slug
}

func (b *Base) String() string { return b.Label() }

// Status returns "enabled" or "disabled".
func (b *Base) Status() string {
	if b.Enabled {
		return StatusEnabled
	}
	return StatusDisabled
}

// URL returns the element's site URL, or "" when it has no URI.
func (b *Base) URL() string {
	if b.URI == "" || b.URLs == nil {
		return ""
	}
	if b.URI == "__home__" {
		return b.URLs.URL("", nil)
	}
	return b.URLs.URL(b.URI, nil)
}

func (b *Base) ThumbURL(int) string { return "" }
func (b *Base) IconURL(int) string  { return "" }
func (b *Base) CPEditURL() string   { return "" }
func (b *Base) HasStatuses() bool   { return false }
func (b *Base) IsEditable() bool    { return false }

// TemplateFields returns the element's attributes and custom field values.
// Custom fields never shadow attributes.
func (b *Base) TemplateFields() map[string]any {
	fields := map[string]any{}
	if b.Content != nil {
		for handle, value := range b.Content.Values() {
			fields[handle] = value
		}
	}
	fields["id"] = b.ElementID
	fields["locale"] = b.LocaleID
	fields["title"] = b.Title
	fields["slug"] = b.Slug
	fields["uri"] = b.URI
	fields["enabled"] = b.Enabled
	fields["level"] = b.Depth
	fields["dateCreated"] = b.DateCreated
	fields["dateUpdated"] = b.DateUpdated
	return fields
}

func (b *Base) cpURL(path string) string {
	if b.URLs == nil {
		return ""
	}
	return b.URLs.CPURL(path, nil)
}

func (b *Base) idSlug() string {
	if b.Slug == "" {
		return itoa(b.ElementID)
	}
	return itoa(b.ElementID) + "-" + b.Slug
}
