package elements

import (
	"path"
	"strings"

	"github.com/dustin/go-humanize"
)

// Asset kinds.
const (
	KindImage = "image"
	KindFile  = "file"
)

// Asset is an uploaded file.
type Asset struct {
	Base
	SourceID int
	Filename string
	Kind     string
	Width    int
	Height   int
	Size     int64
}

// Extension returns the lower-case file extension without the dot.
func (a *Asset) Extension() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(a.Filename), "."))
}

// HasThumb reports whether a thumbnail can be generated for the asset.
// Bitmaps are not thumbnailed.
func (a *Asset) HasThumb() bool {
	return a.Kind == KindImage && a.Width > 0 && a.Height > 0 && a.Extension() != "bmp"
}

// ThumbURL returns the URL of a thumbnail of the given size, or "" when the
// asset has no thumbnail.
func (a *Asset) ThumbURL(size int) string {
	if !a.HasThumb() || a.URLs == nil {
		return ""
	}
	return a.URLs.ResourceURL("assetthumbs/" + itoa(a.ElementID) + "/" + itoa(size))
}

// IconURL returns the URL of the file type icon for assets without a thumbnail.
func (a *Asset) IconURL(size int) string {
	if a.HasThumb() || a.URLs == nil {
		return ""
	}
	ext := a.Extension()
	if ext == "" {
		ext = "file"
	}
	return a.URLs.ResourceURL("icons/" + ext + "/" + itoa(size))
}

// IsEditable reports that assets can be edited by users who may upload to
// their source.
func (a *Asset) IsEditable() bool { return true }

// EditPermission is the permission needed to edit the asset.
func (a *Asset) EditPermission() string {
	return "uploadToAssetSource:" + itoa(a.SourceID)
}

// Label returns the title, or the filename for untitled assets.
func (a *Asset) Label() string {
	if strings.TrimSpace(a.Title) != "" {
		return a.Title
	}
	return a.Filename
}

// FormattedSize returns the file size in human-readable form, e.g. "4.2 MB".
func (a *Asset) FormattedSize() string {
	if a.Size < 0 {
		return ""
	}
	return humanize.Bytes(uint64(a.Size))
}

// TemplateFields adds the asset's file attributes to the base fields.
func (a *Asset) TemplateFields() map[string]any {
	fields := a.Base.TemplateFields()
	fields["title"] = a.Label()
	fields["filename"] = a.Filename
	fields["extension"] = a.Extension()
	fields["kind"] = a.Kind
	fields["width"] = a.Width
	fields["height"] = a.Height
	fields["size"] = a.Size
	fields["formattedSize"] = a.FormattedSize()
	return fields
}
