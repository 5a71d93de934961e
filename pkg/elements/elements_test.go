package elements

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/CTAG07/Nepenthes/pkg/urls"
)

func testURLs(t *testing.T) *urls.Helper {
	t.Helper()
	h, err := urls.New("https://example.com", "admin", "cpresources")
	require.NoError(t, err)
	return h
}

func TestEntryStatus(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"disabled", Entry{Base: Base{Enabled: false}, PostDate: past}, StatusDisabled},
		{"live", Entry{Base: Base{Enabled: true}, PostDate: past}, StatusLive},
		{"pending", Entry{Base: Base{Enabled: true}, PostDate: future}, StatusPending},
		{"expired", Entry{Base: Base{Enabled: true}, PostDate: past, ExpiryDate: &now}, StatusExpired},
		{"not yet expired", Entry{Base: Base{Enabled: true}, PostDate: past, ExpiryDate: &future}, StatusLive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry
			e.now = func() time.Time { return now }
			assert.Equal(t, tt.want, e.Status())
		})
	}
}

func TestEntryURLs(t *testing.T) {
	h := testURLs(t)
	e := &Entry{
		Base:          Base{ElementID: 12, Title: "Hello", Slug: "hello", URI: "blog/hello", Enabled: true, URLs: h},
		SectionID:     3,
		SectionHandle: "blog",
	}
	assert.Equal(t, "https://example.com/blog/hello", e.URL())
	assert.Equal(t, "https://example.com/admin/entries/blog/12-hello", e.CPEditURL())
	assert.Equal(t, "publishEntries:3", e.EditPermission())

	e.URI = "__home__"
	assert.Equal(t, "https://example.com/", e.URL())

	e.URI = ""
	assert.Empty(t, e.URL())

	c := &Category{Base: Base{ElementID: 4, URLs: h}, GroupID: 2, GroupHandle: "topics"}
	assert.Equal(t, "https://example.com/admin/categories/topics/4", c.CPEditURL())
	assert.Equal(t, "editCategories:2", c.EditPermission())
	assert.Equal(t, StatusDisabled, c.Status())
}

func TestAssetThumbsAndIcons(t *testing.T) {
	h := testURLs(t)
	img := &Asset{Base: Base{ElementID: 5, URLs: h}, Filename: "Photo.JPG", Kind: KindImage, Width: 800, Height: 600}
	assert.Equal(t, "jpg", img.Extension())
	assert.True(t, img.HasThumb())
	assert.Equal(t, "https://example.com/cpresources/assetthumbs/5/30", img.ThumbURL(30))
	assert.Empty(t, img.IconURL(20))
	assert.Equal(t, "Photo.JPG", img.Label())

	bmp := &Asset{Base: Base{ElementID: 6, URLs: h}, Filename: "old.bmp", Kind: KindImage, Width: 10, Height: 10}
	assert.False(t, bmp.HasThumb())
	assert.Equal(t, "https://example.com/cpresources/icons/bmp/20", bmp.IconURL(20))

	noExt := &Asset{Base: Base{ElementID: 7, URLs: h}, Filename: "LICENSE", Kind: KindFile}
	assert.Equal(t, "https://example.com/cpresources/icons/file/20", noExt.IconURL(20))

	doc := &Asset{Base: Base{Title: "Report"}, Filename: "r.pdf", Size: 2048}
	assert.Equal(t, "Report", doc.Label())
	assert.Equal(t, "2.0 kB", doc.FormattedSize())
	assert.Equal(t, "uploadToAssetSource:0", doc.EditPermission())
}

func TestPermissionSet(t *testing.T) {
	set := NewPermissionSet("publishEntries:3", "EditCategories:2")
	assert.True(t, set.Can("publishEntries:3"))
	assert.True(t, set.Can("editcategories:2"))
	assert.False(t, set.Can("publishEntries:4"))

	assert.True(t, NewPermissionSet(AdminPermission).Can("anything"))
	assert.False(t, NewPermissionSet().Can("anything"))
}

func TestSchema(t *testing.T) {
	_, err := NewSchema(Field{Handle: "1bad", Type: PlainText})
	assert.ErrorContains(t, err, "invalid field handle")

	_, err = NewSchema(Field{Handle: "body", Type: PlainText}, Field{Handle: "body", Type: Number})
	assert.ErrorContains(t, err, "duplicate field handle")

	schema, err := NewSchema(
		Field{Handle: "body", Type: PlainText, MaxChars: 5},
		Field{Handle: "rating", Type: Number, ConditionRule: "number"},
		Field{Handle: "featured", Type: Lightswitch, ConditionRule: "lightswitch"},
		Field{Handle: "color", Type: Dropdown, Options: []string{"red", "blue"}},
		Field{Handle: "published", Type: Date},
	)
	require.NoError(t, err)
	assert.Len(t, schema.Fields(), 5)
	assert.Equal(t, []string{"relatedTo", "slug", "trashed", "number", "lightswitch"}, schema.ConditionRuleTypes())

	c := NewContent(schema)
	require.NoError(t, c.Set("body", "short"))
	require.NoError(t, c.Set("rating", 4))
	require.NoError(t, c.Set("color", "red"))
	require.NoError(t, c.Set("published", time.Now()))

	assert.Error(t, c.Set("body", "too long"))
	assert.Error(t, c.Set("rating", "4"))
	assert.Error(t, c.Set("featured", "yes"))
	assert.Error(t, c.Set("color", "green"))
	assert.True(t, errors.Is(c.Set("missing", 1), ErrUnknownField))

	v, ok := c.Get("body")
	assert.True(t, ok)
	assert.Equal(t, "short", v)

	assert.NoError(t, c.Validate("body"))
	err = c.Validate("featured", "nope")
	assert.ErrorIs(t, err, ErrRequired)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestTemplateFields(t *testing.T) {
	schema, err := NewSchema(Field{Handle: "summary", Type: PlainText}, Field{Handle: "slug", Type: PlainText})
	require.NoError(t, err)
	content := NewContent(schema)
	require.NoError(t, content.Set("summary", "A post"))
	require.NoError(t, content.Set("slug", "shadow"))

	e := &Entry{Base: Base{ElementID: 1, Slug: "hello", Enabled: true, Content: content}, SectionHandle: "blog"}
	fields := e.TemplateFields()
	assert.Equal(t, "A post", fields["summary"])
	assert.Equal(t, "hello", fields["slug"], "attributes win over custom fields")
	assert.Equal(t, "blog", fields["section"])
	assert.Equal(t, e.Status(), fields["status"])
}

func TestElementsRenderThroughEngine(t *testing.T) {
	fs := afero.NewMemMapFs()
	config := templating.DefaultConfig()
	config.SiteTemplatesPath = "/site"
	config.CPTemplatesPath = "/cp"
	env := templating.NewEnvironment(slog.New(slog.NewTextHandler(io.Discard, nil)), config, templating.WithFs(fs))
	h := testURLs(t)

	entry := &Entry{
		Base:          Base{ElementID: 12, LocaleID: "en-US", Title: "Hello", Slug: "hello", Enabled: true, URLs: h},
		SectionID:     3,
		SectionHandle: "blog",
		PostDate:      time.Now().Add(-time.Hour),
	}

	site := env.NewEngine(templating.Request{Kind: templating.SiteRequest})
	got, err := site.RenderObjectTemplate("blog/{slug}/{id}", entry)
	require.NoError(t, err)
	assert.Equal(t, "blog/hello/12", got)

	cp := env.NewEngine(templating.Request{Kind: templating.CPRequest},
		templating.WithPermissions(NewPermissionSet("publishEntries:3")))
	card, err := cp.InvokeHook(templating.ElementCardHook, map[string]any{"element": entry})
	require.NoError(t, err)
	assert.Contains(t, card, `data-status="live"`)
	assert.Contains(t, card, "data-editable")
	assert.Contains(t, card, `<a href="https://example.com/admin/entries/blog/12-hello">Hello</a>`)
}
