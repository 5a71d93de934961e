package elements

import (
	"strconv"
	"time"
)

func itoa(i int) string { return strconv.Itoa(i) }

// Entry is a piece of content in a section.
type Entry struct {
	Base
	SectionID     int
	SectionHandle string
	AuthorID      int
	PostDate      time.Time
	ExpiryDate    *time.Time
	now           func() time.Time
}

// HasStatuses reports that entries have statuses.
func (e *Entry) HasStatuses() bool { return true }

// Status returns live, pending, expired or disabled.
func (e *Entry) Status() string {
	if !e.Enabled {
		return StatusDisabled
	}
	now := time.Now()
	if e.now != nil {
		now = e.now()
	}
	switch {
	case e.PostDate.After(now):
		return StatusPending
	case e.ExpiryDate != nil && !e.ExpiryDate.After(now):
		return StatusExpired
	default:
		return StatusLive
	}
}

// IsEditable reports that entries can be edited by users who may publish
// to their section.
func (e *Entry) IsEditable() bool { return true }

// EditPermission is the permission needed to edit the entry.
func (e *Entry) EditPermission() string {
	return "publishEntries:" + itoa(e.SectionID)
}

// CPEditURL returns the control panel URL of the entry's edit page.
func (e *Entry) CPEditURL() string {
	if e.SectionHandle == "" {
		return ""
	}
	return e.cpURL("entries/" + e.SectionHandle + "/" + e.idSlug())
}

// TemplateFields adds the entry's own attributes to the base fields.
func (e *Entry) TemplateFields() map[string]any {
	fields := e.Base.TemplateFields()
	fields["status"] = e.Status()
	fields["section"] = e.SectionHandle
	fields["authorId"] = e.AuthorID
	fields["postDate"] = e.PostDate
	if e.ExpiryDate != nil {
		fields["expiryDate"] = *e.ExpiryDate
	}
	return fields
}
