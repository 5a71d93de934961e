package elements

// Category is an element in a category group.
type Category struct {
	Base
	GroupID     int
	GroupHandle string
}

// HasStatuses reports that categories have statuses.
func (c *Category) HasStatuses() bool { return true }

// IsEditable reports that categories can be edited by users with access to
// their group.
func (c *Category) IsEditable() bool { return true }

// EditPermission is the permission needed to edit the category.
func (c *Category) EditPermission() string {
	return "editCategories:" + itoa(c.GroupID)
}

// CPEditURL returns the control panel URL of the category's edit page.
func (c *Category) CPEditURL() string {
	if c.GroupHandle == "" {
		return ""
	}
	return c.cpURL("categories/" + c.GroupHandle + "/" + c.idSlug())
}

// TemplateFields adds the category's group to the base fields.
func (c *Category) TemplateFields() map[string]any {
	fields := c.Base.TemplateFields()
	fields["status"] = c.Status()
	fields["group"] = c.GroupHandle
	return fields
}
