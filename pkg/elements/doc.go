// Package elements holds the content types Nepenthes renders: entries,
// categories and assets, together with the field schemas their custom content
// is validated against and the permission set of the current user.
//
// Elements satisfy templating.CardElement, so the control panel can render
// them with the element card hook, and expose their values to object
// templates through TemplateFields.
package elements
