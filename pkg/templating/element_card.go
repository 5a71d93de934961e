package templating

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// ElementCardHook renders the control panel card of an element. The context
// must carry "element" (a CardElement) and may carry "context" ("index" or
// "field"), "viewMode" ("table" or "thumbs") and "name" (the input name used
// in field context).
const ElementCardHook = "cp.elements.element"

// editPermissioner is implemented by elements that need a permission beyond
// IsEditable before they can be edited.
type editPermissioner interface {
	EditPermission() string
}

type elementCard struct {
	element     CardElement
	context     string
	inputName   string
	thumbClass  string
	iconClass   string
	hasThumb    bool
	hasIcon     bool
	editable    bool
	removeLabel string
}

func elementCardHook(e *Engine, ctx map[string]any) (string, error) {
	element, ok := ctx["element"].(CardElement)
	if !ok {
		return "", nil
	}
	if _, ok := ctx["context"]; !ok {
		ctx["context"] = "index"
	}
	if _, ok := ctx["viewMode"]; !ok {
		ctx["viewMode"] = "table"
	}

	card := elementCard{
		element:    element,
		context:    fmt.Sprint(ctx["context"]),
		thumbClass: "elementthumb" + strconv.Itoa(element.ID()),
		iconClass:  "elementicon" + strconv.Itoa(element.ID()),
		editable:   e.isElementEditable(element),
	}
	if name, ok := ctx["name"].(string); ok {
		card.inputName = name
	}

	thumbSize, iconSize, prefix := 30, 20, ""
	if ctx["viewMode"] == "thumbs" {
		thumbSize, iconSize, prefix = 100, 90, ".thumbsview "
	}

	if thumbURL := element.ThumbURL(thumbSize); thumbURL != "" {
		card.hasThumb = true
		e.IncludeCSS(fmt.Sprintf("%s.%s { background-image: url(%s); }", prefix, card.thumbClass, cssString(thumbURL)), false)
		e.IncludeHiResCSS(fmt.Sprintf("%s.%s { background-image: url(%s); background-size: %dpx; }",
			prefix, card.thumbClass, cssString(element.ThumbURL(thumbSize*2)), thumbSize), false)
	} else if iconURL := element.IconURL(iconSize); iconURL != "" {
		card.hasIcon = true
		e.IncludeCSS(fmt.Sprintf("%s.%s { background-image: url(%s); }", prefix, card.iconClass, cssString(iconURL)), false)
		e.IncludeHiResCSS(fmt.Sprintf("%s.%s { background-image: url(%s); background-size: %dpx; }",
			prefix, card.iconClass, cssString(element.IconURL(iconSize*2)), iconSize), false)
	}

	if card.context == "field" && card.inputName != "" {
		card.removeLabel = e.Translate("Remove")
	}

	var b strings.Builder
	if err := card.component().Render(context.Background(), &b); err != nil {
		return "", fmt.Errorf("failed to render element card: %w", err)
	}
	return b.String(), nil
}

func (e *Engine) isElementEditable(element CardElement) bool {
	if !element.IsEditable() {
		return false
	}
	if p, ok := element.(editPermissioner); ok && p.EditPermission() != "" && e.permissions != nil {
		return e.permissions.Can(p.EditPermission())
	}
	return true
}

func (c elementCard) component() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		el := c.element
		label := templ.EscapeString(el.Label())

		var b strings.Builder
		b.WriteString(`<div class="element`)
		if c.context == "field" {
			b.WriteString(" removable")
		}
		if c.hasThumb {
			b.WriteString(" hasthumb")
		} else if c.hasIcon {
			b.WriteString(" hasicon")
		}
		fmt.Fprintf(&b, `" data-id="%d" data-locale="%s" data-status="%s" data-label="%s" data-url="%s"`,
			el.ID(), templ.EscapeString(el.Locale()), templ.EscapeString(el.Status()), label, templ.EscapeString(el.URL()))
		if el.Level() != 0 {
			fmt.Fprintf(&b, ` data-level="%d"`, el.Level())
		}
		if c.editable {
			b.WriteString(" data-editable")
		}
		b.WriteString(">")

		if c.context == "field" && c.inputName != "" {
			fmt.Fprintf(&b, `<input type="hidden" name="%s[]" value="%d">`, templ.EscapeString(c.inputName), el.ID())
			fmt.Fprintf(&b, `<a class="delete icon" title="%s"></a> `, templ.EscapeString(c.removeLabel))
		}

		if c.hasThumb {
			fmt.Fprintf(&b, `<div class="elementthumb %s"></div> `, c.thumbClass)
		} else if c.hasIcon {
			fmt.Fprintf(&b, `<div class="elementicon %s"></div> `, c.iconClass)
		}

		b.WriteString(`<div class="label">`)
		if el.HasStatuses() {
			fmt.Fprintf(&b, `<span class="status %s"></span>`, templ.EscapeString(el.Status()))
		}
		b.WriteString(`<span class="title">`)
		if editURL := el.CPEditURL(); c.context == "index" && editURL != "" {
			fmt.Fprintf(&b, `<a href="%s">%s</a>`, templ.EscapeString(editURL), label)
		} else {
			b.WriteString(label)
		}
		b.WriteString(`</span></div></div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

var cssStringReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\a `,
	"\r", `\d `,
	"<", `\3c `,
)

// cssString quotes s as a single-quoted CSS string.
func cssString(s string) string {
	return "'" + cssStringReplacer.Replace(s) + "'"
}
