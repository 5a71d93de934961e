package templating

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	nameAttrDouble = regexp.MustCompile(`(?i)name="([^'"\[\]]+)([^'"]*)"`)
	nameAttrSingle = regexp.MustCompile(`(?i)name='([^'"\[\]]+)([^'"]*)'`)
	otherAttrs     = regexp.MustCompile(`(?i)(id|for|list|data-target|data-reverse-target|data-target-prefix)=('|")(#?)([^.'"][^'"]*)?('|")`)
	textareaBodies = regexp.MustCompile(`(?is)(<textarea\b[^>]*>)(.*?)(</textarea>)`)
	inputIDRuns    = regexp.MustCompile(`[\[\]]+`)
)

// FormatInputID turns an input name into a valid HTML id, e.g.
// "fields[body][en]" becomes "fields-body-en".
func FormatInputID(name string) string {
	return strings.TrimSuffix(inputIDRuns.ReplaceAllString(name, "-"), "-")
}

// NamespaceInputName nests an input name inside namespace:
// "title" in "fields" becomes "fields[title]" and "title[en]" becomes
// "fields[title][en]". An empty namespace leaves the name untouched.
func NamespaceInputName(name, namespace string) string {
	if namespace == "" || name == "" {
		return name
	}
	i := strings.IndexAny(name, `'"[]`)
	switch {
	case i == 0:
		return name
	case i < 0:
		return namespace + "[" + name + "]"
	default:
		return namespace + "[" + name[:i] + "]" + name[i:]
	}
}

// NamespaceInputID prefixes an id with the formatted namespace.
func NamespaceInputID(id, namespace string) string {
	if namespace == "" {
		return id
	}
	return FormatInputID(namespace) + "-" + id
}

// NamespaceHTML rewrites every name attribute in html so that it is nested
// inside namespace. When otherAttributes is set, id, for, list and the
// data-target family are prefixed with the formatted namespace too, except
// for values that start with ".". Textarea contents are never touched.
func NamespaceHTML(html, namespace string, otherAttributes bool) string {
	if namespace == "" || html == "" {
		return html
	}

	html, restore := protectTextareas(html)

	nameAttr := func(quote string) func(s string, m []int) (string, bool) {
		return func(s string, m []int) (string, bool) {
			return "name=" + quote + namespace + "[" + s[m[2]:m[3]] + "]" + s[m[4]:m[5]] + quote, true
		}
	}
	html = replaceAttrs(nameAttrDouble, html, nameAttr(`"`))
	html = replaceAttrs(nameAttrSingle, html, nameAttr(`'`))

	if otherAttributes {
		idPrefix := FormatInputID(namespace) + "-"
		html = replaceAttrs(otherAttrs, html, func(s string, m []int) (string, bool) {
			if m[8] < 0 || s[m[4]:m[5]] != s[m[10]:m[11]] {
				return "", false
			}
			return s[m[2]:m[3]] + "=" + s[m[4]:m[5]] + s[m[6]:m[7]] + idPrefix + s[m[8]:m[9]] + s[m[10]:m[11]], true
		})
	}

	return restore(html)
}

// replaceAttrs replaces every match of re that is not preceded by a word
// character or "-", so data-name="..." or my_id="..." are left alone. fn
// receives the submatch indexes and may decline a match.
func replaceAttrs(re *regexp.Regexp, s string, fn func(s string, m []int) (string, bool)) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + len(matches)*16)
	last := 0
	for _, m := range matches {
		if m[0] > 0 && isNameChar(s[m[0]-1]) {
			continue
		}
		replacement, ok := fn(s, m)
		if !ok {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(replacement)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func isNameChar(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// protectTextareas swaps every textarea body for a unique marker and returns
// a function that puts the bodies back.
func protectTextareas(html string) (string, func(string) string) {
	var pairs []string
	html = textareaBodies.ReplaceAllStringFunc(html, func(match string) string {
		m := textareaBodies.FindStringSubmatch(match)
		marker := "{marker:" + uuid.NewString() + "}"
		pairs = append(pairs, marker, m[2])
		return m[1] + marker + m[3]
	})
	if len(pairs) == 0 {
		return html, func(s string) string { return s }
	}
	return html, strings.NewReplacer(pairs...).Replace
}
