//go:build property
// +build property

package templating

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNamespaceProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	inputName := gen.RegexMatch(`[a-z][a-z0-9]{0,8}(\[[a-z0-9]{1,6}\]){0,3}`)
	namespace := gen.RegexMatch(`[a-z][a-z0-9]{0,8}(\[[a-z0-9]{1,6}\]){0,2}`)

	properties.Property("formatted ids never contain brackets", prop.ForAll(
		func(name string) bool {
			id := FormatInputID(name)
			return !strings.ContainsAny(id, "[]")
		},
		inputName,
	))

	properties.Property("namespaced names start with the namespace", prop.ForAll(
		func(name, ns string) bool {
			return strings.HasPrefix(NamespaceInputName(name, ns), ns+"[")
		},
		inputName, namespace,
	))

	properties.Property("an empty namespace leaves names alone", prop.ForAll(
		func(name string) bool {
			return NamespaceInputName(name, "") == name
		},
		inputName,
	))

	properties.Property("namespaced ids are prefixed with the formatted namespace", prop.ForAll(
		func(name, ns string) bool {
			return strings.HasPrefix(NamespaceInputID(name, ns), FormatInputID(ns)+"-")
		},
		inputName, namespace,
	))

	properties.TestingRun(t)
}

func TestCleanTemplateNameProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	segments := gen.SliceOf(gen.OneConstOf("..", ".", "", "a", "blog", "b2"))

	properties.Property("accepted names never climb above the root", prop.ForAll(
		func(parts []string) bool {
			name, err := CleanTemplateName(strings.Join(parts, "/"))
			if err != nil {
				return true
			}
			depth := 0
			for _, segment := range strings.Split(name, "/") {
				switch segment {
				case "", ".":
				case "..":
					depth--
				default:
					depth++
				}
				if depth < 0 {
					return false
				}
			}
			return true
		},
		segments,
	))

	properties.Property("cleaned names have no surrounding or doubled slashes", prop.ForAll(
		func(parts []string) bool {
			name, err := CleanTemplateName(strings.Join(parts, "/"))
			if err != nil {
				return true
			}
			return !strings.HasPrefix(name, "/") && !strings.HasSuffix(name, "/") && !strings.Contains(name, "//")
		},
		segments,
	))

	properties.TestingRun(t)
}
