// Package locale loads message translations and answers locale questions for
// the rendering engine.
//
// Translations are YAML files named after their locale (en-US.yaml, de.yaml)
// holding a flat map of source message to translation. Messages may contain
// fmt verbs; arguments are formatted with the conventions of the locale.
package locale

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// Catalog holds the translations of every known locale.
type Catalog struct {
	builder  *catalog.Builder
	messages map[language.Tag]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
}

// NewCatalog returns a catalog with no translations. The source language is
// always supported.
func NewCatalog(source language.Tag) *Catalog {
	c := &Catalog{
		builder:  catalog.NewBuilder(catalog.Fallback(source)),
		messages: make(map[language.Tag]map[string]string),
	}
	c.addTag(source)
	return c
}

func (c *Catalog) addTag(tag language.Tag) {
	if _, ok := c.messages[tag]; ok {
		return
	}
	c.messages[tag] = make(map[string]string)
	c.tags = append(c.tags, tag)
	c.matcher = language.NewMatcher(c.tags)
}

// Set adds one translation.
func (c *Catalog) Set(locale, msg, translation string) error {
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	c.addTag(tag)
	if err := c.builder.SetString(tag, msg, translation); err != nil {
		return fmt.Errorf("failed to add translation for %q: %w", msg, err)
	}
	c.messages[tag][msg] = translation
	return nil
}

// LoadDir loads every *.yaml file in dir, using the file name as the locale.
func (c *Catalog) LoadDir(fsys afero.Fs, dir string, logger *slog.Logger) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read translations directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		locale := strings.TrimSuffix(entry.Name(), ".yaml")
		data, err := afero.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read translations for %s: %w", locale, err)
		}
		var translations map[string]string
		if err := yaml.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to parse translations for %s: %w", locale, err)
		}
		for msg, translation := range translations {
			if err := c.Set(locale, msg, translation); err != nil {
				return err
			}
		}
		logger.Info("Loaded translations", "locale", locale, "count", len(translations))
	}
	return nil
}

// Tags returns the supported locales, the source language first.
func (c *Catalog) Tags() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Match returns the supported tag closest to the given locales.
func (c *Catalog) Match(locales ...language.Tag) language.Tag {
	if len(locales) == 0 {
		return c.tags[0]
	}
	_, index, _ := c.matcher.Match(locales...)
	return c.tags[index]
}

// Translator returns a translator for locale, falling back to the closest
// supported locale.
func (c *Catalog) Translator(locale string) *Translator {
	tag := c.tags[0]
	if parsed, err := language.Parse(locale); err == nil {
		tag = c.Match(parsed)
	}
	return &Translator{
		tag:      tag,
		printer:  message.NewPrinter(tag, message.Catalog(c.builder)),
		messages: c.messages[tag],
	}
}

// Translator translates messages into one locale. It satisfies
// templating.Translator.
type Translator struct {
	tag      language.Tag
	printer  *message.Printer
	messages map[string]string
}

// Locale returns the locale the translator was resolved to.
func (t *Translator) Locale() string {
	return t.tag.String()
}

// Translate returns the translation of msg formatted with args. ok is false
// when the locale has no translation for msg.
func (t *Translator) Translate(msg string, args ...any) (string, bool) {
	translation, ok := t.messages[msg]
	if !ok {
		return "", false
	}
	if len(args) == 0 {
		return translation, true
	}
	return t.printer.Sprintf(msg, args...), true
}
