package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Locale describes a supported locale.
type Locale struct {
	ID string `json:"id"`
	// Name is the locale's name in its own language, e.g. "Deutsch".
	Name string `json:"name"`
}

// Service answers locale questions for requests.
type Service struct {
	catalog *Catalog
}

// NewService creates a locale service backed by catalog.
func NewService(catalog *Catalog) *Service {
	return &Service{catalog: catalog}
}

// Locales lists the supported locales.
func (s *Service) Locales() []Locale {
	tags := s.catalog.Tags()
	locales := make([]Locale, 0, len(tags))
	for _, tag := range tags {
		locales = append(locales, Locale{ID: tag.String(), Name: display.Self.Name(tag)})
	}
	return locales
}

// FromAcceptLanguage picks the supported locale that best matches an
// Accept-Language header. Unparseable headers get the source language.
func (s *Service) FromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return s.catalog.Tags()[0].String()
	}
	return s.catalog.Match(tags...).String()
}

// Translator returns the translator for a locale ID.
func (s *Service) Translator(locale string) *Translator {
	return s.catalog.Translator(locale)
}
