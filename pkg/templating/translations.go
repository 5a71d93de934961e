package templating

import (
	"encoding/json"
	"fmt"
)

// translationQueue remembers every message looked up for the client side.
// A nil entry means the translator had nothing for that message.
type translationQueue map[string]*string

// IncludeTranslations queues messages for Translations. Messages already
// queued are not looked up again.
func (e *Engine) IncludeTranslations(messages ...string) {
	for _, message := range messages {
		if _, seen := e.translations[message]; seen {
			continue
		}
		if translated, ok := e.translate(message); ok {
			e.translations[message] = &translated
		} else {
			e.translations[message] = nil
		}
	}
}

// Translations returns the queued messages that have a translation as a JSON
// object mapping source message to translation, and clears the queue.
func (e *Engine) Translations() (string, error) {
	found := make(map[string]string, len(e.translations))
	for message, translated := range e.translations {
		if translated != nil {
			found[message] = *translated
		}
	}
	e.translations = translationQueue{}

	data, err := json.Marshal(found)
	if err != nil {
		return "", fmt.Errorf("failed to encode translations: %w", err)
	}
	return string(data), nil
}

// Translate returns the translation of message for the request locale, or
// message itself when none exists.
func (e *Engine) Translate(message string, args ...any) string {
	if e.translator != nil {
		if translated, ok := e.translator.Translate(message, args...); ok {
			return translated
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

func (e *Engine) translate(message string) (string, bool) {
	if e.translator == nil {
		return "", false
	}
	translated, ok := e.translator.Translate(message)
	if !ok || translated == message {
		return "", false
	}
	return translated, true
}
