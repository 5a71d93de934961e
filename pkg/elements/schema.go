package elements

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"
)

// FieldType is the kind of value a field holds.
type FieldType string

const (
	PlainText   FieldType = "plainText"
	Number      FieldType = "number"
	Lightswitch FieldType = "lightswitch"
	Date        FieldType = "date"
	Dropdown    FieldType = "dropdown"
)

// Condition rule types that apply to every element, regardless of its fields.
var builtinConditionRules = []string{"relatedTo", "slug", "trashed"}

var validFieldHandle = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

var (
	// ErrUnknownField is returned when content refers to a field the schema lacks.
	ErrUnknownField = errors.New("unknown field")
	// ErrRequired is returned when a required field has no value.
	ErrRequired = errors.New("value is required")
)

// Field is a custom field definition.
type Field struct {
	Handle   string    `yaml:"handle" json:"handle"`
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Options  []string  `yaml:"options,omitempty" json:"options,omitempty"`
	MaxChars int       `yaml:"max_chars,omitempty" json:"max_chars,omitempty"`
	// ConditionRule names the query condition rule type element queries can
	// filter this field with. Empty when the field cannot be filtered on.
	ConditionRule string `yaml:"condition_rule,omitempty" json:"condition_rule,omitempty"`
}

// Validate checks that value is acceptable for the field. nil is always
// acceptable; required fields are checked by Content.Validate.
func (f Field) Validate(value any) error {
	if value == nil {
		return nil
	}
	switch f.Type {
	case PlainText:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected text, got %T", f.Handle, value)
		}
		if f.MaxChars > 0 && len([]rune(s)) > f.MaxChars {
			return fmt.Errorf("%s: must be at most %d characters", f.Handle, f.MaxChars)
		}
	case Number:
		switch value.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("%s: expected a number, got %T", f.Handle, value)
		}
	case Lightswitch:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected a boolean, got %T", f.Handle, value)
		}
	case Date:
		if _, ok := value.(time.Time); !ok {
			return fmt.Errorf("%s: expected a date, got %T", f.Handle, value)
		}
	case Dropdown:
		s, ok := value.(string)
		if !ok || !slices.Contains(f.Options, s) {
			return fmt.Errorf("%s: %v is not one of the options", f.Handle, value)
		}
	default:
		return fmt.Errorf("%s: unknown field type %q", f.Handle, f.Type)
	}
	return nil
}

// Schema is an ordered set of fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema. Handles must be unique and valid identifiers.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if !validFieldHandle.MatchString(f.Handle) {
			return nil, fmt.Errorf("invalid field handle %q", f.Handle)
		}
		if _, dup := s.index[f.Handle]; dup {
			return nil, fmt.Errorf("duplicate field handle %q", f.Handle)
		}
		s.index[f.Handle] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// Field returns the field with the given handle.
func (s *Schema) Field(handle string) (Field, bool) {
	i, ok := s.index[handle]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Fields returns the fields in definition order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// ConditionRuleTypes lists the condition rules an element query over this
// schema supports: the built-in rules followed by those of the fields.
func (s *Schema) ConditionRuleTypes() []string {
	types := slices.Clone(builtinConditionRules)
	for _, f := range s.fields {
		if f.ConditionRule != "" {
			types = append(types, f.ConditionRule)
		}
	}
	return types
}

// Content is the custom field values of one element.
type Content struct {
	schema *Schema
	values map[string]any
}

// NewContent returns empty content for schema.
func NewContent(schema *Schema) *Content {
	return &Content{schema: schema, values: make(map[string]any)}
}

// Set stores the value of a field after validating it.
func (c *Content) Set(handle string, value any) error {
	f, ok := c.schema.Field(handle)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, handle)
	}
	if err := f.Validate(value); err != nil {
		return err
	}
	c.values[handle] = value
	return nil
}

// Get returns the value of a field.
func (c *Content) Get(handle string) (any, bool) {
	v, ok := c.values[handle]
	return v, ok
}

// Values returns a copy of all field values.
func (c *Content) Values() map[string]any {
	values := make(map[string]any, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return values
}

// Validate revalidates every value and checks that the required fields are
// set. All problems are reported together.
func (c *Content) Validate(required ...string) error {
	var errs []error
	for _, f := range c.schema.fields {
		if err := f.Validate(c.values[f.Handle]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, handle := range required {
		if _, ok := c.schema.Field(handle); !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownField, handle))
			continue
		}
		if !isFilled(c.values[handle]) {
			errs = append(errs, fmt.Errorf("%s: %w", handle, ErrRequired))
		}
	}
	return errors.Join(errs...)
}

func isFilled(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	default:
		return true
	}
}
