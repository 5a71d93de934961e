package templating

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTemplateName is matched by errors returned for template names that
	// contain NUL bytes or climb out of the template root.
	ErrInvalidTemplateName = errors.New("invalid template name")

	// ErrTemplateNotFound is matched by errors returned when a template has to be
	// loaded for rendering but no candidate file exists.
	ErrTemplateNotFound = errors.New("template not found")
)

// InvalidTemplateNameError describes why a template name was rejected.
type InvalidTemplateNameError struct {
	Name   string
	Reason string
}

func (e *InvalidTemplateNameError) Error() string {
	return fmt.Sprintf("invalid template name %q: %s", e.Name, e.Reason)
}

func (e *InvalidTemplateNameError) Is(target error) bool {
	return target == ErrInvalidTemplateName
}

// LoaderError is returned by the render operations when the named template
// cannot be found.
type LoaderError struct {
	Name string
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("unable to find the template %q", e.Name)
}

func (e *LoaderError) Is(target error) bool {
	return target == ErrTemplateNotFound
}
