package curriculum

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a subject or curriculum path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a video already exists under an identical path.
	ErrConflict = errors.New("conflict")
)

// FieldError describes a problem with a single payload field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned when a submission is structurally invalid.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid submission"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Error: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
