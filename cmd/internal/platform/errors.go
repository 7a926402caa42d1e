package platform

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// FieldError rejects a request because of one of its fields.
type FieldError struct {
	Field string
	Msg   string
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

func notFound(op, kind, id string) error {
	return fmt.Errorf("%s: %s %q: %w", op, kind, id, ErrNotFound)
}
