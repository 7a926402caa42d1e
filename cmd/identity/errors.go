package identity

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Field names the request field the failure belongs to, when there is one.
// Msg is safe to show to clients.
type OpError struct {
	Op    string
	Kind  error
	Field string
	Msg   string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness conflict for a logical field ("login", "email").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports a missing user.
type NotFoundError struct {
	Op  string
	Key string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNotFound)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Key)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

func invalid(op, field, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Field: field, Msg: msg}
}

// FieldOf returns the request field an error is attributed to, if any.
func FieldOf(err error) (field, msg string, ok bool) {
	var oe OpError
	if errors.As(err, &oe) && oe.Field != "" {
		return oe.Field, oe.Msg, true
	}
	var ce ConflictError
	if errors.As(err, &ce) && ce.Field != "" {
		return ce.Field, ce.Field + " already exists", true
	}
	return "", "", false
}

func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
