package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("permission denied")
	ErrConflict          = errors.New("request is no longer valid")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrValidation        = errors.New("validation failed")

	// Connection registry.
	ErrAlreadyBound      = errors.New("connection already bound to another user")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrRegistryClosed    = errors.New("connection registry is shut down")
	ErrNotWritable       = errors.New("transport not writable")
)

// TransitionError is returned when the transition table has no entry for the
// (state, event) pair. It matches both ErrInvalidTransition and ErrConflict,
// a stale state is a conflict from the caller's point of view.
type TransitionError struct {
	Entity string
	From   string
	Event  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot apply %q in state %q", e.Entity, e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == ErrConflict
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(msg string, flds ...FieldError) error {
	return &ValidationError{Err: errors.New(msg), Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return ErrValidation.Error()
	}
	return e.Err.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
