package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a release or settings row does not exist
var ErrNotFound = errors.New("record not found")

// ValidationKind classifies a ValidationError
type ValidationKind string

const (
	ValidationEpisodeOutOfRange ValidationKind = "episode_out_of_range"
	ValidationInvalidTransition ValidationKind = "invalid_transition"
)

// ValidationError is returned when a mutation would break a release invariant
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Kind, e.Message)
}

// Is matches any ValidationError of the same kind, so callers can use the
// exported sentinels with errors.Is.
func (e *ValidationError) Is(target error) bool {
	var other *ValidationError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// ErrorKind returns the classification string of the error
func (e *ValidationError) ErrorKind() string {
	return string(e.Kind)
}

var (
	ErrEpisodeOutOfRange = &ValidationError{Kind: ValidationEpisodeOutOfRange}
	ErrInvalidTransition = &ValidationError{Kind: ValidationInvalidTransition}
)
