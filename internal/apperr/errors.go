// Package apperr holds the sentinel errors shared across layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// Validation marks err as a validation fault while keeping its message.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Message strips the validation prefix so the user-facing text stays readable.
func Message(err error) string {
	var wrapped interface{ Unwrap() []error }
	if errors.As(err, &wrapped) {
		errs := wrapped.Unwrap()
		if len(errs) == 2 && errors.Is(errs[0], ErrValidation) {
			return errs[1].Error()
		}
	}
	return err.Error()
}
