package apperr

import (
	"errors"
	"testing"
)

func TestValidationWrapsSentinel(t *testing.T) {
	err := Validation(errors.New("address: cannot be blank."))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	if got := Message(err); got != "address: cannot be blank." {
		t.Errorf("message = %q", got)
	}
}

func TestValidationNil(t *testing.T) {
	if Validation(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestMessagePlainError(t *testing.T) {
	if got := Message(ErrNotFound); got != "not found" {
		t.Errorf("message = %q", got)
	}
}
