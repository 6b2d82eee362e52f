package errors

import (
	"fmt"
	"testing"
)

func TestErrValidationError(t *testing.T) {
	err := &ErrValidation{Field: "amount", Message: "must be positive"}
	if got, want := err.Error(), "amount: must be positive"; got != want {
		t.Fatalf("unexpected error string: got %q want %q", got, want)
	}
}

func TestIsNotFoundThroughWrap(t *testing.T) {
	err := fmt.Errorf("loading investor: %w", &ErrNotFound{Entity: "investor", ID: "7"})
	if !IsNotFound(err) {
		t.Fatal("expected wrapped ErrNotFound to be detected")
	}
	if IsNotFound(fmt.Errorf("plain")) {
		t.Fatal("plain error must not match")
	}
}

func TestStorageUnwrap(t *testing.T) {
	inner := fmt.Errorf("connection reset")
	err := &ErrStorage{Op: "append transaction", Err: inner}
	if err.Unwrap() != inner {
		t.Fatal("Unwrap must return the wrapped error")
	}
}
