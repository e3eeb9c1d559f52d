package suspender

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := NewError(ErrCInvalidState, "already started")

	if !errors.Is(err, ErrInvalidState) {
		t.Error("errors.Is should match by code")
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Error("errors.Is should not match a different code")
	}

	wrapped := fmt.Errorf("start: %w", err)
	if !errors.Is(wrapped, ErrInvalidState) {
		t.Error("errors.Is should match wrapped errors")
	}

	var e *Error
	if !errors.As(wrapped, &e) || e.Msg != "already started" {
		t.Errorf("errors.As should unwrap to *Error, got %v", e)
	}
}

func TestErrCodeString(t *testing.T) {
	if ErrCInvalidArgument.String() != "InvalidArgument" || ErrCInvalidState.String() != "InvalidState" {
		t.Error("Unexpected error code names")
	}
	if ErrCode(99).String() != "Unknown" {
		t.Error("Unknown codes should print as Unknown")
	}
}
