package suspender

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps an error code (of type ErrCode)
// and an error message.
type Error struct {
	Code ErrCode // The error code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("SuspenderError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code.
// This allows errors.Is(err, suspender.ErrInvalidArgument).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new SuspenderError with the given code and message.
func NewError(code ErrCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// invalidArgumentf creates an ErrCInvalidArgument error with a formatted message
func invalidArgumentf(format string, args ...interface{}) *Error {
	return NewError(ErrCInvalidArgument, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint64

const (
	ErrCInvalidArgument ErrCode = iota + 1 // 1: A precondition on an argument was violated (e.g. too few path segments).
	ErrCInvalidState                       // 2: The operation is not allowed in the current state (e.g. starting twice).
)

func (c ErrCode) String() string {
	switch c {
	case ErrCInvalidArgument:
		return "InvalidArgument"
	case ErrCInvalidState:
		return "InvalidState"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is
var (
	ErrInvalidArgument = NewError(ErrCInvalidArgument, "invalid argument")
	ErrInvalidState    = NewError(ErrCInvalidState, "invalid state")
)
