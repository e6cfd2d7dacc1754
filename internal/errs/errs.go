// Package errs carries the error taxonomy shared by the managers and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

// Error codes. The API layer maps each one to exactly one HTTP status.
const (
	EUnauthenticated = "unauthenticated"
	EForbidden       = "forbidden"
	ENotFound        = "not found"
	EQuotaExceeded   = "quota exceeded"
	EInvalid         = "invalid"
	EConflict        = "conflict"
	EInternal        = "internal error"
)

// Error is a coded error.
//
// Code is meant for automated handling, Msg is safe to show to the caller,
// Op names the operation that failed and Err is the wrapped cause.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.message(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.message())
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.message(), e.Err)
	}
	return e.message()
}

func (e *Error) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the code of the first *Error in err's chain, or EInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return EInternal
}

// Message returns the caller-safe message of err. Internal errors never expose their cause.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Code == EInternal || e.Code == "" {
		return "Server error"
	}
	return e.message()
}

func Unauthenticated(msg string) *Error {
	return &Error{Code: EUnauthenticated, Msg: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: EForbidden, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: ENotFound, Msg: msg}
}

func Invalid(msg string) *Error {
	return &Error{Code: EInvalid, Msg: msg}
}

func Conflict(msg string) *Error {
	return &Error{Code: EConflict, Msg: msg}
}

func QuotaExceeded(msg string) *Error {
	return &Error{Code: EQuotaExceeded, Msg: msg}
}

// Internal wraps err as an internal failure of op.
func Internal(op string, err error) *Error {
	return &Error{Code: EInternal, Op: op, Err: err}
}
