package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrorUnsafeMessage      ErrorCode = "UNSAFE_MESSAGE"
	ErrorServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorGeneration         ErrorCode = "GENERATION_ERROR"
	ErrorStore              ErrorCode = "STORE_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the taxonomy code carried by err, or empty when err is
// not a usecase error.
func CodeOf(err error) ErrorCode {
	var ucErr *Error
	if !errors.As(err, &ucErr) {
		return ""
	}
	return ucErr.Code
}
