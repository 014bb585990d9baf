package service

import (
	"github.com/pkg/errors"
)

type ErrorCode string

const (
	ErrorCodeConflict        ErrorCode = "CONFLICT"
	ErrorCodeAlreadyAccepted ErrorCode = "ALREADY_ACCEPTED"
	ErrorCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrorCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrorCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrorCodeInvalidBody     ErrorCode = "INVALID_BODY"
	ErrorCodeUnspecified     ErrorCode = "UNSPECIFIED"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// AsError extracts the coded error from err. Anything uncoded becomes UNSPECIFIED so internals
// never reach the client.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var res *Error
	if errors.As(err, &res) {
		return res
	}
	return NewError(ErrorCodeUnspecified, "internal error")
}

// CodeOf returns the code carried by err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return ""
}

// finish normalises the result of a transaction closure.
func finish(err error) error {
	if err == nil {
		return nil
	}
	return AsError(err)
}
