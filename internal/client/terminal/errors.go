package terminal

import (
	"context"
	"errors"
)

type ErrorCode string

const (
	CodeNetwork         ErrorCode = "network_error"
	CodeTimeout         ErrorCode = "timeout"
	CodeCanceled        ErrorCode = "canceled"
	CodeDeclined        ErrorCode = "declined"
	CodeReaderBusy      ErrorCode = "reader_busy"
	CodeNotConnected    ErrorCode = "not_connected"
	CodeConnectionToken ErrorCode = "connection_token_error"
	CodeInvalidSecret   ErrorCode = "invalid_client_secret"
	CodeNoUpdate        ErrorCode = "no_update_available"
	CodeInvalidState    ErrorCode = "invalid_intent_state"
)

// Error is an SDK failure. Message may be empty, in which case callers fall
// back to the code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes a canceled SDK call match context.Canceled.
func (e *Error) Is(target error) bool {
	return e.Code == CodeCanceled && target == context.Canceled
}

// Describe returns the message, or the code when there is none.
func (e *Error) Describe() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func errorFromContext(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, Message: "operation timed out", Err: err}
	}
	return &Error{Code: CodeCanceled, Message: "operation canceled", Err: err}
}
