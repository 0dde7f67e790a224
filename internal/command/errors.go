// Where: internal/command/errors.go
// What: Wire-level error taxonomy for manager responses.
// Why: Callers branch on stable codes, not on message text.
package command

import (
	"errors"
	"fmt"
)

// Code identifies a class of command failure in the response envelope.
type Code string

const (
	// CodeInvalidRequest marks malformed or missing request fields.
	// Never retried; no external call is made after detection.
	CodeInvalidRequest Code = "InvalidRequest"

	// CodeUnrecognizedCommand marks an unknown top-level command name.
	CodeUnrecognizedCommand Code = "UnrecognizedCommand"

	// CodeDependencyUnavailable marks an orchestration or parameter-store
	// API that was unreachable or throttled past the retry budget.
	CodeDependencyUnavailable Code = "DependencyUnavailable"

	// CodeResourceNotFound marks a referenced cluster, service, task, or
	// task definition that does not exist. Never retried.
	CodeResourceNotFound Code = "ResourceNotFound"

	// CodeInternal marks an unclassified failure caught at the dispatcher
	// boundary.
	CodeInternal Code = "InternalError"
)

// Error is the structured failure carried in response envelopes and
// per-service result entries.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error under the given code, keeping
// the cause available to errors.Is/As.
func WrapError(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return &Error{Code: code, Message: err.Error(), cause: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the taxonomy code from err, defaulting to CodeInternal
// for errors that never passed through the taxonomy.
func CodeOf(err error) Code {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	return CodeInternal
}
