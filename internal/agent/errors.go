// internal/agent/errors.go
package agent

import (
	"context"
	"errors"

	"github.com/xkilldash9x/visionfill/internal/form"
	"github.com/xkilldash9x/visionfill/internal/locator"
	"github.com/xkilldash9x/visionfill/internal/marker"
)

// ErrorCode is a string type used for structured error reporting from the
// action router. Codes only appear in logs; callers see a bool.
type ErrorCode string

const (
	// -- General Execution Errors --
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"
	ErrCodeTimeoutError      ErrorCode = "TIMEOUT_ERROR"

	// -- DOM Errors --
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeStaleMarker     ErrorCode = "STALE_MARKER"
	ErrCodeFileMissing     ErrorCode = "FILE_MISSING"

	// -- Internal System Errors --
	ErrCodeExecutorPanic ErrorCode = "EXECUTOR_PANIC"
)

var (
	// ErrUnknownAction is returned when no handler is registered for a kind.
	ErrUnknownAction = errors.New("no handler registered for action kind")
	// ErrMissingParameter is returned when a descriptor lacks a field its
	// kind needs.
	ErrMissingParameter = errors.New("action is missing a required parameter")
)

// ClassifyError maps an executor error to an ErrorCode.
func ClassifyError(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownAction):
		return ErrCodeUnknownAction
	case errors.Is(err, ErrMissingParameter):
		return ErrCodeInvalidParameters
	case errors.Is(err, marker.ErrStaleEpoch):
		return ErrCodeStaleMarker
	case errors.Is(err, locator.ErrNotResolved), errors.Is(err, marker.ErrElementNotFound):
		return ErrCodeElementNotFound
	case errors.Is(err, form.ErrFileMissing):
		return ErrCodeFileMissing
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeoutError
	default:
		return ErrCodeExecutionFailure
	}
}
