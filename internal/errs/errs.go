// Package errs defines the coded errors surfaced by the lakehouse services.
package errs

import (
	"errors"
	"fmt"
)

const (
	CodeUnknownLayer          = "E_UNKNOWN_LAYER"
	CodeInvalidInput          = "E_INVALID_INPUT"
	CodeEngineExecutionFailed = "E_ENGINE_EXECUTION_FAILED"
	CodeEngineTimeout         = "E_ENGINE_TIMEOUT"
	CodeRecordingFailed       = "E_RECORDING_FAILED"
	CodeTriggerFailed         = "E_TRIGGER_FAILED"
	CodeTriggerTimeout        = "E_TRIGGER_TIMEOUT"
	CodeObjectStore           = "E_OBJECT_STORE"
	CodeInternal              = "E_INTERNAL"
)

// Error wraps a failure with a stable code and a retryability hint.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error         { return e.Err }
func (e *Error) CodeValue() string     { return e.Code }
func (e *Error) RetryableStatus() bool { return e.Retryable }

// CodedError exposes error metadata to transports (handler, workflow).
type CodedError interface {
	error
	CodeValue() string
	RetryableStatus() bool
}

// Wrap builds a coded error around err.
func Wrap(code string, retryable bool, err error) *Error {
	if err == nil {
		return &Error{Code: code, Retryable: retryable}
	}
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// New builds a coded error from a formatted message.
func New(code string, retryable bool, format string, args ...any) *Error {
	return &Error{Code: code, Retryable: retryable, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the code of the first coded error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.CodeValue()
	}
	return CodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code string) bool {
	for err != nil {
		var coded CodedError
		if !errors.As(err, &coded) {
			return false
		}
		if coded.CodeValue() == code {
			return true
		}
		err = errors.Unwrap(coded)
	}
	return false
}

// IsRetryable reports the retryability hint of the outermost coded error.
func IsRetryable(err error) bool {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.RetryableStatus()
	}
	return false
}
