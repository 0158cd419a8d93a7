package tracer

import (
	"errors"
	"fmt"
)

// ContractError reports a violation of the tracing contract. These are
// programming errors in the traced program, not recoverable runtime
// conditions: the caller's only sensible reaction is to abandon the
// trace.
type ContractError struct {
	// Code identifies the violation category.
	Code ContractErrorCode

	// Message is a human-readable description.
	Message string
}

// ContractErrorCode categorizes tracing contract violations.
type ContractErrorCode string

const (
	// ErrCodeNoActiveTrace indicates an operation was recorded with no
	// operand carrying a live active trace.
	ErrCodeNoActiveTrace ContractErrorCode = "NO_ACTIVE_TRACE"

	// ErrCodeMixedStates indicates operands from two different live
	// traces met in one operation.
	ErrCodeMixedStates ContractErrorCode = "MIXED_TRACING_STATES"

	// ErrCodeUntraceableOutput indicates a requested trace output had
	// no observable data dependence on the trace inputs.
	ErrCodeUntraceableOutput ContractErrorCode = "UNTRACEABLE_OUTPUT"

	// ErrCodeExpiredState indicates use of a TracingState after Close.
	ErrCodeExpiredState ContractErrorCode = "EXPIRED_STATE"

	// ErrCodeBadTraceInput indicates a malformed TraceInput (both or
	// neither of variable/buffer set).
	ErrCodeBadTraceInput ContractErrorCode = "BAD_TRACE_INPUT"
)

// Error implements the error interface.
func (e *ContractError) Error() string {
	return fmt.Sprintf("tracer: %s: %s", e.Code, e.Message)
}

// IsUntraceable reports whether err is an untraceable-output
// violation. Uses errors.As to handle wrapped errors.
func IsUntraceable(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce) && ce.Code == ErrCodeUntraceableOutput
}

// IsExpired reports whether err is an expired-state violation.
func IsExpired(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce) && ce.Code == ErrCodeExpiredState
}

func contractErrorf(code ContractErrorCode, format string, args ...any) *ContractError {
	return &ContractError{Code: code, Message: fmt.Sprintf(format, args...)}
}
