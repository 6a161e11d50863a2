package core

import (
	"fmt"
)

// Error is the structured error used across loading, expansion, resolution
// and execution. Two errors match under errors.Is when their codes match.
type Error struct {
	Kind    ErrorKind
	Code    string                 // Machine-readable code: unknown_flow, undefined_variable, etc.
	Message string                 // Human-readable message
	Details map[string]interface{} // Additional context (flow, locator, variable names)
	Cause   error                  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(msg string) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: msg,
		Details: e.Details,
		Cause:   e.Cause,
	}
}

// WithMessagef is WithMessage with formatting.
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
		Cause:   e.Cause,
	}
}

// Predefined errors
var (
	// Load errors abort the whole run before anything executes.
	ErrDuplicateFlowName = &Error{
		Kind:    KindLoad,
		Code:    "duplicate_flow_name",
		Message: "duplicate flow name",
	}
	ErrEmptyFlowName = &Error{
		Kind:    KindLoad,
		Code:    "empty_flow_name",
		Message: "flow definition has no name",
	}
	ErrMalformedTable = &Error{
		Kind:    KindLoad,
		Code:    "malformed_table",
		Message: "malformed table",
	}
	ErrDuplicateLocator = &Error{
		Kind:    KindLoad,
		Code:    "duplicate_locator",
		Message: "duplicate locator",
	}
	ErrDuplicateTestCase = &Error{
		Kind:    KindLoad,
		Code:    "duplicate_test_case",
		Message: "duplicate test case id",
	}
	ErrInvalidConfig = &Error{
		Kind:    KindLoad,
		Code:    "invalid_config",
		Message: "invalid configuration",
	}

	// Expansion errors fail the owning test case only.
	ErrUnknownFlow = &Error{
		Kind:    KindExpansion,
		Code:    "unknown_flow",
		Message: "unknown flow",
	}
	ErrCircularFlowReference = &Error{
		Kind:    KindExpansion,
		Code:    "circular_flow_reference",
		Message: "circular flow reference",
	}
	ErrInvalidFlowTarget = &Error{
		Kind:    KindExpansion,
		Code:    "invalid_flow_target",
		Message: "CALL_FLOW target is a test case, not a flow",
	}
	ErrEmptyFlowTarget = &Error{
		Kind:    KindExpansion,
		Code:    "empty_flow_target",
		Message: "CALL_FLOW requires a flow name",
	}
	ErrFlowDepthExceeded = &Error{
		Kind:    KindExpansion,
		Code:    "flow_depth_exceeded",
		Message: "flow call depth exceeded",
	}
	ErrUnknownStepsSheet = &Error{
		Kind:    KindExpansion,
		Code:    "unknown_steps_sheet",
		Message: "unknown steps sheet",
	}

	// Resolution errors fail the step they occur in.
	ErrMalformedReference = &Error{
		Kind:    KindResolution,
		Code:    "malformed_reference",
		Message: "invalid locator format, expected PageName.LocatorName",
	}
	ErrUnknownLocator = &Error{
		Kind:    KindResolution,
		Code:    "unknown_locator",
		Message: "locator not found",
	}
	ErrUndefinedVariable = &Error{
		Kind:    KindResolution,
		Code:    "undefined_variable",
		Message: "undefined variable",
	}
	ErrUnknownCommand = &Error{
		Kind:    KindResolution,
		Code:    "unknown_command",
		Message: "command not supported",
	}
	ErrInvalidCondition = &Error{
		Kind:    KindResolution,
		Code:    "invalid_condition",
		Message: "invalid condition",
	}

	// Execution errors come back from the keyword executor.
	ErrStepFailed = &Error{
		Kind:    KindExecution,
		Code:    "step_failed",
		Message: "step failed",
	}
	ErrCancelled = &Error{
		Kind:    KindExecution,
		Code:    "cancelled",
		Message: "execution cancelled",
	}
)

// NewError creates a new Error with the given parameters
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindExecution for foreign errors.
func KindOf(err error) ErrorKind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindExecution
}
