package core

import (
	"context"
	"time"
)

// Executor runs one fully resolved step. Implementations drive a browser,
// an HTTP client, or anything else; the runner handles flow logic and
// failure policy, the Executor just performs the action.
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) Result

// Execute calls f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

// Request is a single resolved step handed to an Executor.
type Request struct {
	Command   string // Upper-case command name: CLICK, API_CALL, etc.
	Target    string // Target after variable substitution (primary selector for locator targets)
	Data      string // Data after variable substitution
	Condition string // Condition after variable substitution, passed through opaque

	// Locator is set when the command takes a locator target.
	Locator *Locator

	// Vars is a read-only snapshot of the variable scope at dispatch time.
	Vars map[string]string
}

// Locator carries both candidates of a resolved Page.Name reference.
// Falling back from primary to secondary is the executor's decision.
type Locator struct {
	Reference string `json:"reference"` // Page.Name as written in the step
	Type      string `json:"type"`
	Primary   string `json:"primary"`   // Rendered primary selector
	Secondary string `json:"secondary"` // Rendered secondary selector, may be empty
}

// Candidates returns the non-empty selectors, primary first.
func (l *Locator) Candidates() []string {
	out := make([]string, 0, 2)
	if l.Primary != "" {
		out = append(out, l.Primary)
	}
	if l.Secondary != "" {
		out = append(out, l.Secondary)
	}
	return out
}

// Result is the outcome of executing a single step
type Result struct {
	// Core outcome
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// StoreValue is written to the step's STORE key when set.
	StoreValue *string `json:"storeValue,omitempty"`

	// Generic data for command-specific results (response bodies, selectors used)
	Data interface{} `json:"data,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// Success builds a passing Result.
func Success(msg string) Result {
	return Result{Success: true, Message: msg}
}

// SuccessWithValue builds a passing Result carrying a store value.
func SuccessWithValue(msg, value string) Result {
	return Result{Success: true, Message: msg, StoreValue: &value}
}

// Failure builds a failing Result from err.
func Failure(err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{Success: false, Error: err, Message: msg}
}
