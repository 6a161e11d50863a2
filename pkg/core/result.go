package core

import (
	"time"
)

// StepResult captures the complete outcome of executing a single plan step
type StepResult struct {
	// Identity
	Index   int      `json:"index"`           // 0-based position in the expanded plan
	Seq     int      `json:"seq"`             // Seq column of the source row
	Phase   string   `json:"phase"`           // before, main, after
	Command string   `json:"command"`         // Command as written: CLICK, API_CALL, etc.
	Target  string   `json:"target,omitempty"` // Target as written
	Data    string   `json:"data,omitempty"`   // Data as written
	Flows   []string `json:"flows,omitempty"`  // Flow call chain the step was inlined through

	// Resolution
	ResolvedTarget string   `json:"resolvedTarget,omitempty"`
	Locator        *Locator `json:"locator,omitempty"`

	// Status
	Status          StepStatus `json:"status"`
	FailureCategory string     `json:"failureCategory,omitempty"` // Policy applied on failure
	ErrorKind       ErrorKind  `json:"errorKind,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message     string       `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
	Stored      string       `json:"stored,omitempty"` // STORE key written by this step
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Describe renders the step the way the step log shows it.
func (s StepResult) Describe() string {
	return s.Command + " | " + s.Target + " | " + s.Data
}

// TestCaseResult captures the complete outcome of one test case
type TestCaseResult struct {
	// Identity
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Status
	Outcome   Outcome   `json:"outcome"`
	State     PlanState `json:"state"`
	Cancelled bool      `json:"cancelled,omitempty"` // Context was cancelled before the plan finished

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps []StepResult `json:"steps"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`

	// Error info (setup failure or first failing step)
	Error      string `json:"error,omitempty"`
	FailedStep string `json:"failedStep,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (t *TestCaseResult) ComputeSummary() {
	t.TotalSteps = len(t.Steps)
	t.PassedSteps = 0
	t.FailedSteps = 0
	t.SkippedSteps = 0

	for _, step := range t.Steps {
		switch step.Status {
		case StatusPassed:
			t.PassedSteps++
		case StatusFailed:
			t.FailedSteps++
		case StatusSkipped:
			t.SkippedSteps++
		}
	}
}

// hasFailure checks if any step in the slice has failed
func hasFailure(steps []StepResult) bool {
	for _, step := range steps {
		if step.Status == StatusFailed {
			return true
		}
	}
	return false
}

// AggregateOutcome determines the test case outcome from step results.
// Rules:
//   - Any failed step, CONTINUE or STOP, in any phase → OutcomeFailed
//   - Cancelled before the plan finished → OutcomeCancelled
//   - Otherwise → OutcomePassed
func (t *TestCaseResult) AggregateOutcome() Outcome {
	if hasFailure(t.Steps) {
		return OutcomeFailed
	}
	if t.Cancelled {
		return OutcomeCancelled
	}
	return OutcomePassed
}

// SuiteResult captures the complete outcome of a run over many test cases
type SuiteResult struct {
	// Identity
	Name        string `json:"name"`
	RunID       string `json:"runId"`
	Environment string `json:"environment,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	TestCases []TestCaseResult `json:"testCases"`

	// Summary
	Total         int `json:"total"`
	Passed        int `json:"passed"`
	Failed        int `json:"failed"`
	SetupFailures int `json:"setupFailures"`
	Skipped       int `json:"skipped"`
	Cancelled     int `json:"cancelled"`
}

// ComputeSummary calculates test case counts from the TestCases slice
func (s *SuiteResult) ComputeSummary() {
	s.Total = len(s.TestCases)
	s.Passed = 0
	s.Failed = 0
	s.SetupFailures = 0
	s.Skipped = 0
	s.Cancelled = 0

	for _, tc := range s.TestCases {
		switch tc.Outcome {
		case OutcomePassed:
			s.Passed++
		case OutcomeFailed:
			s.Failed++
		case OutcomeSetupFailure:
			s.SetupFailures++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeCancelled:
			s.Cancelled++
		}
	}
}

// Success returns true if no test case failed, failed to set up or was
// cancelled
func (s *SuiteResult) Success() bool {
	for _, tc := range s.TestCases {
		if !tc.Outcome.IsSuccess() {
			return false
		}
	}
	return true
}
