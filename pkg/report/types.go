// Package report provides JSON-based test reporting with real-time updates.
//
// Architecture:
//   - report.json: Main index file (small, frequently updated, mutex-protected)
//   - testcases/tc-XXX.json: Per-test-case detail files (no lock needed)
//   - assets/tc-XXX/: Per-test-case artifacts (screenshots, response bodies)
//
// The index file serves as single source of truth for status and change tracking.
// Consumers poll report.json and only fetch changed test case details as needed.
package report

import (
	"time"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusPassed       Status = "passed"
	StatusFailed       Status = "failed"
	StatusSetupFailure Status = "setup_failure"
	StatusSkipped      Status = "skipped"
	StatusCancelled    Status = "cancelled"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSetupFailure, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

// statusOf maps a test case outcome to a report status.
func statusOf(o core.Outcome) Status {
	switch o {
	case core.OutcomePassed:
		return StatusPassed
	case core.OutcomeFailed:
		return StatusFailed
	case core.OutcomeSetupFailure:
		return StatusSetupFailure
	case core.OutcomeSkipped:
		return StatusSkipped
	case core.OutcomeCancelled:
		return StatusCancelled
	}
	return StatusPending
}

// Index is the main report file (report.json).
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      Status          `json:"status"`
	Suite       string          `json:"suite"`
	Environment string          `json:"environment,omitempty"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Runner      RunnerInfo      `json:"runner"`
	Summary     Summary         `json:"summary"`
	TestCases   []TestCaseEntry `json:"testCases"`
}

// RunnerInfo contains edgeqa-runner information.
type RunnerInfo struct {
	Version string `json:"version"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total         int `json:"total"`
	Passed        int `json:"passed"`
	Failed        int `json:"failed"`
	SetupFailures int `json:"setupFailures"`
	Skipped       int `json:"skipped"`
	Cancelled     int `json:"cancelled"`
	Running       int `json:"running"`
	Pending       int `json:"pending"`
}

// TestCaseEntry is the index entry for a test case (minimal info).
type TestCaseEntry struct {
	Index       int         `json:"index"`    // Original position
	ID          string      `json:"id"`       // Report-local id: tc-000
	TestCase    string      `json:"testCase"` // TestCaseID from the suite
	Description string      `json:"description,omitempty"`
	DataFile    string      `json:"dataFile"`  // Path to detail JSON
	AssetsDir   string      `json:"assetsDir"` // Path to assets directory
	Status      Status      `json:"status"`
	UpdateSeq   uint64      `json:"updateSeq"`
	StartTime   *time.Time  `json:"startTime,omitempty"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	Duration    *int64      `json:"duration,omitempty"` // milliseconds
	LastUpdated *time.Time  `json:"lastUpdated,omitempty"`
	Steps       StepSummary `json:"steps"`
	Error       *string     `json:"error,omitempty"`
	FailedStep  string      `json:"failedStep,omitempty"`
}

// StepSummary contains step counts for a test case.
type StepSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// TestCaseDetail contains full test case execution details
// (testcases/tc-XXX.json).
type TestCaseDetail struct {
	ID          string            `json:"id"`
	TestCase    string            `json:"testCase"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Status      Status            `json:"status"`
	State       string            `json:"state,omitempty"` // Final plan state
	StartTime   time.Time         `json:"startTime"`
	EndTime     *time.Time        `json:"endTime,omitempty"`
	Duration    *int64            `json:"duration,omitempty"` // milliseconds
	Steps       []core.StepResult `json:"steps"`
	Error       string            `json:"error,omitempty"`
}

// TestCaseUpdate contains the fields to update in index for a test case.
type TestCaseUpdate struct {
	Status     Status
	StartTime  *time.Time
	EndTime    *time.Time
	Duration   *int64
	Steps      StepSummary
	Error      *string
	FailedStep string
}
