package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Executor or resolution failure
	StatusSkipped                   // Disabled, guarded out, or skipped after abort
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// PlanState is the state of a plan run.
//
//	Running -> {Running, StepFailed} -> {Running, Aborted, Completed}
type PlanState int

const (
	PlanRunning PlanState = iota
	PlanStepFailed
	PlanAborted
	PlanCompleted
)

// String returns the string representation of PlanState
func (s PlanState) String() string {
	switch s {
	case PlanRunning:
		return "running"
	case PlanStepFailed:
		return "step_failed"
	case PlanAborted:
		return "aborted"
	case PlanCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in reports.
func (s PlanState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true for Aborted and Completed.
func (s PlanState) IsTerminal() bool {
	return s == PlanAborted || s == PlanCompleted
}

// Outcome is the reported result of one test case.
type Outcome string

const (
	OutcomePassed       Outcome = "passed"
	OutcomeFailed       Outcome = "failed"
	OutcomeSetupFailure Outcome = "setup_failure" // expansion failed, nothing ran
	OutcomeSkipped      Outcome = "skipped"
	OutcomeCancelled    Outcome = "cancelled" // run interrupted before the plan finished
)

// IsSuccess returns true for passed and skipped test cases.
func (o Outcome) IsSuccess() bool {
	return o == OutcomePassed || o == OutcomeSkipped
}

// ErrorKind classifies errors by the phase that raised them
type ErrorKind int

const (
	KindNone       ErrorKind = iota // No error
	KindLoad                        // Duplicate/empty names, malformed tables
	KindExpansion                   // Unknown flow, cycles, invalid targets
	KindResolution                  // Malformed reference, unknown locator, undefined variable
	KindExecution                   // Failure reported by the keyword executor
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindLoad:
		return "load"
	case KindExpansion:
		return "expansion"
	case KindResolution:
		return "resolution"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in reports.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
