// Package dsl holds the tabular test DSL: steps, flows, test cases and suites.
package dsl

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandCallFlow is the only command the runner interprets structurally.
// Every other command is an opaque name dispatched to a keyword handler.
const CommandCallFlow = "CALL_FLOW"

// Commands understood by the bundled keyword handlers.
const (
	CommandOpenURL        = "OPEN_URL"
	CommandClick          = "CLICK"
	CommandTypeText       = "TYPE_TEXT"
	CommandVerifyText     = "VERIFY_TEXT"
	CommandVerifyVisible  = "VERIFY_VISIBLE"
	CommandTakeScreenshot = "TAKE_SCREENSHOT"
	CommandAPICall        = "API_CALL"
	CommandVerifyStatus   = "VERIFY_STATUS"
	CommandStoreResponse  = "STORE_RESPONSE"
	CommandVerifyJSON     = "VERIFY_JSON"
	CommandSet            = "SET"
	CommandAssertEquals   = "ASSERT_EQUALS"
	CommandLog            = "LOG"
	CommandWait           = "WAIT"
)

// NormalizeCommand upper-cases and trims a command name.
func NormalizeCommand(command string) string {
	return strings.ToUpper(strings.TrimSpace(command))
}

// FailureCategory decides what happens to the rest of the plan when a step fails.
type FailureCategory string

// Failure categories.
const (
	FailureUnspecified FailureCategory = ""
	FailureContinue    FailureCategory = "CONTINUE_ON_FAILURE"
	FailureStop        FailureCategory = "STOP_ON_FAILURE"
)

// ParseFailureCategory parses the Failure Category column. Blank parses to
// FailureUnspecified; the runner applies the configured default to it.
func ParseFailureCategory(s string) (FailureCategory, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return FailureUnspecified, nil
	case "CONTINUE_ON_FAILURE", "CONTINUE":
		return FailureContinue, nil
	case "STOP_ON_FAILURE", "STOP":
		return FailureStop, nil
	}
	return FailureUnspecified, fmt.Errorf("unknown failure category %q", s)
}

// Or returns c, or def when c is unspecified.
func (c FailureCategory) Or(def FailureCategory) FailureCategory {
	if c == FailureUnspecified {
		return def
	}
	return c
}

// ParseFlag parses Execute-style flags: Y, YES, TRUE, 1 (any case) are true,
// N, NO, FALSE, 0 are false, blank yields def.
func ParseFlag(s string, def bool) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "Y", "YES", "TRUE", "1":
		return true, nil
	case "N", "NO", "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag value %q", s)
}

// ParseSeq parses the Seq column. Blank yields 0.
func ParseSeq(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// Spreadsheets hand numbers back as "3" or "3.0".
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return 0, fmt.Errorf("invalid Seq value %q", s)
}

// Origin locates a step in its source table.
type Origin struct {
	Table string `json:"table"` // Sheet, flow or file the row came from
	Row   int    `json:"row"`   // 1-based row number, header excluded
}

// String renders the origin as table:row.
func (o Origin) String() string {
	if o.Row > 0 {
		return fmt.Sprintf("%s:%d", o.Table, o.Row)
	}
	return o.Table
}

// Step is one row of a steps sheet or flow.
type Step struct {
	Seq       int
	Execute   bool
	Command   string
	Target    string
	Data      string
	Condition string
	Store     string
	Failure   FailureCategory
	Source    Origin
}

// IsCallFlow reports whether the step is a CALL_FLOW reference.
func (s Step) IsCallFlow() bool {
	return NormalizeCommand(s.Command) == CommandCallFlow
}

// Describe returns the step as "COMMAND | TARGET | DATA".
func (s Step) Describe() string {
	return fmt.Sprintf("%s | %s | %s", NormalizeCommand(s.Command), s.Target, s.Data)
}
