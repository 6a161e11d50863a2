// Package plan expands CALL_FLOW references into flat execution plans.
// Every flow reference is resolved and checked for cycles before a single
// step runs.
package plan

import (
	"strings"

	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// Phase is the part of a test case a plan step belongs to.
type Phase string

// Phases, in execution order.
const (
	PhaseBefore Phase = "before"
	PhaseMain   Phase = "main"
	PhaseAfter  Phase = "after"
)

// Call is one flow invocation a step was inlined through.
type Call struct {
	ID     int               // Unique per invocation within one expansion
	Flow   string            // Flow name
	Params map[string]string // Call-site parameters from the CALL_FLOW DATA cell
}

// Step is a leaf step of an expanded plan.
type Step struct {
	dsl.Step
	Phase Phase
	Calls []Call // Invocation chain, outermost first; empty for top-level steps
}

// Flows returns the names of the invocation chain, outermost first.
func (s Step) Flows() []string {
	if len(s.Calls) == 0 {
		return nil
	}
	names := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		names[i] = c.Flow
	}
	return names
}

// Describe returns "COMMAND | TARGET | DATA", prefixed by the flow chain
// when the step came from a flow.
func (s Step) Describe() string {
	d := s.Step.Describe()
	if len(s.Calls) == 0 {
		return d
	}
	return strings.Join(s.Flows(), " > ") + " :: " + d
}

// Plan is the expanded, CALL_FLOW-free step list of one test case.
type Plan struct {
	TestCase string
	Steps    []Step
}

// Count returns the number of steps in phase.
func (p *Plan) Count(phase Phase) int {
	n := 0
	for _, s := range p.Steps {
		if s.Phase == phase {
			n++
		}
	}
	return n
}

// Commands returns the distinct commands of the plan in first-seen order.
func (p *Plan) Commands() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range p.Steps {
		if !seen[s.Command] {
			seen[s.Command] = true
			out = append(out, s.Command)
		}
	}
	return out
}
