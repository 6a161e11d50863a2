package plan

import (
	"fmt"
	"sort"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// Build expands one test case: BeforeHook, StepsSheet, AfterHook. Hooks
// behave like a CALL_FLOW of the named flow. Any error is a setup failure
// of that test case alone.
func Build(suite *dsl.Suite, tc dsl.TestCase, opts Options) (*Plan, error) {
	if opts.TestCases == nil {
		opts.TestCases = suite.TestCaseIDs()
	}

	steps, ok := suite.Sheets[tc.StepsSheet]
	if !ok {
		return nil, core.ErrUnknownStepsSheet.
			WithMessagef("test case %s: unknown steps sheet %s", tc.ID, tc.StepsSheet).
			WithDetails(map[string]interface{}{"testCase": tc.ID, "sheet": tc.StepsSheet})
	}

	e := &expander{flows: suite.Flows, opts: opts}
	p := &Plan{TestCase: tc.ID}

	before, err := e.hook(tc, "BeforeHook", tc.BeforeHook, PhaseBefore)
	if err != nil {
		return nil, err
	}
	p.Steps = append(p.Steps, before...)

	main, err := e.expand(steps, PhaseMain, nil, nil)
	if err != nil {
		return nil, err
	}
	p.Steps = append(p.Steps, main...)

	after, err := e.hook(tc, "AfterHook", tc.AfterHook, PhaseAfter)
	if err != nil {
		return nil, err
	}
	p.Steps = append(p.Steps, after...)

	return p, nil
}

func (e *expander) hook(tc dsl.TestCase, column, flow string, phase Phase) ([]Step, error) {
	if flow == "" {
		return nil, nil
	}
	call := dsl.Step{
		Execute: true,
		Command: dsl.CommandCallFlow,
		Target:  flow,
		Source:  dsl.Origin{Table: fmt.Sprintf("%s.%s", tc.ID, column)},
	}
	return e.expand([]dsl.Step{call}, phase, nil, nil)
}

// CommandSet reports whether a command has a handler.
type CommandSet interface {
	Has(command string) bool
}

// ValidationError ties an error to the test case or flow it was found in.
type ValidationError struct {
	Scope string // Test case id, or "flow NAME"
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Scope, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Result contains the validation result.
type Result struct {
	// Plans holds the plans of every selected test case that expanded.
	Plans []*Plan
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validate expands every selected test case without running anything and
// reports expansion errors and commands that have no handler. Flows no
// test case reaches are expanded on their own so their cycles surface too.
func Validate(suite *dsl.Suite, commands CommandSet, opts Options) *Result {
	if opts.TestCases == nil {
		opts.TestCases = suite.TestCaseIDs()
	}
	result := &Result{}
	reached := make(map[string]bool)
	reported := make(map[string]bool)

	checkCommands := func(scope string, steps []Step) {
		if commands == nil {
			return
		}
		for _, s := range steps {
			key := s.Source.String() + "|" + s.Command
			if commands.Has(s.Command) || reported[key] {
				continue
			}
			reported[key] = true
			result.Errors = append(result.Errors, &ValidationError{
				Scope: scope,
				Err: core.ErrUnknownCommand.
					WithMessagef("%s: command not supported: %s", s.Source, s.Command).
					WithDetails(map[string]interface{}{"command": s.Command}),
			})
		}
	}

	for _, tc := range suite.TestCases {
		if opts.Select != nil && !opts.Select(tc) {
			continue
		}
		p, err := Build(suite, tc, opts)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{Scope: tc.ID, Err: err})
			continue
		}
		result.Plans = append(result.Plans, p)
		for _, s := range p.Steps {
			for _, name := range s.Flows() {
				reached[name] = true
			}
		}
		checkCommands(tc.ID, p.Steps)
	}

	names := make([]string, 0, len(suite.Flows))
	for name := range suite.Flows {
		if !reached[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if reached[name] {
			continue
		}
		scope := "flow " + name
		steps, err := Expand([]dsl.Step{{
			Execute: true,
			Command: dsl.CommandCallFlow,
			Target:  name,
			Source:  dsl.Origin{Table: scope},
		}}, suite.Flows, opts)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{Scope: scope, Err: err})
			continue
		}
		for _, s := range steps {
			for _, n := range s.Flows() {
				reached[n] = true
			}
		}
		checkCommands(scope, steps)
	}

	return result
}
