package plan

import (
	"strings"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// Options controls expansion.
type Options struct {
	// MaxDepth caps flow nesting. 0 means unbounded.
	MaxDepth int

	// TestCases names the suite's test cases. A CALL_FLOW naming one of
	// them, and no flow, fails with core.ErrInvalidFlowTarget.
	TestCases map[string]bool

	// Select limits Validate to some test cases. nil selects all.
	Select func(dsl.TestCase) bool
}

type expander struct {
	flows  map[string]*dsl.Flow
	opts   Options
	nextID int
}

// Expand inlines every CALL_FLOW in steps, recursively and in pre-order.
// The result holds no CALL_FLOW steps. Disabled CALL_FLOW steps are dropped
// without looking at their target.
func Expand(steps []dsl.Step, flows map[string]*dsl.Flow, opts Options) ([]Step, error) {
	e := &expander{flows: flows, opts: opts}
	return e.expand(steps, PhaseMain, nil, nil)
}

// expand walks steps. chain is the ordered set of flows currently being
// expanded; calls is the matching invocation list.
func (e *expander) expand(steps []dsl.Step, phase Phase, calls []Call, chain []string) ([]Step, error) {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if !s.IsCallFlow() {
			out = append(out, Step{Step: s, Phase: phase, Calls: calls})
			continue
		}
		if !s.Execute {
			continue
		}

		name := strings.TrimSpace(s.Target)
		flow, err := e.resolve(name, s, chain)
		if err != nil {
			return nil, err
		}

		e.nextID++
		call := Call{ID: e.nextID, Flow: name, Params: dsl.ParseCallParams(s.Data)}

		// Fresh slices so sibling invocations never share backing arrays.
		subCalls := make([]Call, len(calls), len(calls)+1)
		copy(subCalls, calls)
		subCalls = append(subCalls, call)
		subChain := make([]string, len(chain), len(chain)+1)
		copy(subChain, chain)
		subChain = append(subChain, name)

		sub, err := e.expand(flow.Steps, phase, subCalls, subChain)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (e *expander) resolve(name string, s dsl.Step, chain []string) (*dsl.Flow, error) {
	details := map[string]interface{}{"flow": name, "step": s.Source.String()}

	if name == "" {
		return nil, core.ErrEmptyFlowTarget.
			WithMessagef("%s: CALL_FLOW requires a flow name", s.Source).
			WithDetails(details)
	}

	flow, ok := e.flows[name]
	if !ok {
		if e.opts.TestCases[name] {
			return nil, core.ErrInvalidFlowTarget.
				WithMessagef("%s: flow-to-test call not allowed: %s is a test case", s.Source, name).
				WithDetails(details)
		}
		return nil, core.ErrUnknownFlow.
			WithMessagef("%s: unknown flow: %s", s.Source, name).
			WithDetails(details)
	}

	for _, ancestor := range chain {
		if ancestor == name {
			cycle := append(append([]string{}, chain...), name)
			details["chain"] = cycle
			return nil, core.ErrCircularFlowReference.
				WithMessagef("circular flow detected: %s", strings.Join(cycle, " -> ")).
				WithDetails(details)
		}
	}

	if e.opts.MaxDepth > 0 && len(chain) >= e.opts.MaxDepth {
		return nil, core.ErrFlowDepthExceeded.
			WithMessagef("%s: flow depth %d exceeded calling %s (%s)", s.Source, e.opts.MaxDepth, name, strings.Join(chain, " -> ")).
			WithDetails(details)
	}
	return flow, nil
}
