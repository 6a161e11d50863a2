package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
	"github.com/edgeqa/edgeqa-runner/pkg/logger"
	"github.com/edgeqa/edgeqa-runner/pkg/plan"
	"github.com/edgeqa/edgeqa-runner/pkg/vars"
)

// Observer receives run events. Metrics collectors implement it.
type Observer interface {
	StepFinished(command string, status core.StepStatus, d time.Duration)
	TestCaseFinished(outcome core.Outcome, d time.Duration)
}

// Options configures a PlanRunner.
type Options struct {
	// DefaultFailure applies to steps with a blank Failure Category.
	// Zero value means STOP_ON_FAILURE.
	DefaultFailure dsl.FailureCategory

	Locators *locator.Repository
	Guards   *Guards
	Logger   *slog.Logger
	Observer Observer

	// OnStepComplete is called after every step, including skipped ones.
	OnStepComplete func(testCase string, step core.StepResult)
}

// PlanRunner executes one expanded plan against one registry and one
// variable scope. It is used by a single goroutine.
type PlanRunner struct {
	registry *Registry
	scope    *vars.Scope
	opts     Options
	log      *slog.Logger
	state    core.PlanState
}

// NewPlanRunner creates a runner. A nil Logger discards output; a nil
// locator repository is empty.
func NewPlanRunner(registry *Registry, scope *vars.Scope, opts Options) *PlanRunner {
	if opts.DefaultFailure == dsl.FailureUnspecified {
		opts.DefaultFailure = dsl.FailureStop
	}
	if opts.Locators == nil {
		opts.Locators = locator.Empty()
	}
	if opts.Guards == nil {
		opts.Guards = NewGuards()
	}
	return &PlanRunner{registry: registry, scope: scope, opts: opts, log: logger.OrDiscard(opts.Logger)}
}

// State returns the current plan state.
func (r *PlanRunner) State() core.PlanState {
	return r.state
}

func (r *PlanRunner) transition(to core.PlanState, testCase string) {
	if r.state != to {
		r.log.Debug("plan state", "testCase", testCase, "from", r.state.String(), "to", to.String())
	}
	r.state = to
}

// Run executes p. Before and main steps stop at the first STOP failure;
// after-hook steps always run, and a STOP among them only skips the rest
// of the after-hook. Cancelling ctx skips everything not yet started.
func (r *PlanRunner) Run(ctx context.Context, tc dsl.TestCase, p *plan.Plan) *core.TestCaseResult {
	start := time.Now()
	result := &core.TestCaseResult{
		ID:          tc.ID,
		Description: tc.Description,
		Tags:        tc.Tags,
		StartTime:   start,
		Steps:       make([]core.StepResult, 0, len(p.Steps)),
	}

	r.transition(core.PlanRunning, tc.ID)
	aborted := false
	afterStopped := false
	cancelled := false

	for i, ps := range p.Steps {
		sr := core.StepResult{
			Index:   i,
			Seq:     ps.Seq,
			Phase:   string(ps.Phase),
			Command: ps.Command,
			Target:  ps.Target,
			Data:    ps.Data,
			Flows:   ps.Flows(),
			Status:  core.StatusPending,
		}

		switch {
		case cancelled || ctx.Err() != nil:
			cancelled = true
			r.skip(&sr, "execution cancelled")
		case aborted && ps.Phase != plan.PhaseAfter:
			r.skip(&sr, "skipped after abort")
		case afterStopped && ps.Phase == plan.PhaseAfter:
			r.skip(&sr, "skipped after after-hook failure")
		case !ps.Execute:
			r.skip(&sr, "disabled")
		default:
			r.execute(ctx, tc.ID, ps, &sr)
		}

		if sr.Status == core.StatusFailed {
			r.transition(core.PlanStepFailed, tc.ID)
			policy := ps.Failure.Or(r.opts.DefaultFailure)
			sr.FailureCategory = string(policy)
			if result.FailedStep == "" {
				result.FailedStep = ps.Describe()
				result.Error = sr.Error
			}
			if policy == dsl.FailureStop {
				if ps.Phase == plan.PhaseAfter {
					afterStopped = true
				} else {
					aborted = true
				}
			}
			r.transition(core.PlanRunning, tc.ID)
		}

		result.Steps = append(result.Steps, sr)
		if r.opts.Observer != nil {
			r.opts.Observer.StepFinished(sr.Command, sr.Status, sr.Duration)
		}
		if r.opts.OnStepComplete != nil {
			r.opts.OnStepComplete(tc.ID, sr)
		}
	}

	for {
		if _, ok := r.scope.Pop(); !ok {
			break
		}
	}

	if aborted || cancelled {
		r.transition(core.PlanAborted, tc.ID)
	} else {
		r.transition(core.PlanCompleted, tc.ID)
	}
	if cancelled {
		result.Cancelled = true
		if result.Error == "" {
			result.Error = core.ErrCancelled.Error()
		}
	}

	result.State = r.state
	result.Duration = time.Since(start)
	result.ComputeSummary()
	result.Outcome = result.AggregateOutcome()
	return result
}

func (r *PlanRunner) skip(sr *core.StepResult, reason string) {
	sr.Status = core.StatusSkipped
	sr.Message = reason
}

func (r *PlanRunner) fail(sr *core.StepResult, err error) {
	sr.Status = core.StatusFailed
	sr.Error = err.Error()
	sr.ErrorKind = core.KindOf(err)
}

// execute resolves and dispatches one step. Every failure lands in sr.
func (r *PlanRunner) execute(ctx context.Context, testCase string, ps plan.Step, sr *core.StepResult) {
	start := time.Now()
	sr.StartTime = start
	sr.Status = core.StatusRunning
	defer func() {
		sr.Duration = time.Since(start)
	}()

	if err := r.syncFrames(ps.Calls); err != nil {
		r.fail(sr, err)
		return
	}

	target, err := vars.Substitute(ps.Target, r.scope)
	if err != nil {
		r.fail(sr, err)
		return
	}
	data, err := vars.Substitute(ps.Data, r.scope)
	if err != nil {
		r.fail(sr, err)
		return
	}
	condition, err := vars.Substitute(ps.Condition, r.scope)
	if err != nil {
		r.fail(sr, err)
		return
	}
	sr.ResolvedTarget = target

	if expression, ok := guardExpression(condition); ok {
		pass, err := r.opts.Guards.Eval(expression, r.scope.Snapshot())
		if err != nil {
			r.fail(sr, err)
			return
		}
		if !pass {
			r.log.Info("step skipped",
				"testCase", testCase, "command", ps.Command, "target", ps.Target, "condition", condition)
			r.skip(sr, "condition not met: "+expression)
			return
		}
	}

	e, err := r.registry.lookup(ps.Command)
	if err != nil {
		r.fail(sr, err)
		return
	}

	req := core.Request{
		Command:   dsl.NormalizeCommand(ps.Command),
		Target:    target,
		Data:      data,
		Condition: condition,
	}
	if e.takesLocator && target != "" {
		rec, err := r.opts.Locators.Resolve(target)
		if err != nil {
			r.fail(sr, err)
			return
		}
		req.Locator = rec.Locator()
		req.Target = req.Locator.Primary
		sr.Locator = req.Locator
		sr.ResolvedTarget = req.Target
	}
	req.Vars = r.scope.Snapshot()

	r.log.Info("step",
		"testCase", testCase,
		"command", req.Command,
		"target", ps.Target,
		"resolved", req.Target,
		"data", data,
		"condition", condition,
		"store", ps.Store,
	)

	res := r.dispatch(ctx, e.handler, req)
	sr.Message = res.Message
	sr.Attachments = res.Attachments

	if !res.Success {
		err := res.Error
		if err == nil {
			msg := res.Message
			if msg == "" {
				msg = "step failed"
			}
			err = core.ErrStepFailed.WithMessage(msg)
		}
		r.log.Error("step failed", "testCase", testCase, "command", req.Command, "target", ps.Target, "error", err)
		r.fail(sr, err)
		return
	}

	if ps.Store != "" {
		value := data
		if res.StoreValue != nil {
			value = *res.StoreValue
		}
		r.scope.Store(ps.Store, value)
		sr.Stored = ps.Store
	}
	sr.Status = core.StatusPassed
}

// dispatch calls the handler, turning a panic into a failed result.
func (r *PlanRunner) dispatch(ctx context.Context, h Handler, req core.Request) (res core.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = core.Failure(core.ErrStepFailed.WithMessagef("%s panicked: %v", req.Command, p))
		}
	}()
	return h.Execute(ctx, req)
}

// syncFrames aligns the scope's invocation frames with the step's call
// chain: frames of finished invocations are popped, new ones pushed with
// their call-site parameters substituted in the caller's scope.
func (r *PlanRunner) syncFrames(calls []plan.Call) error {
	open := r.scope.Frames()
	common := 0
	for common < len(open) && common < len(calls) && open[common] == frameID(calls[common]) {
		common++
	}
	for i := len(open); i > common; i-- {
		r.scope.Pop()
	}
	for _, c := range calls[common:] {
		params := make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			resolved, err := vars.Substitute(v, r.scope)
			if err != nil {
				return fmt.Errorf("CALL_FLOW %s parameter %s: %w", c.Flow, k, err)
			}
			params[k] = resolved
		}
		r.scope.Push(frameID(c), params)
	}
	return nil
}

func frameID(c plan.Call) string {
	return strconv.Itoa(c.ID)
}
