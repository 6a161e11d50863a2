package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
	"github.com/edgeqa/edgeqa-runner/pkg/plan"
	"github.com/edgeqa/edgeqa-runner/pkg/vars"
)

func newScope(global map[string]string) *vars.Scope {
	return vars.NewScope(global, nil)
}

func TestPlanRunner_AllPass(t *testing.T) {
	rec := newRecorder()
	reg := registryWith(rec, "DO")
	r := NewPlanRunner(reg, newScope(nil), Options{})

	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		leaf("DO", "a"), leaf("do", "b"),
	))

	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, core.PlanCompleted, res.State)
	assert.Equal(t, []string{"a", "b"}, rec.targets())
	assert.Equal(t, 2, res.PassedSteps)
	assert.Equal(t, "DO", rec.reqs[1].Command)
}

func TestPlanRunner_EmptyPlan(t *testing.T) {
	r := NewPlanRunner(NewRegistry(), newScope(nil), Options{})
	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, &plan.Plan{TestCase: "TC"})

	assert.Equal(t, core.PlanCompleted, res.State)
	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Empty(t, res.Steps)
}

// Build a plan with hooks and let the third main step fail with STOP.
func TestPlanRunner_StopSkipsRestButRunsAfterHook(t *testing.T) {
	rec := newRecorder()
	rec.fails["m3"] = true
	reg := registryWith(rec, "DO")

	suite := &dsl.Suite{
		TestCases: []dsl.TestCase{{ID: "TC", Execute: true, StepsSheet: "Main", BeforeHook: "Setup", AfterHook: "Teardown"}},
		Sheets: map[string][]dsl.Step{
			"Main": {
				leaf("DO", "m1"), leaf("DO", "m2"),
				{Execute: true, Command: "DO", Target: "m3", Failure: dsl.FailureStop},
				leaf("DO", "m4"), leaf("DO", "m5"),
			},
		},
		Flows: map[string]*dsl.Flow{
			"Setup":    {Name: "Setup", Steps: []dsl.Step{leaf("DO", "setup")}},
			"Teardown": {Name: "Teardown", Steps: []dsl.Step{leaf("DO", "teardown")}},
		},
	}
	p, err := plan.Build(suite, suite.TestCases[0], plan.Options{})
	require.NoError(t, err)

	var seen []string
	r := NewPlanRunner(reg, newScope(nil), Options{
		OnStepComplete: func(_ string, s core.StepResult) { seen = append(seen, s.Target) },
	})
	res := r.Run(context.Background(), suite.TestCases[0], p)

	assert.Equal(t, core.PlanAborted, res.State)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.Equal(t, []string{"setup", "m1", "m2", "m3", "teardown"}, rec.targets())
	assert.Equal(t, []core.StepStatus{
		core.StatusPassed, core.StatusPassed, core.StatusPassed, core.StatusFailed,
		core.StatusSkipped, core.StatusSkipped, core.StatusPassed,
	}, statuses(res))
	assert.Equal(t, "skipped after abort", res.Steps[4].Message)
	assert.Equal(t, string(dsl.FailureStop), res.Steps[3].FailureCategory)
	assert.Equal(t, core.KindExecution, res.Steps[3].ErrorKind)
	assert.Equal(t, "DO | m3 | ", res.FailedStep)
	assert.Contains(t, res.Error, "boom: m3")
	assert.Len(t, seen, 7)
	assert.Equal(t, 2, res.SkippedSteps)
	assert.Equal(t, 1, res.FailedSteps)
}

func TestPlanRunner_ContinueOnFailure(t *testing.T) {
	rec := newRecorder()
	rec.fails["b"] = true
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{})

	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		leaf("DO", "a"),
		dsl.Step{Execute: true, Command: "DO", Target: "b", Failure: dsl.FailureContinue},
		leaf("DO", "c"),
	))

	assert.Equal(t, []string{"a", "b", "c"}, rec.targets())
	assert.Equal(t, core.PlanCompleted, res.State)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.Equal(t, string(dsl.FailureContinue), res.Steps[1].FailureCategory)
}

func TestPlanRunner_DefaultFailurePolicy(t *testing.T) {
	steps := []dsl.Step{leaf("DO", "a"), leaf("DO", "b")}

	t.Run("blank defaults to stop", func(t *testing.T) {
		rec := newRecorder()
		rec.fails["a"] = true
		r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{})
		res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(steps...))
		assert.Equal(t, []string{"a"}, rec.targets())
		assert.Equal(t, core.PlanAborted, res.State)
	})

	t.Run("configured continue", func(t *testing.T) {
		rec := newRecorder()
		rec.fails["a"] = true
		r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{DefaultFailure: dsl.FailureContinue})
		res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(steps...))
		assert.Equal(t, []string{"a", "b"}, rec.targets())
		assert.Equal(t, core.PlanCompleted, res.State)
		assert.Equal(t, core.OutcomeFailed, res.Outcome)
	})
}

func TestPlanRunner_StopInAfterHook(t *testing.T) {
	rec := newRecorder()
	rec.fails["t1"] = true
	p := &plan.Plan{TestCase: "TC", Steps: []plan.Step{
		{Step: leaf("DO", "m1"), Phase: plan.PhaseMain},
		{Step: leaf("DO", "t1"), Phase: plan.PhaseAfter},
		{Step: leaf("DO", "t2"), Phase: plan.PhaseAfter},
	}}
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{})
	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, p)

	assert.Equal(t, []string{"m1", "t1"}, rec.targets())
	assert.Equal(t, core.StatusSkipped, res.Steps[2].Status)
	assert.Equal(t, "skipped after after-hook failure", res.Steps[2].Message)
	assert.Equal(t, core.PlanCompleted, res.State)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
}

func TestPlanRunner_DisabledStep(t *testing.T) {
	rec := newRecorder()
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{})
	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		dsl.Step{Execute: false, Command: "DO", Target: "off"},
		leaf("DO", "on"),
	))

	assert.Equal(t, []string{"on"}, rec.targets())
	assert.Equal(t, core.StatusSkipped, res.Steps[0].Status)
	assert.Equal(t, "disabled", res.Steps[0].Message)
	assert.Equal(t, core.OutcomePassed, res.Outcome)
}

func TestPlanRunner_UnknownCommand(t *testing.T) {
	r := NewPlanRunner(NewRegistry(), newScope(nil), Options{})
	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(leaf("FLY", "x")))

	require.Len(t, res.Steps, 1)
	assert.Equal(t, core.StatusFailed, res.Steps[0].Status)
	assert.Equal(t, core.KindResolution, res.Steps[0].ErrorKind)
	assert.Contains(t, res.Steps[0].Error, "command not supported: FLY")
}

func TestPlanRunner_VariableSubstitution(t *testing.T) {
	rec := newRecorder()
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(map[string]string{"BASE_URL": "https://x.test", "user": "amy"}), Options{})

	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		dsl.Step{Execute: true, Command: "DO", Target: "${BASE_URL}/login", Data: "{{ user }}"},
	))

	require.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, "https://x.test/login", rec.reqs[0].Target)
	assert.Equal(t, "amy", rec.reqs[0].Data)
	assert.Equal(t, "https://x.test/login", res.Steps[0].ResolvedTarget)
	assert.Equal(t, "${BASE_URL}/login", res.Steps[0].Target)
}

func TestPlanRunner_UndefinedVariableFailsStep(t *testing.T) {
	rec := newRecorder()
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{DefaultFailure: dsl.FailureContinue})

	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		leaf("DO", "${NOPE}"),
		leaf("DO", "next"),
	))

	assert.Equal(t, []string{"next"}, rec.targets())
	assert.Equal(t, core.StatusFailed, res.Steps[0].Status)
	assert.Equal(t, core.KindResolution, res.Steps[0].ErrorKind)
	assert.Contains(t, res.Steps[0].Error, "NOPE")
}

func TestPlanRunner_Store(t *testing.T) {
	rec := newRecorder()
	rec.store["token"] = "t-123"
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{})

	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		dsl.Step{Execute: true, Command: "DO", Target: "token", Store: "TOKEN"},
		dsl.Step{Execute: true, Command: "DO", Target: "literal", Data: "fallback", Store: "LIT"},
		dsl.Step{Execute: true, Command: "DO", Target: "use", Data: "${TOKEN}/${LIT}"},
	))

	require.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, "t-123/fallback", rec.reqs[2].Data)
	assert.Equal(t, "TOKEN", res.Steps[0].Stored)
	assert.Equal(t, "t-123", rec.reqs[2].Vars["TOKEN"])
}

func TestPlanRunner_Guard(t *testing.T) {
	rec := newRecorder()
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(map[string]string{"ENV": "qa"}), Options{DefaultFailure: dsl.FailureContinue})

	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		dsl.Step{Execute: true, Command: "DO", Target: "qa-only", Condition: `WHEN ENV == "qa"`},
		dsl.Step{Execute: true, Command: "DO", Target: "prod-only", Condition: `when ENV == "prod"`},
		dsl.Step{Execute: true, Command: "DO", Target: "opaque", Condition: "IF_EXISTS"},
		dsl.Step{Execute: true, Command: "DO", Target: "bad", Condition: "WHEN ENV =="},
	))

	assert.Equal(t, []string{"qa-only", "opaque"}, rec.targets())
	assert.Equal(t, "IF_EXISTS", rec.reqs[1].Condition)
	assert.Equal(t, core.StatusSkipped, res.Steps[1].Status)
	assert.Contains(t, res.Steps[1].Message, "condition not met")
	assert.Equal(t, core.StatusFailed, res.Steps[3].Status)
	assert.Equal(t, core.KindResolution, res.Steps[3].ErrorKind)
}

func TestPlanRunner_LocatorResolution(t *testing.T) {
	repo, err := locator.New([]locator.Record{
		{Page: "LoginPage", Name: "Username", Primary: "#user", Secondary: ".user-input", Type: locator.TypeCSS},
	})
	require.NoError(t, err)

	rec := newRecorder()
	reg := NewRegistry()
	reg.MustRegister("TYPE_TEXT", rec, TakesLocator())
	reg.MustRegister("OPEN_URL", rec)

	r := NewPlanRunner(reg, newScope(nil), Options{Locators: repo, DefaultFailure: dsl.FailureContinue})
	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(
		dsl.Step{Execute: true, Command: "OPEN_URL", Target: "LoginPage.Username"},
		dsl.Step{Execute: true, Command: "TYPE_TEXT", Target: "LoginPage.Username", Data: "amy"},
		dsl.Step{Execute: true, Command: "TYPE_TEXT", Target: "LoginPage.Missing"},
		dsl.Step{Execute: true, Command: "TYPE_TEXT", Target: "NoDot"},
	))

	require.Len(t, rec.reqs, 2)
	assert.Equal(t, "LoginPage.Username", rec.reqs[0].Target)
	assert.Nil(t, rec.reqs[0].Locator)

	typed := rec.reqs[1]
	assert.Equal(t, "css=#user", typed.Target)
	require.NotNil(t, typed.Locator)
	assert.Equal(t, []string{"css=#user", "css=.user-input"}, typed.Locator.Candidates())
	assert.Equal(t, "css=#user", res.Steps[1].ResolvedTarget)

	assert.Equal(t, core.StatusFailed, res.Steps[2].Status)
	assert.Contains(t, res.Steps[2].Error, "LoginPage.Missing")
	assert.Equal(t, core.StatusFailed, res.Steps[3].Status)
	assert.Equal(t, core.KindResolution, res.Steps[3].ErrorKind)
}

func TestPlanRunner_CallParamsAreScoped(t *testing.T) {
	rec := newRecorder()
	suite := &dsl.Suite{
		TestCases: []dsl.TestCase{{ID: "TC", Execute: true, StepsSheet: "Main"}},
		Sheets: map[string][]dsl.Step{
			"Main": {
				{Execute: true, Command: dsl.CommandCallFlow, Target: "Login", Data: "user=${ADMIN}"},
				{Execute: true, Command: dsl.CommandCallFlow, Target: "Login", Data: "user=guest"},
				leaf("DO", "after:{{user}}"),
			},
		},
		Flows: map[string]*dsl.Flow{
			"Login": {Name: "Login", Steps: []dsl.Step{leaf("DO", "login:{{user}}")}},
		},
	}
	p, err := plan.Build(suite, suite.TestCases[0], plan.Options{})
	require.NoError(t, err)

	scope := newScope(map[string]string{"ADMIN": "root"})
	r := NewPlanRunner(registryWith(rec, "DO"), scope, Options{})
	res := r.Run(context.Background(), suite.TestCases[0], p)

	assert.Equal(t, []string{"login:root", "login:guest"}, rec.targets())
	assert.Equal(t, core.StatusFailed, res.Steps[2].Status)
	assert.Contains(t, res.Steps[2].Error, "user")
	assert.Empty(t, scope.Frames())
}

func TestPlanRunner_StoreOverridesCallParam(t *testing.T) {
	rec := newRecorder()
	rec.store["produce"] = "fresh"
	suite := &dsl.Suite{
		TestCases: []dsl.TestCase{{ID: "TC", Execute: true, StepsSheet: "Main"}},
		Sheets: map[string][]dsl.Step{
			"Main": {
				{Execute: true, Command: dsl.CommandCallFlow, Target: "F", Data: "user=admin"},
				leaf("DO", "after:${user}"),
			},
		},
		Flows: map[string]*dsl.Flow{
			"F": {Name: "F", Steps: []dsl.Step{
				{Execute: true, Command: "DO", Target: "produce", Store: "user"},
				leaf("DO", "${user}"),
			}},
		},
	}
	p, err := plan.Build(suite, suite.TestCases[0], plan.Options{})
	require.NoError(t, err)

	res := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{}).Run(context.Background(), suite.TestCases[0], p)

	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, []string{"produce", "fresh", "after:fresh"}, rec.targets())
}

func TestPlanRunner_StoreModes(t *testing.T) {
	suite := &dsl.Suite{
		TestCases: []dsl.TestCase{{ID: "TC", Execute: true, StepsSheet: "Main"}},
		Sheets: map[string][]dsl.Step{
			"Main": {
				{Execute: true, Command: dsl.CommandCallFlow, Target: "Fetch"},
				leaf("DO", "${VALUE}"),
			},
		},
		Flows: map[string]*dsl.Flow{
			"Fetch": {Name: "Fetch", Steps: []dsl.Step{{Execute: true, Command: "DO", Target: "x", Data: "42", Store: "VALUE"}}},
		},
	}
	p, err := plan.Build(suite, suite.TestCases[0], plan.Options{})
	require.NoError(t, err)

	t.Run("shared", func(t *testing.T) {
		rec := newRecorder()
		r := NewPlanRunner(registryWith(rec, "DO"), vars.NewScope(nil, nil), Options{})
		res := r.Run(context.Background(), suite.TestCases[0], p)
		assert.Equal(t, core.OutcomePassed, res.Outcome)
		assert.Equal(t, []string{"x", "42"}, rec.targets())
	})

	t.Run("flow-local", func(t *testing.T) {
		rec := newRecorder()
		scope := vars.NewScope(nil, nil, vars.WithStoreMode(vars.StoreFlowLocal))
		r := NewPlanRunner(registryWith(rec, "DO"), scope, Options{})
		res := r.Run(context.Background(), suite.TestCases[0], p)
		assert.Equal(t, core.OutcomeFailed, res.Outcome)
		assert.Equal(t, []string{"x"}, rec.targets())
		assert.Contains(t, res.Steps[1].Error, "VALUE")
	})
}

func TestPlanRunner_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry()
	var calls int
	reg.MustRegister("DO", core.ExecutorFunc(func(context.Context, core.Request) core.Result {
		calls++
		cancel()
		return core.Success("")
	}))

	r := NewPlanRunner(reg, newScope(nil), Options{})
	res := r.Run(ctx, dsl.TestCase{ID: "TC"}, mainPlan(leaf("DO", "a"), leaf("DO", "b"), leaf("DO", "c")))

	assert.Equal(t, 1, calls)
	assert.Equal(t, core.PlanAborted, res.State)
	assert.Equal(t, []core.StepStatus{core.StatusPassed, core.StatusSkipped, core.StatusSkipped}, statuses(res))
	assert.Equal(t, core.ErrCancelled.Error(), res.Error)
	assert.True(t, res.Cancelled)
	assert.Equal(t, core.OutcomeCancelled, res.Outcome)
	assert.False(t, res.Outcome.IsSuccess())
}

func TestPlanRunner_CancelledBeforeStart(t *testing.T) {
	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{})
	res := r.Run(ctx, dsl.TestCase{ID: "TC"}, mainPlan(leaf("DO", "a"), leaf("DO", "b")))

	assert.Empty(t, rec.targets())
	assert.Equal(t, core.PlanAborted, res.State)
	assert.Equal(t, core.OutcomeCancelled, res.Outcome)
	assert.Equal(t, 2, res.SkippedSteps)
}

func TestPlanRunner_FailureBeforeCancelStaysFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry()
	reg.MustRegister("DO", core.ExecutorFunc(func(context.Context, core.Request) core.Result {
		cancel()
		return core.Failure(core.ErrStepFailed.WithMessage("boom"))
	}))

	r := NewPlanRunner(reg, newScope(nil), Options{DefaultFailure: dsl.FailureContinue})
	res := r.Run(ctx, dsl.TestCase{ID: "TC"}, mainPlan(leaf("DO", "a"), leaf("DO", "b")))

	assert.True(t, res.Cancelled)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
}

func TestPlanRunner_PanicBecomesFailure(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("BOOM", core.ExecutorFunc(func(context.Context, core.Request) core.Result {
		panic("kaput")
	}))

	r := NewPlanRunner(reg, newScope(nil), Options{})
	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(leaf("BOOM", "")))

	assert.Equal(t, core.StatusFailed, res.Steps[0].Status)
	assert.Contains(t, res.Steps[0].Error, "BOOM panicked: kaput")
}

func TestPlanRunner_FailureWithoutError(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("NOPE", core.ExecutorFunc(func(context.Context, core.Request) core.Result {
		return core.Result{Success: false, Message: "element not found"}
	}))

	r := NewPlanRunner(reg, newScope(nil), Options{})
	res := r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(leaf("NOPE", "")))

	assert.Equal(t, "element not found", res.Steps[0].Error)
	assert.Equal(t, core.KindExecution, res.Steps[0].ErrorKind)
}

type countingObserver struct {
	steps map[core.StepStatus]int
}

func (o *countingObserver) StepFinished(_ string, status core.StepStatus, _ time.Duration) {
	o.steps[status]++
}

func (o *countingObserver) TestCaseFinished(core.Outcome, time.Duration) {}

func TestPlanRunner_Observer(t *testing.T) {
	rec := newRecorder()
	rec.fails["b"] = true
	obs := &countingObserver{steps: map[core.StepStatus]int{}}
	r := NewPlanRunner(registryWith(rec, "DO"), newScope(nil), Options{Observer: obs})
	r.Run(context.Background(), dsl.TestCase{ID: "TC"}, mainPlan(leaf("DO", "a"), leaf("DO", "b"), leaf("DO", "c")))

	assert.Equal(t, 1, obs.steps[core.StatusPassed])
	assert.Equal(t, 1, obs.steps[core.StatusFailed])
	assert.Equal(t, 1, obs.steps[core.StatusSkipped])
}
