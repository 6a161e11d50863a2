package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/plan"
)

// recorder is a handler that records requests and fails on demand.
type recorder struct {
	mu    sync.Mutex
	reqs  []core.Request
	fails map[string]bool // Target values that fail
	store map[string]string
}

func newRecorder() *recorder {
	return &recorder{fails: map[string]bool{}, store: map[string]string{}}
}

func (r *recorder) Execute(_ context.Context, req core.Request) core.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.fails[req.Target] {
		return core.Failure(errors.New("boom: " + req.Target))
	}
	if v, ok := r.store[req.Target]; ok {
		return core.SuccessWithValue("ok", v)
	}
	return core.Success("ok")
}

func (r *recorder) targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.reqs))
	for i, req := range r.reqs {
		out[i] = req.Target
	}
	return out
}

func registryWith(h Handler, commands ...string) *Registry {
	reg := NewRegistry()
	for _, c := range commands {
		reg.MustRegister(c, h)
	}
	return reg
}

func leaf(command, target string) dsl.Step {
	return dsl.Step{Execute: true, Command: command, Target: target}
}

func mainPlan(steps ...dsl.Step) *plan.Plan {
	p := &plan.Plan{TestCase: "TC"}
	for _, s := range steps {
		p.Steps = append(p.Steps, plan.Step{Step: s, Phase: plan.PhaseMain})
	}
	return p
}

func statuses(r *core.TestCaseResult) []core.StepStatus {
	out := make([]core.StepStatus, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Status
	}
	return out
}
