package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
	"github.com/edgeqa/edgeqa-runner/pkg/logger"
	"github.com/edgeqa/edgeqa-runner/pkg/plan"
	"github.com/edgeqa/edgeqa-runner/pkg/vars"
)

// Session is the executor state owned by one test case.
type Session struct {
	Registry *Registry
	Cleanup  func()
}

// SessionFactory opens a session for a test case.
type SessionFactory func(ctx context.Context, tc dsl.TestCase) (*Session, error)

// SuiteConfig configures a suite run.
type SuiteConfig struct {
	Name        string
	RunID       string // Generated when empty
	Environment string
	Parallelism int  // Max concurrent test cases (0 = sequential)
	StopOnFail  bool // Skip test cases not yet started after the first failure

	Plan           plan.Options
	DefaultFailure dsl.FailureCategory
	StoreMode      vars.StoreMode

	// Global and Env are the shared, read-only variable layers.
	Global map[string]string
	Env    map[string]string

	Locators *locator.Repository
	Logger   *slog.Logger
	Observer Observer

	// Select filters test cases; rejected ones are reported as skipped.
	Select func(dsl.TestCase) bool

	// Live progress callbacks
	OnTestCaseStart func(idx, total int, tc dsl.TestCase)
	OnStepComplete  func(testCase string, step core.StepResult)
	OnTestCaseEnd   func(idx int, result core.TestCaseResult)
}

// SuiteRunner runs the test cases of a suite.
type SuiteRunner struct {
	suite    *dsl.Suite
	sessions SessionFactory
	config   SuiteConfig
	guards   *Guards
	log      *slog.Logger
}

// NewSuiteRunner creates a suite runner.
func NewSuiteRunner(suite *dsl.Suite, sessions SessionFactory, cfg SuiteConfig) *SuiteRunner {
	if cfg.Plan.TestCases == nil {
		cfg.Plan.TestCases = suite.TestCaseIDs()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &SuiteRunner{
		suite:    suite,
		sessions: sessions,
		config:   cfg,
		guards:   NewGuards(),
		log:      logger.OrDiscard(cfg.Logger),
	}
}

// Run executes all test cases and returns the aggregated result. Results
// keep the suite's test case order.
func (s *SuiteRunner) Run(ctx context.Context) *core.SuiteResult {
	start := time.Now()
	cases := s.suite.TestCases
	results := make([]core.TestCaseResult, len(cases))

	s.log.Info("suite started", "suite", s.config.Name, "testCases", len(cases), "parallelism", s.config.Parallelism)

	if s.config.Parallelism <= 0 {
		stopped := false
		for i := range cases {
			if ctx.Err() != nil {
				results[i] = s.cancelled(cases[i])
				s.finish(i, results[i])
				continue
			}
			if stopped {
				results[i] = s.skipped(cases[i], "run stopped")
				s.finish(i, results[i])
				continue
			}
			results[i] = s.executeTestCase(ctx, i, len(cases))
			if s.config.StopOnFail && !results[i].Outcome.IsSuccess() {
				stopped = true
			}
		}
	} else {
		sem := make(chan struct{}, s.config.Parallelism)
		var wg sync.WaitGroup
		var mu sync.Mutex
		stopAll := false

		for i := range cases {
			sem <- struct{}{} // Acquire before checking so stopOnFail sees finished siblings

			mu.Lock()
			shouldStop := stopAll
			mu.Unlock()
			if shouldStop || ctx.Err() != nil {
				<-sem
				if ctx.Err() != nil {
					results[i] = s.cancelled(cases[i])
				} else {
					results[i] = s.skipped(cases[i], "run stopped")
				}
				s.finish(i, results[i])
				continue
			}

			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer func() { <-sem }() // Release

				result := s.executeTestCase(ctx, idx, len(cases))
				results[idx] = result

				if s.config.StopOnFail && !result.Outcome.IsSuccess() {
					mu.Lock()
					stopAll = true
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
	}

	suite := &core.SuiteResult{
		Name:        s.config.Name,
		RunID:       s.config.RunID,
		Environment: s.config.Environment,
		StartTime:   start,
		Duration:    time.Since(start),
		TestCases:   results,
	}
	suite.ComputeSummary()

	s.log.Info("suite finished",
		"suite", s.config.Name,
		"passed", suite.Passed,
		"failed", suite.Failed,
		"setupFailures", suite.SetupFailures,
		"skipped", suite.Skipped,
		"cancelled", suite.Cancelled,
		"duration", suite.Duration,
	)
	return suite
}

func (s *SuiteRunner) skipped(tc dsl.TestCase, reason string) core.TestCaseResult {
	return core.TestCaseResult{
		ID:          tc.ID,
		Description: tc.Description,
		Tags:        tc.Tags,
		Outcome:     core.OutcomeSkipped,
		StartTime:   time.Now(),
		Error:       reason,
	}
}

// cancelled reports a test case the run never reached because ctx was done.
func (s *SuiteRunner) cancelled(tc dsl.TestCase) core.TestCaseResult {
	r := s.skipped(tc, core.ErrCancelled.Error())
	r.Outcome = core.OutcomeCancelled
	r.Cancelled = true
	return r
}

func (s *SuiteRunner) setupFailure(tc dsl.TestCase, start time.Time, err error) core.TestCaseResult {
	s.log.Error("test case setup failed", "testCase", tc.ID, "error", err)
	return core.TestCaseResult{
		ID:          tc.ID,
		Description: tc.Description,
		Tags:        tc.Tags,
		Outcome:     core.OutcomeSetupFailure,
		StartTime:   start,
		Duration:    time.Since(start),
		Error:       err.Error(),
	}
}

func (s *SuiteRunner) finish(idx int, result core.TestCaseResult) {
	if s.config.Observer != nil {
		s.config.Observer.TestCaseFinished(result.Outcome, result.Duration)
	}
	if s.config.OnTestCaseEnd != nil {
		s.config.OnTestCaseEnd(idx, result)
	}
}

// executeTestCase expands and runs one test case. Setup failures never
// leave the test case.
func (s *SuiteRunner) executeTestCase(ctx context.Context, idx, total int) (result core.TestCaseResult) {
	tc := s.suite.TestCases[idx]
	defer func() { s.finish(idx, result) }()

	if !tc.Execute {
		return s.skipped(tc, "execute flag is off")
	}
	if s.config.Select != nil && !s.config.Select(tc) {
		return s.skipped(tc, "filtered out")
	}

	if s.config.OnTestCaseStart != nil {
		s.config.OnTestCaseStart(idx, total, tc)
	}
	start := time.Now()
	s.log.Info("test case started", "testCase", tc.ID)

	p, err := plan.Build(s.suite, tc, s.config.Plan)
	if err != nil {
		return s.setupFailure(tc, start, err)
	}

	session, err := s.sessions(ctx, tc)
	if err != nil {
		return s.setupFailure(tc, start, err)
	}
	if session.Cleanup != nil {
		defer session.Cleanup()
	}

	scope := vars.NewScope(s.config.Global, s.config.Env, vars.WithStoreMode(s.config.StoreMode))
	pr := NewPlanRunner(session.Registry, scope, Options{
		DefaultFailure: s.config.DefaultFailure,
		Locators:       s.config.Locators,
		Guards:         s.guards,
		Logger:         s.log,
		Observer:       s.config.Observer,
		OnStepComplete: s.config.OnStepComplete,
	})

	r := pr.Run(ctx, tc, p)
	s.log.Info("test case finished", "testCase", tc.ID, "outcome", string(r.Outcome), "state", r.State.String(), "duration", r.Duration)
	return *r
}
