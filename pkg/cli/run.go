package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/edgeqa/edgeqa-runner/pkg/config"
	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/keywords"
	"github.com/edgeqa/edgeqa-runner/pkg/metrics"
	"github.com/edgeqa/edgeqa-runner/pkg/report"
	"github.com/edgeqa/edgeqa-runner/pkg/runner"
	"github.com/edgeqa/edgeqa-runner/pkg/vars"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run the test cases of a suite",
	ArgsUsage: "[flags] <suite>",
	Description: `Run expands every selected test case and executes its plan.

Variables come from the config file, EDGEQA_VAR_* environment variables and
--var, in increasing precedence. The selected environment (-e) is a
separate layer looked up before them.

Examples:
  edgeqa run suite.xlsx
  edgeqa run --locators locators.json -e staging suite.json
  edgeqa run --include-tags smoke --parallel 4 --output reports/ suite.xlsx`,
	Flags: append(suiteFlags(),
		&cli.StringFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment name from the config or environments.yaml",
			EnvVars: []string{"EDGEQA_ENV"},
		},
		&cli.StringSliceFlag{
			Name:  "var",
			Usage: "Global variable KEY=VALUE (repeatable)",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Number of test cases to run concurrently (0 = sequential)",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining test cases after the first failure",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Report directory (a timestamped folder is created inside)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Write the report directly into --output",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write run metrics in Prometheus text format to this file (relative to the report directory)",
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL of API_CALL endpoints",
			EnvVars: []string{"EDGEQA_BASE_URL"},
		},
		&cli.IntFlag{
			Name:  "fail-on-step",
			Usage: "Make the UI driver fail its Nth step (dry-run testing)",
		},
	),
	Action: runSuite,
}

// RunConfig holds the resolved inputs of one run.
type RunConfig struct {
	RunID     string
	OutputDir string
	Global    map[string]string
	Env       map[string]string
	Keywords  keywords.SessionConfig
}

func runSuite(c *cli.Context) error {
	ws, err := loadWorkspace(c)
	if err != nil {
		return err
	}
	cfg := ws.cfg

	cliVars, err := parseVars(c.StringSlice("var"))
	if err != nil {
		return err
	}

	outputBase := cfg.Output
	if outputBase != "" && !c.IsSet("output") {
		outputBase = cfg.Path(outputBase)
	}
	outputDir, err := resolveOutputDir(outputBase, c.Bool("flatten"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logOpts := cfg.Logging
	if logOpts.File == "" {
		logOpts.File = filepath.Join(outputDir, "edgeqa.log")
	}
	log, closer, err := newLogger(c, logOpts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	rc := &RunConfig{
		RunID:     uuid.NewString(),
		OutputDir: outputDir,
		Global:    globalVars(cfg, vars.ImportProcessEnv(), cliVars),
		Env:       cfg.EnvironmentVars(),
		Keywords: keywords.SessionConfig{
			API: keywords.APIConfig{
				BaseURL: cfg.API.BaseURL,
				Timeout: cfg.API.Timeout,
				Retries: cfg.API.Retries,
				Headers: cfg.API.Headers,
			},
			Driver: keywords.DriverConfig{
				FailOnStep: c.Int("fail-on-step"),
				Browser:    "dry-run",
			},
			Logger: log,
		},
	}

	log.Info("=== Test execution started ===",
		"runId", rc.RunID, "suite", ws.suitePath, "environment", cfg.Environment, "output", outputDir)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executeSuite(ctx, ws, rc, newProgress(c.App.Writer, cfg.Execution.Parallelism == 0))
	if err != nil {
		log.Error("run failed", "error", err)
		return err
	}

	printSummary(c.App.Writer, result)
	fmt.Fprintf(c.App.Writer, "\n  Report: %s\n\n", outputDir)

	log.Info("=== Test execution finished ===",
		"passed", result.Passed, "failed", result.Failed,
		"setupFailures", result.SetupFailures, "skipped", result.Skipped, "cancelled", result.Cancelled)

	if result.Cancelled > 0 {
		return fmt.Errorf("run cancelled: %d of %d test cases did not finish", result.Cancelled, result.Total)
	}
	if !result.Success() {
		return fmt.Errorf("%d of %d test cases failed", result.Failed+result.SetupFailures, result.Total)
	}
	return nil
}

// executeSuite runs the suite with the report recorder, the metrics
// collector and the progress printer attached.
func executeSuite(ctx context.Context, ws *workspace, rc *RunConfig, out *progress) (*core.SuiteResult, error) {
	cfg := ws.cfg

	rec, err := report.NewRecorder(rc.OutputDir, ws.suite, report.BuilderConfig{
		RunID:         rc.RunID,
		Suite:         ws.name(),
		Environment:   cfg.Environment,
		RunnerVersion: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write report skeleton: %w", err)
	}
	collector := metrics.New()

	sr := runner.NewSuiteRunner(ws.suite, keywords.Sessions(rc.Keywords), runner.SuiteConfig{
		Name:           ws.name(),
		RunID:          rc.RunID,
		Environment:    cfg.Environment,
		Parallelism:    cfg.Execution.Parallelism,
		StopOnFail:     cfg.Execution.StopOnFail,
		Plan:           ws.planOptions(),
		DefaultFailure: cfg.FailureCategory(),
		StoreMode:      cfg.StoreMode(),
		Global:         rc.Global,
		Env:            rc.Env,
		Locators:       ws.locators,
		Logger:         rc.Keywords.Logger,
		Observer:       collector,
		Select:         ws.selects,
		OnTestCaseStart: func(idx, total int, tc dsl.TestCase) {
			rec.TestCaseStarted(idx, total, tc)
			out.testCaseStart(idx, total, tc)
		},
		OnStepComplete: func(testCase string, step core.StepResult) {
			rec.StepCompleted(testCase, step)
			out.stepComplete(step)
		},
		OnTestCaseEnd: func(idx int, result core.TestCaseResult) {
			rec.TestCaseEnded(idx, result)
			out.testCaseEnd(result)
		},
	})
	result := sr.Run(ctx)

	if err := rec.Finish(result); err != nil {
		return result, fmt.Errorf("failed to write report: %w", err)
	}
	if cfg.MetricsFile != "" {
		path := cfg.MetricsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(rc.OutputDir, path)
		}
		if err := collector.WriteTextfile(path); err != nil {
			return result, fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return result, nil
}

// globalVars merges the global layer: config variables, then process
// environment, then --var.
func globalVars(cfg *config.Config, layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for k, v := range cfg.Variables {
		merged[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}
