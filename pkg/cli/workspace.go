package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/edgeqa/edgeqa-runner/pkg/config"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
	"github.com/edgeqa/edgeqa-runner/pkg/logger"
	"github.com/edgeqa/edgeqa-runner/pkg/plan"
	"github.com/edgeqa/edgeqa-runner/pkg/source"
)

// workspace is a loaded suite with the config it was loaded under.
type workspace struct {
	cfg       *config.Config
	suitePath string
	suite     *dsl.Suite
	locators  *locator.Repository
	testCases []string // --testcase filter
}

// loadConfig reads --config, or the config in the edgeqa home, and applies
// the command line over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// CLI takes precedence over the config file
	if c.IsSet("env") {
		cfg.Environment = c.String("env")
	}
	if c.IsSet("locators") {
		cfg.Locators = c.String("locators")
	}
	if c.IsSet("flows-dir") {
		cfg.FlowsDir = c.String("flows-dir")
	}
	if c.IsSet("include-tags") {
		cfg.IncludeTags = splitTags(c.StringSlice("include-tags"))
	}
	if c.IsSet("exclude-tags") {
		cfg.ExcludeTags = splitTags(c.StringSlice("exclude-tags"))
	}
	if c.IsSet("parallel") {
		cfg.Execution.Parallelism = c.Int("parallel")
	}
	if c.IsSet("stop-on-fail") {
		cfg.Execution.StopOnFail = c.Bool("stop-on-fail")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("metrics-file") {
		cfg.MetricsFile = c.String("metrics-file")
	}
	if c.IsSet("base-url") {
		cfg.API.BaseURL = c.String("base-url")
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadWorkspace loads config, suite and locator repository. Paths given on
// the command line are taken as-is; paths from the config file resolve
// against its directory.
func loadWorkspace(c *cli.Context) (*workspace, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	suitePath := c.Args().First()
	if suitePath == "" {
		suitePath = cfg.Path(cfg.Suite)
	}
	if suitePath == "" {
		return nil, fmt.Errorf("a suite file is required")
	}

	flowsDir := cfg.FlowsDir
	if !c.IsSet("flows-dir") {
		flowsDir = cfg.Path(flowsDir)
	}
	suite, err := source.LoadSuite(suitePath, source.Options{FlowsDir: flowsDir})
	if err != nil {
		return nil, err
	}

	locators := locator.Empty()
	if cfg.Locators != "" {
		path := cfg.Locators
		if !c.IsSet("locators") {
			path = cfg.Path(path)
		}
		locators, err = source.LoadLocatorRepository(path)
		if err != nil {
			return nil, err
		}
	}

	return &workspace{
		cfg:       cfg,
		suitePath: suitePath,
		suite:     suite,
		locators:  locators,
		testCases: c.StringSlice("testcase"),
	}, nil
}

// selects reports whether tc passes the id and tag filters.
func (w *workspace) selects(tc dsl.TestCase) bool {
	return dsl.ShouldInclude(tc, w.testCases, w.cfg.IncludeTags, w.cfg.ExcludeTags)
}

func (w *workspace) planOptions() plan.Options {
	return plan.Options{
		MaxDepth: w.cfg.Execution.MaxFlowDepth,
		Select:   w.selects,
	}
}

// name is the suite file name without its extension.
func (w *workspace) name() string {
	base := filepath.Base(w.suitePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// newLogger builds the command logger. The log goes to the configured file
// and, with --verbose, to stderr.
func newLogger(c *cli.Context, opts config.Logging) (*slog.Logger, io.Closer, error) {
	var w io.Writer = io.Discard
	if c.Bool("verbose") {
		w = os.Stderr
	}
	return logger.New(logger.Options{Level: opts.Level, Format: opts.Format, File: opts.File}, w)
}

// splitTags accepts both repeated flags and comma-separated values.
func splitTags(values []string) []string {
	var tags []string
	for _, v := range values {
		tags = append(tags, dsl.ParseTags(v)...)
	}
	return tags
}

// parseVars parses repeated KEY=VALUE flags.
func parseVars(pairs []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, expected KEY=VALUE", p)
		}
		result[key] = value
	}
	return result, nil
}
