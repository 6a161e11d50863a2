// Package cli provides the command-line interface for edgeqa-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Workspace config file (config.yaml or config.toml)",
		EnvVars: []string{"EDGEQA_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		EnvVars: []string{"EDGEQA_LOG_LEVEL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Also write the run log to stderr",
		EnvVars: []string{"EDGEQA_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// suiteFlags are shared by every command that loads a suite.
func suiteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "locators",
			Usage: "Locator repository (.xlsx, .json, .yaml)",
		},
		&cli.StringFlag{
			Name:  "flows-dir",
			Usage: "Directory of *.flow.xlsx / *.flow.json / *.flow.yaml files",
		},
		&cli.StringSliceFlag{
			Name:  "testcase",
			Usage: "Only this test case id (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only test cases with any of these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Skip test cases with any of these tags",
		},
	}
}

// NewApp builds the edgeqa application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "edgeqa",
		Usage:   "Data-driven test runner for Excel and JSON suites",
		Version: Version,
		Description: `edgeqa expands the test cases of an Excel, JSON or YAML suite into flat
step plans, inlining CALL_FLOW references, and runs them against the
bundled API and UI keywords.

Examples:
  edgeqa run --locators locators.xlsx suite.xlsx
  edgeqa run -e staging --var USER=qa --parallel 4 suite.json
  edgeqa validate --flows-dir flows/ suite.xlsx
  edgeqa plan --testcase TC_LOGIN suite.xlsx`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
			planCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
