package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/edgeqa/edgeqa-runner/pkg/keywords"
	"github.com/edgeqa/edgeqa-runner/pkg/logger"
	"github.com/edgeqa/edgeqa-runner/pkg/plan"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Load a suite and expand every test case without running it",
	ArgsUsage: "<suite>",
	Description: `Validate reports load errors, expansion errors (unknown or circular
flows, invalid CALL_FLOW targets, missing steps sheets) and commands that
have no keyword handler. Flows no test case calls are checked too.`,
	Flags:  suiteFlags(),
	Action: validateSuite,
}

var planCommand = &cli.Command{
	Name:      "plan",
	Usage:     "Print the expanded step plan of test cases",
	ArgsUsage: "<suite>",
	Flags:     suiteFlags(),
	Action:    printPlans,
}

func validateSuite(c *cli.Context) error {
	ws, err := loadWorkspace(c)
	if err != nil {
		return err
	}

	registry, _, err := keywords.NewRegistry(keywords.SessionConfig{Logger: logger.Discard()})
	if err != nil {
		return err
	}

	result := plan.Validate(ws.suite, registry, ws.planOptions())
	w := c.App.Writer
	if !result.IsValid() {
		fmt.Fprintln(w)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s✗%s %v\n", color(colorRed), color(colorReset), e)
		}
		fmt.Fprintln(w)
		return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
	}

	steps := 0
	for _, p := range result.Plans {
		steps += len(p.Steps)
	}
	fmt.Fprintf(w, "  %s✓%s %d test case(s), %d flow(s), %d step(s)\n",
		color(colorGreen), color(colorReset), len(result.Plans), len(ws.suite.Flows), steps)
	return nil
}

func printPlans(c *cli.Context) error {
	ws, err := loadWorkspace(c)
	if err != nil {
		return err
	}

	w := c.App.Writer
	opts := ws.planOptions()
	failed := 0
	for _, tc := range ws.suite.TestCases {
		if !ws.selects(tc) {
			continue
		}
		fmt.Fprintf(w, "\n  %s%s%s", color(colorBold), tc.ID, color(colorReset))
		if tc.Description != "" {
			fmt.Fprintf(w, " (%s)", tc.Description)
		}
		if !tc.Execute {
			fmt.Fprintf(w, " %s[execute: no]%s", color(colorGray), color(colorReset))
		}
		fmt.Fprintln(w)

		p, err := plan.Build(ws.suite, tc, opts)
		if err != nil {
			failed++
			fmt.Fprintf(w, "    %s✗%s %v\n", color(colorRed), color(colorReset), err)
			continue
		}
		for i, s := range p.Steps {
			marker := ""
			if !s.Execute {
				marker = color(colorGray) + " (disabled)" + color(colorReset)
			}
			fmt.Fprintf(w, "    %3d %-6s %s%s\n", i+1, s.Phase, s.Describe(), marker)
		}
	}
	fmt.Fprintln(w)

	if failed > 0 {
		return fmt.Errorf("%d test case(s) failed to expand", failed)
	}
	return nil
}
