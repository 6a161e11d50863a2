package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live run progress. Step lines are only printed for
// sequential runs; parallel runs would interleave them.
type progress struct {
	mu    sync.Mutex
	w     io.Writer
	steps bool
}

func newProgress(w io.Writer, steps bool) *progress {
	return &progress{w: w, steps: steps}
}

func (p *progress) testCaseStart(idx, total int, tc dsl.TestCase) {
	if !p.steps {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), tc.ID, color(colorReset))
	if tc.Description != "" {
		fmt.Fprintf(p.w, " (%s)", tc.Description)
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *progress) stepComplete(step core.StepResult) {
	if !p.steps {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	indent := strings.Repeat("  ", 2+len(step.Flows))
	desc := step.Describe()
	ms := step.Duration.Milliseconds()
	durStr := formatDuration(ms)

	switch step.Status {
	case core.StatusPassed:
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if ms >= slowThresholdMs {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Fprintf(p.w, "%s%s%s%s %s %s(%s)%s\n",
			indent, symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	case core.StatusFailed:
		fmt.Fprintf(p.w, "%s%s✗%s %s (%s)\n", indent, color(colorRed), color(colorReset), desc, durStr)
		if step.Error != "" {
			fmt.Fprintf(p.w, "%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), step.Error)
		}
	default:
		fmt.Fprintf(p.w, "%s%s-%s %s%s%s\n", indent, color(colorCyan), color(colorReset), color(colorGray), desc, color(colorReset))
	}
}

func (p *progress) testCaseEnd(result core.TestCaseResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dur := formatDuration(result.Duration.Milliseconds())
	switch result.Outcome {
	case core.OutcomePassed:
		fmt.Fprintf(p.w, "%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), result.ID, color(colorGray), dur, color(colorReset))
	case core.OutcomeSkipped:
		fmt.Fprintf(p.w, "%s- %s%s %sskipped%s\n",
			color(colorCyan), color(colorReset), result.ID, color(colorGray), color(colorReset))
	default:
		fmt.Fprintf(p.w, "%s✗ %s%s %s%s%s\n",
			color(colorRed), color(colorReset), result.ID, color(colorGray), dur, color(colorReset))
		if result.Outcome == core.OutcomeSetupFailure && result.Error != "" {
			fmt.Fprintf(p.w, "    %s╰─%s %s\n", color(colorGray), color(colorReset), result.Error)
		}
	}
}

func printSummary(w io.Writer, result *core.SuiteResult) {
	// Calculate totals
	totalSteps := 0
	passedSteps := 0
	failedSteps := 0
	skippedSteps := 0
	for _, tc := range result.TestCases {
		totalSteps += tc.TotalSteps
		passedSteps += tc.PassedSteps
		failedSteps += tc.FailedSteps
		skippedSteps += tc.SkippedSteps
	}
	durMs := result.Duration.Milliseconds()

	// Print step summary
	fmt.Fprintln(w)
	if passedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(durMs))
	}
	if failedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(w)

	// Print table
	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Test Case", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, tc := range result.TestCases {
		var status string
		var statusColor string
		switch tc.Outcome {
		case core.OutcomeFailed:
			status = "✗ FAIL"
			statusColor = color(colorRed)
		case core.OutcomeSetupFailure:
			status = "✗ SETUP"
			statusColor = color(colorRed)
		case core.OutcomeSkipped:
			status = "- SKIP"
			statusColor = color(colorCyan)
		case core.OutcomeCancelled:
			status = "✗ STOP"
			statusColor = color(colorYellow)
		default:
			status = "✓ PASS"
			statusColor = color(colorGreen)
		}

		// Truncate name if too long
		name := tc.ID
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			tc.TotalSteps, tc.PassedSteps, tc.FailedSteps, tc.SkippedSteps,
			formatDuration(tc.Duration.Milliseconds()))
	}

	// Print totals row
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.Passed, result.Total-result.Skipped)
	statusColor := color(colorGreen)
	if result.Failed > 0 || result.SetupFailures > 0 || result.Cancelled > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(durMs))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
