package keywords

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// DriverConfig configures dry-run driver behavior.
type DriverConfig struct {
	// FailOnStep makes step N fail (1-indexed). 0 = never fail.
	FailOnStep int
	// StepDelay adds artificial delay per step
	StepDelay time.Duration
	// Browser name to report
	Browser string
}

// Action is one UI call the driver received.
type Action struct {
	Command  string
	Selector string // Primary selector, or the raw target when no locator
	Fallback string // Secondary selector
	Data     string
}

// Driver is a dry-run UI driver. It performs no browser work: every call
// is recorded and succeeds unless FailOnStep says otherwise.
type Driver struct {
	Config DriverConfig

	mu        sync.Mutex
	stepCount int
	actions   []Action
	page      string
}

// NewDriver creates a dry-run driver.
func NewDriver(cfg DriverConfig) *Driver {
	if cfg.Browser == "" {
		cfg.Browser = "dry-run"
	}
	return &Driver{Config: cfg}
}

// Execute simulates a UI command.
func (d *Driver) Execute(ctx context.Context, req core.Request) core.Result {
	start := time.Now()

	d.mu.Lock()
	d.stepCount++
	n := d.stepCount
	a := Action{Command: req.Command, Selector: req.Target, Data: req.Data}
	if req.Locator != nil {
		a.Selector = req.Locator.Primary
		a.Fallback = req.Locator.Secondary
	}
	d.actions = append(d.actions, a)
	if req.Command == dsl.CommandOpenURL {
		d.page = req.Target
	}
	d.mu.Unlock()

	if d.Config.StepDelay > 0 {
		select {
		case <-ctx.Done():
			return core.Failure(core.ErrCancelled.WithCause(ctx.Err()))
		case <-time.After(d.Config.StepDelay):
		}
	}

	if d.Config.FailOnStep > 0 && n == d.Config.FailOnStep {
		return core.Result{
			Success:  false,
			Duration: time.Since(start),
			Error:    fmt.Errorf("dry-run failure on step %d", n),
			Message:  fmt.Sprintf("Simulated failure on step %d (%s)", n, req.Command),
		}
	}

	result := core.Result{
		Success:  true,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("Dry-run executed: %s", req.Command),
	}
	switch req.Command {
	case dsl.CommandTakeScreenshot:
		name := req.Data
		if name == "" {
			name = fmt.Sprintf("screenshot_%d.png", n)
		}
		png, _ := d.Screenshot()
		result.Attachments = []core.Attachment{core.NewScreenshotAttachment(name, png)}
	case dsl.CommandVerifyText, dsl.CommandVerifyVisible, dsl.CommandClick, dsl.CommandTypeText:
		result.Data = map[string]interface{}{"selector": a.Selector, "browser": d.Config.Browser}
	}
	return result
}

// Actions returns a copy of the recorded calls.
func (d *Driver) Actions() []Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Action, len(d.actions))
	copy(out, d.actions)
	return out
}

// Page returns the last URL opened.
func (d *Driver) Page() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// Screenshot returns a placeholder PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}
