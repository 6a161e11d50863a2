package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/logger"
)

// Common implements SET, ASSERT_EQUALS, LOG and WAIT.
type Common struct {
	log *slog.Logger
}

// NewCommon creates the common keywords.
func NewCommon(log *slog.Logger) *Common {
	return &Common{log: logger.OrDiscard(log)}
}

// Set returns DATA as the store value.
func (c *Common) Set(_ context.Context, req core.Request) core.Result {
	return core.SuccessWithValue("set", req.Data)
}

// AssertEquals compares TARGET (actual) with DATA (expected).
func (c *Common) AssertEquals(_ context.Context, req core.Request) core.Result {
	if req.Target != req.Data {
		return core.Failure(fmt.Errorf("assert failed. Expected=%q, Actual=%q", req.Data, req.Target))
	}
	return core.Success("values are equal")
}

// Log writes TARGET and DATA to the run log.
func (c *Common) Log(_ context.Context, req core.Request) core.Result {
	c.log.Info("log step", "target", req.Target, "data", req.Data)
	return core.Success(strings.TrimSpace(req.Target + " " + req.Data))
}

// Wait sleeps for DATA, or TARGET when DATA is blank. A bare number is
// seconds.
func (c *Common) Wait(ctx context.Context, req core.Request) core.Result {
	raw := strings.TrimSpace(req.Data)
	if raw == "" {
		raw = strings.TrimSpace(req.Target)
	}
	d, err := parseWait(raw)
	if err != nil {
		return core.Failure(err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return core.Failure(core.ErrCancelled.WithCause(ctx.Err()))
	case <-timer.C:
		return core.Success(fmt.Sprintf("waited %s", d))
	}
}

func parseWait(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("WAIT needs a duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("WAIT: negative duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("WAIT: invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("WAIT: negative duration %q", s)
	}
	return d, nil
}
