package keywords

import (
	"context"
	"log/slog"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/runner"
)

// uiCommands are dispatched to the UI driver. The bool marks commands whose
// TARGET is a locator reference.
var uiCommands = []struct {
	name         string
	takesLocator bool
}{
	{dsl.CommandOpenURL, false},
	{dsl.CommandClick, true},
	{dsl.CommandTypeText, true},
	{dsl.CommandVerifyText, true},
	{dsl.CommandVerifyVisible, true},
	{dsl.CommandTakeScreenshot, false},
}

// Register adds every bundled keyword to reg.
func Register(reg *runner.Registry, api *API, common *Common, ui core.Executor) error {
	handlers := []struct {
		name string
		fn   core.ExecutorFunc
	}{
		{dsl.CommandAPICall, api.Call},
		{dsl.CommandVerifyStatus, api.VerifyStatus},
		{dsl.CommandStoreResponse, api.StoreResponse},
		{dsl.CommandVerifyJSON, api.VerifyJSON},
		{dsl.CommandSet, common.Set},
		{dsl.CommandAssertEquals, common.AssertEquals},
		{dsl.CommandLog, common.Log},
		{dsl.CommandWait, common.Wait},
	}
	for _, h := range handlers {
		if err := reg.Register(h.name, h.fn); err != nil {
			return err
		}
	}
	for _, c := range uiCommands {
		var opts []runner.Option
		if c.takesLocator {
			opts = append(opts, runner.TakesLocator())
		}
		if err := reg.Register(c.name, ui, opts...); err != nil {
			return err
		}
	}
	return nil
}

// SessionConfig configures the keyword handlers of each test case.
type SessionConfig struct {
	API    APIConfig
	Driver DriverConfig
	Logger *slog.Logger
}

// NewRegistry builds a registry with fresh handlers.
func NewRegistry(cfg SessionConfig) (*runner.Registry, *Driver, error) {
	if cfg.API.Logger == nil {
		cfg.API.Logger = cfg.Logger
	}
	reg := runner.NewRegistry()
	driver := NewDriver(cfg.Driver)
	if err := Register(reg, NewAPI(cfg.API), NewCommon(cfg.Logger), driver); err != nil {
		return nil, nil, err
	}
	return reg, driver, nil
}

// Sessions returns a factory that gives every test case its own HTTP
// client and driver.
func Sessions(cfg SessionConfig) runner.SessionFactory {
	return func(_ context.Context, tc dsl.TestCase) (*runner.Session, error) {
		c := cfg
		if c.Logger != nil {
			c.Logger = c.Logger.With("testCase", tc.ID)
		}
		reg, _, err := NewRegistry(c)
		if err != nil {
			return nil, err
		}
		return &runner.Session{Registry: reg}, nil
	}
}
