package keywords

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
	"github.com/edgeqa/edgeqa-runner/pkg/plan"
	"github.com/edgeqa/edgeqa-runner/pkg/runner"
	"github.com/edgeqa/edgeqa-runner/pkg/vars"
)

func TestNewRegistry(t *testing.T) {
	reg, driver, err := NewRegistry(SessionConfig{})
	require.NoError(t, err)
	require.NotNil(t, driver)

	assert.Equal(t, []string{
		"API_CALL", "ASSERT_EQUALS", "CLICK", "LOG", "OPEN_URL", "SET", "STORE_RESPONSE",
		"TAKE_SCREENSHOT", "TYPE_TEXT", "VERIFY_JSON", "VERIFY_STATUS", "VERIFY_TEXT",
		"VERIFY_VISIBLE", "WAIT",
	}, reg.Names())
	assert.True(t, reg.TakesLocator(dsl.CommandClick))
	assert.True(t, reg.TakesLocator(dsl.CommandVerifyVisible))
	assert.False(t, reg.TakesLocator(dsl.CommandOpenURL))
	assert.False(t, reg.TakesLocator(dsl.CommandTakeScreenshot))
	assert.False(t, reg.TakesLocator(dsl.CommandAPICall))
}

func TestSessions_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"name":"amy"}}`))
	}))
	defer srv.Close()

	repo, err := locator.New([]locator.Record{{Page: "Login", Name: "User", Primary: "#u", Type: locator.TypeCSS}})
	require.NoError(t, err)

	suite := &dsl.Suite{
		TestCases: []dsl.TestCase{{ID: "TC_API", Execute: true, StepsSheet: "S"}},
		Sheets: map[string][]dsl.Step{
			"S": {
				{Execute: true, Command: "API_CALL", Target: "/me"},
				{Execute: true, Command: "VERIFY_STATUS", Data: "200"},
				{Execute: true, Command: "STORE_RESPONSE", Target: "user.name", Store: "NAME"},
				{Execute: true, Command: "TYPE_TEXT", Target: "Login.User", Data: "${NAME}"},
				{Execute: true, Command: "ASSERT_EQUALS", Target: "{{NAME}}", Data: "amy"},
			},
		},
	}

	res := runner.NewSuiteRunner(suite, Sessions(SessionConfig{API: APIConfig{BaseURL: srv.URL}}), runner.SuiteConfig{
		Locators:  repo,
		Plan:      plan.Options{},
		StoreMode: vars.StoreShared,
	}).Run(context.Background())

	require.Len(t, res.TestCases, 1)
	tc := res.TestCases[0]
	assert.Equal(t, core.OutcomePassed, tc.Outcome, tc.Error)
	assert.Equal(t, "css=#u", tc.Steps[3].ResolvedTarget)
}
