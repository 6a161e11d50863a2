package source

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

func TestLoadFlows(t *testing.T) {
	flows, err := LoadFlows([]FlowDef{
		{Name: "LOGIN_FLOW", Source: "FLOWS", Steps: []dsl.Step{
			{Seq: 2, Command: "CLICK"},
			{Seq: 1, Command: "TYPE_TEXT"},
		}},
		{Name: " OUTER ", Source: "FLOWS", Steps: []dsl.Step{
			{Seq: 1, Command: dsl.CommandCallFlow, Target: "LOGIN_FLOW"},
			{Seq: 2, Command: dsl.CommandCallFlow, Target: "NOT_YET_DEFINED"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, flows, 2)

	assert.Equal(t, "TYPE_TEXT", flows["LOGIN_FLOW"].Steps[0].Command)
	require.Contains(t, flows, "OUTER")
	assert.Equal(t, "OUTER", flows["OUTER"].Name)
}

func TestLoadFlows_DoesNotMutateInput(t *testing.T) {
	steps := []dsl.Step{{Seq: 2, Command: "B"}, {Seq: 1, Command: "A"}}
	_, err := LoadFlows([]FlowDef{{Name: "F", Steps: steps}})
	require.NoError(t, err)
	assert.Equal(t, "B", steps[0].Command)
}

func TestLoadFlows_Duplicate(t *testing.T) {
	_, err := LoadFlows([]FlowDef{
		{Name: "A", Source: "FLOWS sheet row 1"},
		{Name: "A", Source: "flows/A.flow.json"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicateFlowName))
	assert.Contains(t, err.Error(), "flows/A.flow.json")
	assert.Equal(t, core.KindLoad, core.KindOf(err))
}

func TestLoadFlows_Empty(t *testing.T) {
	_, err := LoadFlows([]FlowDef{{Name: "  ", Source: "x.json"}})
	assert.True(t, errors.Is(err, core.ErrEmptyFlowName))
}

func TestFlowNameFromFile(t *testing.T) {
	assert.Equal(t, "LOGIN_FLOW", FlowNameFromFile("/flows/LOGIN_FLOW.flow.xlsx"))
	assert.Equal(t, "Logout", FlowNameFromFile("Logout.FLOW.yaml"))
	assert.Equal(t, "", FlowNameFromFile("suite.xlsx"))
}

func TestLoadFlowsDir(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "LOGIN_FLOW.flow.xlsx"), sheet{"Steps", [][]interface{}{
		stepHeader,
		stepRow(1, "TYPE_TEXT", "Login.Username", "{{user}}"),
		stepRow(2, "CLICK", "Login.Submit", ""),
	}})
	writeFile(t, filepath.Join(dir, "LOGOUT.flow.json"), `[{"Seq": 1, "COMMAND": "CLICK", "TARGET": "Home.Logout"}]`)
	writeFile(t, filepath.Join(dir, "SEARCH.flow.yaml"), "- {Seq: 1, COMMAND: TYPE_TEXT, TARGET: Home.Search, DATA: shoes}\n")
	writeFile(t, filepath.Join(dir, "README.md"), "ignored")

	defs, err := LoadFlowsDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "LOGIN_FLOW", defs[0].Name)
	assert.Equal(t, "LOGOUT", defs[1].Name)
	assert.Equal(t, "SEARCH", defs[2].Name)
	assert.Len(t, defs[0].Steps, 2)
	assert.Equal(t, dsl.Origin{Table: "LOGIN_FLOW", Row: 1}, defs[0].Steps[0].Source)
}

func TestLoadFlowsDir_Missing(t *testing.T) {
	defs, err := LoadFlowsDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoadSuite_FlowDefinedInSuiteAndDir(t *testing.T) {
	dir := t.TempDir()
	suitePath := filepath.Join(dir, "suite.json")
	writeFile(t, suitePath, `{"TestCases": [], "Flows": [{"FlowName": "LOGOUT", "Steps": []}]}`)
	flowsDir := filepath.Join(dir, "flows")
	writeFile(t, filepath.Join(flowsDir, "LOGOUT.flow.json"), `[]`)

	_, err := LoadSuite(suitePath, Options{FlowsDir: flowsDir})
	assert.True(t, errors.Is(err, core.ErrDuplicateFlowName))
}

func TestLoadSuite_FlowsDirMerged(t *testing.T) {
	dir := t.TempDir()
	suitePath := filepath.Join(dir, "suite.json")
	writeFile(t, suitePath, `{"TestCases": [], "Flows": [{"FlowName": "A", "Steps": []}]}`)
	flowsDir := filepath.Join(dir, "flows")
	writeFile(t, filepath.Join(flowsDir, "B.flow.json"), `[]`)

	suite, err := LoadSuite(suitePath, Options{FlowsDir: flowsDir})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, suite.FlowNames())
}
