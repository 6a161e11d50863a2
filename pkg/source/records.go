package source

import (
	"fmt"
	"strings"

	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
)

// Canonical column names.
const (
	ColSeq        = "Seq"
	ColExecute    = "Execute"
	ColCommand    = "COMMAND"
	ColTarget     = "TARGET"
	ColData       = "DATA"
	ColCondition  = "CONDITION"
	ColStore      = "STORE"
	ColFailure    = "Failure Category"
	ColFlowName   = "FlowName"
	ColTestCaseID = "TestCaseID"
	ColDesc       = "Description"
	ColBeforeHook = "BeforeHook"
	ColStepsSheet = "StepsSheet"
	ColAfterHook  = "AfterHook"
	ColTags       = "Tags"
	ColPage       = "Page"
	ColName       = "Name"
	ColPrimary    = "Primary"
	ColSecondary  = "Secondary"
	ColType       = "Type"
)

var columns = func() map[string]string {
	m := make(map[string]string)
	for _, c := range []string{
		ColSeq, ColExecute, ColCommand, ColTarget, ColData, ColCondition, ColStore, ColFailure,
		ColFlowName, ColTestCaseID, ColDesc, ColBeforeHook, ColStepsSheet, ColAfterHook, ColTags,
		ColPage, ColName, ColPrimary, ColSecondary, ColType,
	} {
		m[strings.ToLower(c)] = c
	}
	m["execute (y/n)"] = ColExecute
	m["failurecategory"] = ColFailure
	return m
}()

// canonicalColumn maps a header cell to its canonical column name.
// Unknown headers are returned trimmed and unchanged.
func canonicalColumn(header string) string {
	h := strings.TrimSpace(header)
	if c, ok := columns[strings.ToLower(h)]; ok {
		return c
	}
	return h
}

type rawStep struct {
	Seq       string `mapstructure:"Seq"`
	Execute   string `mapstructure:"Execute"`
	Command   string `mapstructure:"COMMAND"`
	Target    string `mapstructure:"TARGET"`
	Data      string `mapstructure:"DATA"`
	Condition string `mapstructure:"CONDITION"`
	Store     string `mapstructure:"STORE"`
	Failure   string `mapstructure:"Failure Category"`
}

func (r rawStep) toStep(origin dsl.Origin) (dsl.Step, error) {
	seq, err := dsl.ParseSeq(r.Seq)
	if err != nil {
		return dsl.Step{}, malformed(origin, err)
	}
	// A blank Execute cell runs the step.
	execute, err := dsl.ParseFlag(r.Execute, true)
	if err != nil {
		return dsl.Step{}, malformed(origin, err)
	}
	failure, err := dsl.ParseFailureCategory(r.Failure)
	if err != nil {
		return dsl.Step{}, malformed(origin, err)
	}
	command := dsl.NormalizeCommand(r.Command)
	if command == "" {
		return dsl.Step{}, malformed(origin, fmt.Errorf("missing %s", ColCommand))
	}
	return dsl.Step{
		Seq:       seq,
		Execute:   execute,
		Command:   command,
		Target:    strings.TrimSpace(r.Target),
		Data:      strings.TrimSpace(r.Data),
		Condition: strings.TrimSpace(r.Condition),
		Store:     strings.TrimSpace(r.Store),
		Failure:   failure,
		Source:    origin,
	}, nil
}

type rawTestCase struct {
	ID          string      `mapstructure:"TestCaseID"`
	Description string      `mapstructure:"Description"`
	Execute     string      `mapstructure:"Execute"`
	BeforeHook  string      `mapstructure:"BeforeHook"`
	StepsSheet  string      `mapstructure:"StepsSheet"`
	AfterHook   string      `mapstructure:"AfterHook"`
	Tags        interface{} `mapstructure:"Tags"`
}

func (r rawTestCase) toTestCase(origin dsl.Origin) (dsl.TestCase, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return dsl.TestCase{}, malformed(origin, fmt.Errorf("missing %s", ColTestCaseID))
	}
	// A blank Execute cell skips the test case.
	execute, err := dsl.ParseFlag(r.Execute, false)
	if err != nil {
		return dsl.TestCase{}, malformed(origin, err)
	}
	sheet := strings.TrimSpace(r.StepsSheet)
	if sheet == "" {
		return dsl.TestCase{}, malformed(origin, fmt.Errorf("test case %s: missing %s", id, ColStepsSheet))
	}
	return dsl.TestCase{
		ID:          id,
		Description: strings.TrimSpace(r.Description),
		Execute:     execute,
		BeforeHook:  strings.TrimSpace(r.BeforeHook),
		StepsSheet:  sheet,
		AfterHook:   strings.TrimSpace(r.AfterHook),
		Tags:        tagsOf(r.Tags),
	}, nil
}

func tagsOf(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return dsl.ParseTags(t)
	case []interface{}:
		var tags []string
		for _, item := range t {
			tags = append(tags, dsl.ParseTags(fmt.Sprint(item))...)
		}
		return tags
	default:
		return dsl.ParseTags(fmt.Sprint(t))
	}
}

type rawLocator struct {
	Page      string `mapstructure:"Page"`
	Name      string `mapstructure:"Name"`
	Primary   string `mapstructure:"Primary"`
	Secondary string `mapstructure:"Secondary"`
	Type      string `mapstructure:"Type"`
}

func (r rawLocator) toRecord(origin dsl.Origin) (locator.Record, error) {
	t, err := locator.ParseType(r.Type)
	if err != nil {
		return locator.Record{}, malformed(origin, err)
	}
	rec := locator.Record{
		Page:      strings.TrimSpace(r.Page),
		Name:      strings.TrimSpace(r.Name),
		Primary:   strings.TrimSpace(r.Primary),
		Secondary: strings.TrimSpace(r.Secondary),
		Type:      t,
	}
	if rec.Page == "" || rec.Name == "" || rec.Primary == "" {
		return locator.Record{}, malformed(origin, fmt.Errorf("locator needs %s, %s and %s", ColPage, ColName, ColPrimary))
	}
	return rec, nil
}
