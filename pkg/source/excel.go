package source

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
)

// table is a sheet with its header row mapped to canonical column names.
type table struct {
	name  string
	index map[string]int
	rows  [][]string
}

func newTable(name string, rows [][]string) *table {
	t := &table{name: name, index: make(map[string]int)}
	if len(rows) == 0 {
		return t
	}
	for i, h := range rows[0] {
		col := canonicalColumn(h)
		if col == "" {
			continue
		}
		if _, dup := t.index[col]; !dup {
			t.index[col] = i
		}
	}
	t.rows = rows[1:]
	return t
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return malformedf(t.name, "missing column(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

func (t *table) cell(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// origin returns the origin of data row i (0-based, header excluded).
func (t *table) origin(i int) dsl.Origin {
	return dsl.Origin{Table: t.name, Row: i + 1}
}

func (t *table) rawStep(row []string) rawStep {
	return rawStep{
		Seq:       t.cell(row, ColSeq),
		Execute:   t.cell(row, ColExecute),
		Command:   t.cell(row, ColCommand),
		Target:    t.cell(row, ColTarget),
		Data:      t.cell(row, ColData),
		Condition: t.cell(row, ColCondition),
		Store:     t.cell(row, ColStore),
		Failure:   t.cell(row, ColFailure),
	}
}

func (t *table) steps() ([]dsl.Step, error) {
	if err := t.require(ColCommand); err != nil {
		return nil, err
	}
	var steps []dsl.Step
	for i, row := range t.rows {
		if blankRow(row) {
			continue
		}
		step, err := t.rawStep(row).toStep(t.origin(i))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (t *table) testCases() ([]dsl.TestCase, error) {
	if err := t.require(ColTestCaseID, ColStepsSheet); err != nil {
		return nil, err
	}
	var cases []dsl.TestCase
	for i, row := range t.rows {
		if blankRow(row) {
			continue
		}
		raw := rawTestCase{
			ID:          t.cell(row, ColTestCaseID),
			Description: t.cell(row, ColDesc),
			Execute:     t.cell(row, ColExecute),
			BeforeHook:  t.cell(row, ColBeforeHook),
			StepsSheet:  t.cell(row, ColStepsSheet),
			AfterHook:   t.cell(row, ColAfterHook),
		}
		if tags := t.cell(row, ColTags); tags != "" {
			raw.Tags = tags
		}
		tc, err := raw.toTestCase(t.origin(i))
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// flowBlocks splits a FLOWS sheet into one definition per contiguous block
// of rows sharing a FlowName. A name that comes back after another block
// yields a second definition, which LoadFlows rejects as a duplicate.
func (t *table) flowBlocks() ([]FlowDef, error) {
	if err := t.require(ColFlowName, ColCommand); err != nil {
		return nil, err
	}
	var defs []FlowDef
	for i, row := range t.rows {
		if blankRow(row) {
			continue
		}
		name := t.cell(row, ColFlowName)
		if name == "" {
			return nil, core.ErrEmptyFlowName.
				WithMessagef("%s: flow row has no %s", t.origin(i), ColFlowName).
				WithDetails(map[string]interface{}{"source": t.name, "row": i + 1})
		}
		step, err := t.rawStep(row).toStep(dsl.Origin{Table: name, Row: i + 1})
		if err != nil {
			return nil, err
		}
		if n := len(defs); n > 0 && defs[n-1].Name == name {
			defs[n-1].Steps = append(defs[n-1].Steps, step)
			continue
		}
		defs = append(defs, FlowDef{
			Name:   name,
			Source: fmt.Sprintf("%s sheet row %d", t.name, i+1),
			Steps:  []dsl.Step{step},
		})
	}
	return defs, nil
}

func (t *table) locators() ([]locator.Record, error) {
	if err := t.require(ColPage, ColName, ColPrimary, ColType); err != nil {
		return nil, err
	}
	var records []locator.Record
	for i, row := range t.rows {
		if blankRow(row) {
			continue
		}
		raw := rawLocator{
			Page:      t.cell(row, ColPage),
			Name:      t.cell(row, ColName),
			Primary:   t.cell(row, ColPrimary),
			Secondary: t.cell(row, ColSecondary),
			Type:      t.cell(row, ColType),
		}
		rec, err := raw.toRecord(t.origin(i))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func openWorkbook(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, core.ErrMalformedTable.WithMessagef("open workbook %s", path).WithCause(err)
	}
	return f, nil
}

func readSheet(f *excelize.File, path, sheet string) (*table, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, core.ErrMalformedTable.WithMessagef("%s: read sheet %s", path, sheet).WithCause(err)
	}
	return newTable(sheet, rows), nil
}

func hasSheet(f *excelize.File, name string) bool {
	for _, s := range f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

func readExcelSuite(path string) (*suiteDefs, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !hasSheet(f, SheetTestCases) {
		return nil, malformedf(path, "missing %s sheet", SheetTestCases)
	}
	tcTable, err := readSheet(f, path, SheetTestCases)
	if err != nil {
		return nil, err
	}
	cases, err := tcTable.testCases()
	if err != nil {
		return nil, err
	}

	defs := &suiteDefs{TestCases: cases, Sheets: make(map[string][]dsl.Step)}

	// Only referenced sheets are read. A missing one surfaces later as a
	// setup failure of the test cases that name it.
	for _, tc := range cases {
		name := tc.StepsSheet
		if _, done := defs.Sheets[name]; done || !hasSheet(f, name) || name == SheetTestCases || name == SheetFlows {
			continue
		}
		t, err := readSheet(f, path, name)
		if err != nil {
			return nil, err
		}
		steps, err := t.steps()
		if err != nil {
			return nil, err
		}
		defs.Sheets[name] = steps
	}

	if hasSheet(f, SheetFlows) {
		t, err := readSheet(f, path, SheetFlows)
		if err != nil {
			return nil, err
		}
		if defs.Flows, err = t.flowBlocks(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// readExcelFlowFile reads the first sheet of a flow workbook.
func readExcelFlowFile(path, name string) ([]dsl.Step, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, malformedf(path, "workbook has no sheets")
	}
	t, err := readSheet(f, path, sheets[0])
	if err != nil {
		return nil, err
	}
	t.name = name
	return t.steps()
}

// readExcelLocators reads the first sheet of a locator workbook.
func readExcelLocators(path string) ([]locator.Record, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, malformedf(path, "workbook has no sheets")
	}
	t, err := readSheet(f, path, sheets[0])
	if err != nil {
		return nil, err
	}
	return t.locators()
}
