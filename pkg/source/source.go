// Package source loads test suites, flows and locator repositories from
// Excel workbooks and JSON/YAML documents.
package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// Sheet names with a fixed meaning in a suite workbook.
const (
	SheetTestCases = "TestCases"
	SheetFlows     = "FLOWS"
)

// Format is a source document format.
type Format int

// Supported formats.
const (
	FormatUnknown Format = iota
	FormatExcel
	FormatJSON
	FormatYAML
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatExcel
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatUnknown
}

// Options controls suite loading.
type Options struct {
	// FlowsDir holds *.flow.xlsx / *.flow.json / *.flow.yaml files, one flow
	// per file. Optional.
	FlowsDir string
}

// suiteDefs is what a format reader produces before flows are assembled.
type suiteDefs struct {
	TestCases []dsl.TestCase
	Sheets    map[string][]dsl.Step
	Flows     []FlowDef
}

// LoadSuite loads a suite and every flow it can see. Any error is a load
// error and nothing in the suite should run.
func LoadSuite(path string, opts Options) (*dsl.Suite, error) {
	var (
		defs *suiteDefs
		err  error
	)
	switch DetectFormat(path) {
	case FormatExcel:
		defs, err = readExcelSuite(path)
	case FormatJSON, FormatYAML:
		defs, err = readDocumentSuite(path)
	default:
		return nil, core.ErrMalformedTable.WithMessagef("%s: unsupported suite format", path)
	}
	if err != nil {
		return nil, err
	}

	flowDefs := defs.Flows
	if opts.FlowsDir != "" {
		dirDefs, err := LoadFlowsDir(opts.FlowsDir)
		if err != nil {
			return nil, err
		}
		flowDefs = append(flowDefs, dirDefs...)
	}

	flows, err := LoadFlows(flowDefs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(defs.TestCases))
	for _, tc := range defs.TestCases {
		if seen[tc.ID] {
			return nil, core.ErrDuplicateTestCase.
				WithMessagef("%s: duplicate test case id %s", path, tc.ID).
				WithDetails(map[string]interface{}{"testCase": tc.ID})
		}
		seen[tc.ID] = true
	}

	return &dsl.Suite{
		Source:    path,
		TestCases: defs.TestCases,
		Sheets:    defs.Sheets,
		Flows:     flows,
	}, nil
}

func malformed(origin dsl.Origin, err error) *core.Error {
	return core.ErrMalformedTable.
		WithMessagef("%s: %v", origin, err).
		WithDetails(map[string]interface{}{"table": origin.Table, "row": origin.Row})
}

func malformedf(table, format string, args ...interface{}) *core.Error {
	return core.ErrMalformedTable.
		WithMessagef("%s: %s", table, fmt.Sprintf(format, args...)).
		WithDetails(map[string]interface{}{"table": table})
}
