package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// FlowDef is one flow definition as read from a source, before names are
// checked for uniqueness.
type FlowDef struct {
	Name   string
	Source string // FLOWS sheet, document or file the definition came from
	Steps  []dsl.Step
}

// LoadFlows builds the flow table. Names must be non-empty and unique
// across every definition. CALL_FLOW targets inside the steps are not
// checked here; forward references are fine.
func LoadFlows(defs []FlowDef) (map[string]*dsl.Flow, error) {
	flows := make(map[string]*dsl.Flow, len(defs))
	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, core.ErrEmptyFlowName.
				WithMessagef("%s: flow definition has no name", def.Source).
				WithDetails(map[string]interface{}{"source": def.Source})
		}
		if prev, exists := flows[name]; exists {
			return nil, core.ErrDuplicateFlowName.
				WithMessagef("duplicate flow name %s (defined in %s and %s)", name, prev.Source, def.Source).
				WithDetails(map[string]interface{}{"flow": name})
		}

		steps := make([]dsl.Step, len(def.Steps))
		copy(steps, def.Steps)
		dsl.SortBySeq(steps)

		flows[name] = &dsl.Flow{Name: name, Source: def.Source, Steps: steps}
	}
	return flows, nil
}

// flowFileSuffixes are the recognised flow file endings.
var flowFileSuffixes = []string{".flow.xlsx", ".flow.json", ".flow.yaml", ".flow.yml"}

// FlowNameFromFile returns the flow name for a flow file path, or "" if the
// path is not a flow file.
func FlowNameFromFile(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, suffix := range flowFileSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return base[:len(base)-len(suffix)]
		}
	}
	return ""
}

// LoadFlowsDir reads every flow file in dir, in name order. A missing
// directory yields no flows.
func LoadFlowsDir(dir string) ([]FlowDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.ErrMalformedTable.WithMessagef("flows dir %s", dir).WithCause(err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || FlowNameFromFile(e.Name()) == "" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	defs := make([]FlowDef, 0, len(names))
	for _, n := range names {
		def, err := LoadFlowFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFlowFile reads a single flow file. The flow is named after the file.
func LoadFlowFile(path string) (FlowDef, error) {
	def := FlowDef{Name: FlowNameFromFile(path), Source: path}

	var (
		steps []dsl.Step
		err   error
	)
	switch DetectFormat(path) {
	case FormatExcel:
		steps, err = readExcelFlowFile(path, def.Name)
	case FormatJSON, FormatYAML:
		steps, err = readDocumentFlowFile(path, def.Name)
	default:
		return def, core.ErrMalformedTable.WithMessagef("%s: unsupported flow file format", path)
	}
	if err != nil {
		return def, err
	}
	def.Steps = steps
	return def, nil
}
