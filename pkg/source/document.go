package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
)

const schemaBase = "https://edgeqa.dev/schemas/"

// schemaDefs is shared by every document schema.
const schemaDefs = `{
  "$id": "https://edgeqa.dev/schemas/defs.json",
  "$defs": {
    "cell": { "type": ["string", "number", "boolean", "null"] },
    "step": {
      "type": "object",
      "required": ["COMMAND"],
      "properties": {
        "Seq": { "$ref": "#/$defs/cell" },
        "Execute": { "$ref": "#/$defs/cell" },
        "COMMAND": { "type": "string", "minLength": 1 },
        "TARGET": { "$ref": "#/$defs/cell" },
        "DATA": { "$ref": "#/$defs/cell" },
        "CONDITION": { "$ref": "#/$defs/cell" },
        "STORE": { "$ref": "#/$defs/cell" },
        "Failure Category": { "$ref": "#/$defs/cell" }
      }
    },
    "steps": {
      "type": "array",
      "items": { "$ref": "#/$defs/step" }
    },
    "testCase": {
      "type": "object",
      "required": ["TestCaseID", "StepsSheet"],
      "properties": {
        "TestCaseID": { "type": ["string", "number"] },
        "Description": { "$ref": "#/$defs/cell" },
        "Execute": { "$ref": "#/$defs/cell" },
        "BeforeHook": { "$ref": "#/$defs/cell" },
        "StepsSheet": { "type": "string", "minLength": 1 },
        "AfterHook": { "$ref": "#/$defs/cell" },
        "Tags": {
          "oneOf": [
            { "type": "string" },
            { "type": "array", "items": { "type": "string" } }
          ]
        }
      }
    },
    "flow": {
      "type": "object",
      "required": ["FlowName", "Steps"],
      "properties": {
        "FlowName": { "type": "string" },
        "Steps": { "$ref": "#/$defs/steps" }
      }
    },
    "locator": {
      "type": "object",
      "required": ["Page", "Name", "Primary", "Type"],
      "properties": {
        "Page": { "type": "string", "minLength": 1 },
        "Name": { "type": "string", "minLength": 1 },
        "Primary": { "type": "string", "minLength": 1 },
        "Secondary": { "$ref": "#/$defs/cell" },
        "Type": { "type": "string", "minLength": 1 }
      }
    }
  }
}`

const suiteSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://edgeqa.dev/schemas/suite.json",
  "type": "object",
  "required": ["TestCases"],
  "properties": {
    "TestCases": {
      "type": "array",
      "items": { "$ref": "defs.json#/$defs/testCase" }
    },
    "Sheets": {
      "type": "object",
      "additionalProperties": { "$ref": "defs.json#/$defs/steps" }
    },
    "Flows": {
      "type": "array",
      "items": { "$ref": "defs.json#/$defs/flow" }
    }
  }
}`

const flowFileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://edgeqa.dev/schemas/flow.json",
  "$ref": "defs.json#/$defs/steps"
}`

const locatorsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://edgeqa.dev/schemas/locators.json",
  "type": "array",
  "items": { "$ref": "defs.json#/$defs/locator" }
}`

type schemas struct {
	suite    *jsonschema.Schema
	flow     *jsonschema.Schema
	locators *jsonschema.Schema
}

var loadSchemas = sync.OnceValues(func() (*schemas, error) {
	c := jsonschema.NewCompiler()
	resources := map[string]string{
		"defs.json":     schemaDefs,
		"suite.json":    suiteSchema,
		"flow.json":     flowFileSchema,
		"locators.json": locatorsSchema,
	}
	for name, text := range resources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", name, err)
		}
		if err := c.AddResource(schemaBase+name, doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", name, err)
		}
	}

	s := &schemas{}
	var err error
	if s.suite, err = c.Compile(schemaBase + "suite.json"); err != nil {
		return nil, fmt.Errorf("compile suite schema: %w", err)
	}
	if s.flow, err = c.Compile(schemaBase + "flow.json"); err != nil {
		return nil, fmt.Errorf("compile flow schema: %w", err)
	}
	if s.locators, err = c.Compile(schemaBase + "locators.json"); err != nil {
		return nil, fmt.Errorf("compile locators schema: %w", err)
	}
	return s, nil
})

// readDocument reads a JSON or YAML file into a JSON value tree
// (map[string]any, []any, json.Number, string, bool, nil).
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided suite file
	if err != nil {
		return nil, core.ErrMalformedTable.WithMessagef("read %s", path).WithCause(err)
	}

	if DetectFormat(path) == FormatYAML {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, core.ErrMalformedTable.WithMessagef("%s: invalid YAML", path).WithCause(err)
		}
		if data, err = json.Marshal(v); err != nil {
			return nil, core.ErrMalformedTable.WithMessagef("%s: YAML is not representable as JSON", path).WithCause(err)
		}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, core.ErrMalformedTable.WithMessagef("%s: invalid JSON", path).WithCause(err)
	}
	return doc, nil
}

// validate checks doc against sch and reports every violation.
func validate(path string, sch *jsonschema.Schema, doc any) error {
	err := sch.Validate(doc)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return core.ErrMalformedTable.WithMessagef("%s: %v", path, err)
	}
	violations := collectViolations(verr)
	return core.ErrMalformedTable.
		WithMessagef("%s: schema validation failed: %s", path, strings.Join(violations, "; ")).
		WithDetails(map[string]interface{}{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}

// canonicalKeys rewrites record keys to canonical column names in place.
func canonicalKeys(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	for k, val := range m {
		if c := canonicalColumn(k); c != k {
			delete(m, k)
			m[c] = val
		}
	}
}

func canonicalRecords(v any) {
	if items, ok := v.([]any); ok {
		for _, item := range items {
			canonicalKeys(item)
		}
	}
}

func decode(input, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(input)
}

type suiteDocument struct {
	TestCases []rawTestCase        `mapstructure:"TestCases"`
	Sheets    map[string][]rawStep `mapstructure:"Sheets"`
	Flows     []rawFlow            `mapstructure:"Flows"`
}

type rawFlow struct {
	FlowName string    `mapstructure:"FlowName"`
	Steps    []rawStep `mapstructure:"Steps"`
}

func convertSteps(table string, raws []rawStep) ([]dsl.Step, error) {
	steps := make([]dsl.Step, 0, len(raws))
	for i, raw := range raws {
		step, err := raw.toStep(dsl.Origin{Table: table, Row: i + 1})
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func readDocumentSuite(path string) (*suiteDefs, error) {
	sch, err := loadSchemas()
	if err != nil {
		return nil, core.ErrMalformedTable.WithCause(err)
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	if root, ok := doc.(map[string]any); ok {
		canonicalRecords(root["TestCases"])
		if sheets, ok := root["Sheets"].(map[string]any); ok {
			for _, steps := range sheets {
				canonicalRecords(steps)
			}
		}
		if flows, ok := root["Flows"].([]any); ok {
			canonicalRecords(flows)
			for _, f := range flows {
				if fm, ok := f.(map[string]any); ok {
					canonicalRecords(fm["Steps"])
				}
			}
		}
	}

	if err := validate(path, sch.suite, doc); err != nil {
		return nil, err
	}

	var sd suiteDocument
	if err := decode(doc, &sd); err != nil {
		return nil, core.ErrMalformedTable.WithMessagef("%s: decode suite", path).WithCause(err)
	}

	defs := &suiteDefs{Sheets: make(map[string][]dsl.Step, len(sd.Sheets))}
	for i, raw := range sd.TestCases {
		tc, err := raw.toTestCase(dsl.Origin{Table: SheetTestCases, Row: i + 1})
		if err != nil {
			return nil, err
		}
		defs.TestCases = append(defs.TestCases, tc)
	}
	for name, raws := range sd.Sheets {
		steps, err := convertSteps(name, raws)
		if err != nil {
			return nil, err
		}
		defs.Sheets[name] = steps
	}
	for i, raw := range sd.Flows {
		steps, err := convertSteps(raw.FlowName, raw.Steps)
		if err != nil {
			return nil, err
		}
		defs.Flows = append(defs.Flows, FlowDef{
			Name:   raw.FlowName,
			Source: fmt.Sprintf("%s Flows[%d]", path, i),
			Steps:  steps,
		})
	}
	return defs, nil
}

func readDocumentFlowFile(path, name string) ([]dsl.Step, error) {
	sch, err := loadSchemas()
	if err != nil {
		return nil, core.ErrMalformedTable.WithCause(err)
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	canonicalRecords(doc)
	if err := validate(path, sch.flow, doc); err != nil {
		return nil, err
	}

	var raws []rawStep
	if err := decode(doc, &raws); err != nil {
		return nil, core.ErrMalformedTable.WithMessagef("%s: decode flow", path).WithCause(err)
	}
	return convertSteps(name, raws)
}

func readDocumentLocators(path string) ([]locator.Record, error) {
	sch, err := loadSchemas()
	if err != nil {
		return nil, core.ErrMalformedTable.WithCause(err)
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	canonicalRecords(doc)
	if err := validate(path, sch.locators, doc); err != nil {
		return nil, err
	}

	var raws []rawLocator
	if err := decode(doc, &raws); err != nil {
		return nil, core.ErrMalformedTable.WithMessagef("%s: decode locators", path).WithCause(err)
	}
	records := make([]locator.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := raw.toRecord(dsl.Origin{Table: path, Row: i + 1})
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
