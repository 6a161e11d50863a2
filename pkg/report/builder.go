package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	RunID         string
	Suite         string // Suite name, usually the file name
	Environment   string
	RunnerVersion string
}

// BuildSkeleton creates the initial report structure from the loaded suite.
// Every test case starts as pending.
func BuildSkeleton(suite *dsl.Suite, cfg BuilderConfig) (*Index, []TestCaseDetail) {
	now := time.Now()

	index := &Index{
		Version:     Version,
		RunID:       cfg.RunID,
		Status:      StatusPending,
		Suite:       cfg.Suite,
		Environment: cfg.Environment,
		StartTime:   now,
		LastUpdated: now,
		Runner:      RunnerInfo{Version: cfg.RunnerVersion},
		Summary: Summary{
			Total:   len(suite.TestCases),
			Pending: len(suite.TestCases),
		},
		TestCases: make([]TestCaseEntry, len(suite.TestCases)),
	}
	details := make([]TestCaseDetail, len(suite.TestCases))

	for i, tc := range suite.TestCases {
		id := fmt.Sprintf("tc-%03d", i)
		index.TestCases[i] = TestCaseEntry{
			Index:       i,
			ID:          id,
			TestCase:    tc.ID,
			Description: tc.Description,
			DataFile:    filepath.Join("testcases", id+".json"),
			AssetsDir:   filepath.Join("assets", id),
			Status:      StatusPending,
		}
		details[i] = TestCaseDetail{
			ID:          id,
			TestCase:    tc.ID,
			Description: tc.Description,
			Tags:        tc.Tags,
			Status:      StatusPending,
			Steps:       []core.StepResult{},
		}
	}

	return index, details
}

// WriteSkeleton writes the initial skeleton to disk: report.json and every
// test case detail file with pending status.
func WriteSkeleton(outputDir string, index *Index, details []TestCaseDetail) error {
	if err := ensureDir(filepath.Join(outputDir, "testcases")); err != nil {
		return fmt.Errorf("create testcases dir: %w", err)
	}
	if err := ensureDir(filepath.Join(outputDir, "assets")); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	for _, d := range details {
		path := filepath.Join(outputDir, "testcases", d.ID+".json")
		if err := atomicWriteJSON(path, d); err != nil {
			return fmt.Errorf("write test case %s: %w", d.ID, err)
		}
	}

	if err := atomicWriteJSON(filepath.Join(outputDir, "report.json"), index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// ReadIndex reads report.json from outputDir.
func ReadIndex(outputDir string) (*Index, error) {
	var index Index
	if err := readJSON(filepath.Join(outputDir, "report.json"), &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// ReadTestCaseDetail reads the detail file of an index entry.
func ReadTestCaseDetail(outputDir string, entry TestCaseEntry) (*TestCaseDetail, error) {
	var d TestCaseDetail
	if err := readJSON(filepath.Join(outputDir, entry.DataFile), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to a temp file and renames it over path, so
// pollers never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path) //#nosec G304 -- report files under the output dir
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
