package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

// TestCaseWriter writes updates for a single test case.
// Each test case goroutine has its own TestCaseWriter - no locking needed.
type TestCaseWriter struct {
	detail    *TestCaseDetail
	path      string
	assetsDir string
	index     *IndexWriter
}

// NewTestCaseWriter creates a new TestCaseWriter for a test case.
func NewTestCaseWriter(detail *TestCaseDetail, outputDir string, index *IndexWriter) *TestCaseWriter {
	return &TestCaseWriter{
		detail:    detail,
		path:      filepath.Join(outputDir, "testcases", detail.ID+".json"),
		assetsDir: filepath.Join(outputDir, "assets", detail.ID),
		index:     index,
	}
}

// Start marks the test case as started.
func (w *TestCaseWriter) Start() {
	now := time.Now()
	w.detail.StartTime = now
	w.detail.Status = StatusRunning

	w.flush()
	w.index.UpdateTestCase(w.detail.ID, &TestCaseUpdate{
		Status:    StatusRunning,
		StartTime: &now,
		Steps:     w.stepSummary(),
	})
}

// StepEnd records a finished step. Attachment bodies are saved under the
// assets directory and their paths rewritten relative to the output dir.
func (w *TestCaseWriter) StepEnd(step core.StepResult) {
	for i := range step.Attachments {
		if rel, err := w.saveAttachment(step.Index, step.Attachments[i]); err == nil {
			step.Attachments[i].Path = rel
		}
	}
	w.detail.Steps = append(w.detail.Steps, step)

	w.flush()
	w.index.UpdateTestCase(w.detail.ID, &TestCaseUpdate{
		Status: StatusRunning,
		Steps:  w.stepSummary(),
	})
}

// End marks the test case as complete.
func (w *TestCaseWriter) End(result core.TestCaseResult) {
	now := time.Now()
	status := statusOf(result.Outcome)
	w.detail.Status = status
	w.detail.EndTime = &now
	w.detail.Error = result.Error
	if result.State.IsTerminal() {
		w.detail.State = result.State.String()
	}
	if w.detail.StartTime.IsZero() {
		w.detail.StartTime = result.StartTime
	}
	duration := result.Duration.Milliseconds()
	w.detail.Duration = &duration

	w.flush()

	update := &TestCaseUpdate{
		Status:     status,
		StartTime:  &w.detail.StartTime,
		EndTime:    &now,
		Duration:   &duration,
		Steps:      w.stepSummary(),
		FailedStep: result.FailedStep,
	}
	if result.Error != "" {
		errMsg := result.Error
		update.Error = &errMsg
	}
	w.index.UpdateTestCase(w.detail.ID, update)
}

// Detail returns the detail being written.
func (w *TestCaseWriter) Detail() *TestCaseDetail {
	return w.detail
}

func (w *TestCaseWriter) flush() {
	w.index.recordError(atomicWriteJSON(w.path, w.detail))
}

func (w *TestCaseWriter) stepSummary() StepSummary {
	var s StepSummary
	for _, step := range w.detail.Steps {
		s.Total++
		switch step.Status {
		case core.StatusPassed:
			s.Passed++
		case core.StatusFailed:
			s.Failed++
		case core.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (w *TestCaseWriter) saveAttachment(stepIndex int, a core.Attachment) (string, error) {
	if len(a.Body) == 0 {
		return "", fmt.Errorf("attachment %s has no body", a.Name)
	}
	name := filepath.Base(a.Path)
	if a.Path == "" || name == "." || name == string(filepath.Separator) {
		name = a.Name + extensionOf(a.ContentType)
	}
	name = fmt.Sprintf("step-%03d-%s", stepIndex, unsafeName.ReplaceAllString(name, "_"))

	if err := ensureDir(w.assetsDir); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(w.assetsDir, name), a.Body, 0o644); err != nil {
		return "", err
	}
	return filepath.Join("assets", w.detail.ID, name), nil
}

func extensionOf(contentType string) string {
	switch contentType {
	case core.ContentTypePNG:
		return ".png"
	case core.ContentTypeJSON:
		return ".json"
	}
	return ".txt"
}
