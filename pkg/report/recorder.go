package report

import (
	"sync"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// Recorder connects suite runner callbacks to the report writers.
type Recorder struct {
	index   *IndexWriter
	output  string
	mu      sync.Mutex
	details []TestCaseDetail
	writers map[int]*TestCaseWriter
}

// NewRecorder writes the skeleton of suite to outputDir and returns a
// recorder ready to receive run events.
func NewRecorder(outputDir string, suite *dsl.Suite, cfg BuilderConfig) (*Recorder, error) {
	index, details := BuildSkeleton(suite, cfg)
	if err := WriteSkeleton(outputDir, index, details); err != nil {
		return nil, err
	}
	iw := NewIndexWriter(outputDir, index)
	iw.Start()
	return &Recorder{
		index:   iw,
		output:  outputDir,
		details: details,
		writers: make(map[int]*TestCaseWriter),
	}, nil
}

func (r *Recorder) writer(idx int) *TestCaseWriter {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.writers[idx]
	if !ok {
		w = NewTestCaseWriter(&r.details[idx], r.output, r.index)
		r.writers[idx] = w
	}
	return w
}

func (r *Recorder) writerFor(testCase string) *TestCaseWriter {
	r.mu.Lock()
	idx := -1
	for i := range r.details {
		if r.details[i].TestCase == testCase {
			idx = i
			break
		}
	}
	r.mu.Unlock()
	if idx < 0 {
		return nil
	}
	return r.writer(idx)
}

// TestCaseStarted matches runner.SuiteConfig.OnTestCaseStart.
func (r *Recorder) TestCaseStarted(idx, _ int, _ dsl.TestCase) {
	r.writer(idx).Start()
}

// StepCompleted matches runner.SuiteConfig.OnStepComplete.
func (r *Recorder) StepCompleted(testCase string, step core.StepResult) {
	if w := r.writerFor(testCase); w != nil {
		w.StepEnd(step)
	}
}

// TestCaseEnded matches runner.SuiteConfig.OnTestCaseEnd.
func (r *Recorder) TestCaseEnded(idx int, result core.TestCaseResult) {
	r.writer(idx).End(result)
}

// Finish marks the run complete and flushes report.json.
func (r *Recorder) Finish(result *core.SuiteResult) error {
	r.index.End(result)
	return r.index.Close()
}

// Index returns the live index.
func (r *Recorder) Index() *Index {
	return r.index.GetIndex()
}
