package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

// IndexWriter provides thread-safe updates to the report index.
// Multiple test case goroutines can update the index concurrently.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index
	err       error // First write error

	// Debouncing for progress updates
	pending map[string]*TestCaseUpdate
	timer   *time.Timer
	closed  bool
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, "report.json"),
		index:     index,
		pending:   make(map[string]*TestCaseUpdate),
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now

	w.flushLocked()
}

// UpdateTestCase updates a test case entry in the index.
// Terminal states flush immediately.
// Progress updates are debounced to reduce I/O.
func (w *IndexWriter) UpdateTestCase(id string, update *TestCaseUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[id] = update

	// Immediate flush for terminal states
	if update.Status.IsTerminal() {
		w.flushLocked()
		return
	}

	// Debounced flush for progress updates (100ms)
	if w.timer == nil && !w.closed {
		w.timer = time.AfterFunc(100*time.Millisecond, func() {
			w.flush()
		})
	}
}

// End marks the run as complete. A run id in result wins over the one the
// skeleton was built with.
func (w *IndexWriter) End(result *core.SuiteResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	if result != nil && result.RunID != "" {
		w.index.RunID = result.RunID
	}
	for id, update := range w.pending {
		w.applyUpdate(id, update)
	}
	w.pending = make(map[string]*TestCaseUpdate)
	w.index.Status = w.computeRunStatus()

	w.flushLocked()
}

// Close stops the debounce timer and flushes any pending updates. It
// returns the first write error seen.
func (w *IndexWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.flushLocked()
	return w.err
}

// GetIndex returns the current index (for reading).
func (w *IndexWriter) GetIndex() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

// flush applies pending updates and writes to disk.
func (w *IndexWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

// flushLocked flushes while holding the lock.
func (w *IndexWriter) flushLocked() {
	// Apply pending updates
	for id, update := range w.pending {
		w.applyUpdate(id, update)
	}
	w.pending = make(map[string]*TestCaseUpdate)

	// Update metadata
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()

	// Stop debounce timer if running
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	if err := atomicWriteJSON(w.path, w.index); err != nil && w.err == nil {
		w.err = err
	}
}

// recordError keeps err if it is the first write error of the run.
func (w *IndexWriter) recordError(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

// applyUpdate applies a TestCaseUpdate to the index.
func (w *IndexWriter) applyUpdate(id string, update *TestCaseUpdate) {
	for i := range w.index.TestCases {
		if w.index.TestCases[i].ID == id {
			tc := &w.index.TestCases[i]
			tc.Status = update.Status
			if update.StartTime != nil {
				tc.StartTime = update.StartTime
			}
			if update.EndTime != nil {
				tc.EndTime = update.EndTime
			}
			if update.Duration != nil {
				tc.Duration = update.Duration
			}
			tc.Steps = update.Steps
			if update.Error != nil {
				tc.Error = update.Error
			}
			if update.FailedStep != "" {
				tc.FailedStep = update.FailedStep
			}
			tc.UpdateSeq++
			now := time.Now()
			tc.LastUpdated = &now
			break
		}
	}
}

// computeSummary calculates summary from test case statuses.
func (w *IndexWriter) computeSummary() Summary {
	var s Summary
	for _, tc := range w.index.TestCases {
		s.Total++
		switch tc.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSetupFailure:
			s.SetupFailures++
		case StatusSkipped:
			s.Skipped++
		case StatusCancelled:
			s.Cancelled++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from test cases.
func (w *IndexWriter) computeRunStatus() Status {
	hasFailure := false
	allComplete := true

	for _, tc := range w.index.TestCases {
		if tc.Status == StatusFailed || tc.Status == StatusSetupFailure || tc.Status == StatusCancelled {
			hasFailure = true
		}
		if !tc.Status.IsTerminal() {
			allComplete = false
		}
	}

	if !allComplete {
		return StatusRunning
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}
