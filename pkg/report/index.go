package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/webflow-runner/pkg/logger"
)

// progressDebounce is how long progress updates are batched before a write.
const progressDebounce = 100 * time.Millisecond

// IndexWriter provides thread-safe updates to the report index.
// Multiple flow goroutines can update the index concurrently.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index

	// Debouncing for progress updates
	pending map[string]*FlowUpdate
	timer   *time.Timer
	closed  bool
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, "report.json"),
		index:     index,
		pending:   make(map[string]*FlowUpdate),
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	w.index.LastUpdated = now
	w.index.UpdateSeq++

	w.flushLocked()
}

// UpdateFlow updates a flow entry in the index.
// Terminal states (passed/failed) flush immediately.
// Progress updates are debounced to reduce I/O.
func (w *IndexWriter) UpdateFlow(flowID string, update *FlowUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[flowID] = update

	// Immediate flush for terminal states
	if update.Status.IsTerminal() {
		w.flushLocked()
		return
	}

	if w.timer == nil {
		w.timer = time.AfterFunc(progressDebounce, func() {
			w.flush()
		})
	}
}

// MarkInterrupted records that the run was cancelled before every flow
// started. The run ends failed even if no flow failed.
func (w *IndexWriter) MarkInterrupted() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index.Interrupted = true
}

// End marks the run as complete.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for flowID, update := range w.pending {
		w.applyUpdate(flowID, update)
	}
	w.pending = make(map[string]*FlowUpdate)

	now := time.Now()
	w.index.EndTime = &now
	w.index.LastUpdated = now
	w.index.Status = w.computeRunStatus()
	w.index.UpdateSeq++

	w.flushLocked()
}

// Close flushes any pending updates. Later debounced flushes are dropped.
func (w *IndexWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
	w.closed = true
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
	if w.closed {
		return
	}
	w.flushLocked()
}

// flushLocked flushes while holding the lock.
func (w *IndexWriter) flushLocked() {
	// Apply pending updates
	for flowID, update := range w.pending {
		w.applyUpdate(flowID, update)
	}
	w.pending = make(map[string]*FlowUpdate)

	// Update metadata
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()

	// Stop debounce timer if running
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Warn("report: write index: %v", err)
	}
}

// applyUpdate applies a FlowUpdate to the index.
func (w *IndexWriter) applyUpdate(flowID string, update *FlowUpdate) {
	for i := range w.index.Flows {
		if w.index.Flows[i].ID == flowID {
			f := &w.index.Flows[i]
			f.Status = update.Status
			if update.StartTime != nil {
				f.StartTime = update.StartTime
			}
			if update.EndTime != nil {
				f.EndTime = update.EndTime
			}
			if update.Duration != nil {
				f.Duration = update.Duration
			}
			f.Commands = update.Commands
			if update.Error != nil {
				f.Error = update.Error
			}
			if update.Failure != nil {
				f.Failure = update.Failure
			}
			f.UpdateSeq++
			now := time.Now()
			f.LastUpdated = &now
			break
		}
	}
}

// computeSummary calculates summary from flow statuses.
func (w *IndexWriter) computeSummary() Summary {
	return summarizeFlows(w.index.Flows)
}

// computeRunStatus determines overall run status from flows.
func (w *IndexWriter) computeRunStatus() Status {
	hasFailure := false
	allComplete := true

	for _, f := range w.index.Flows {
		if f.Status == StatusFailed {
			hasFailure = true
		}
		if !f.Status.IsTerminal() {
			allComplete = false
		}
	}

	if !allComplete {
		return StatusRunning
	}
	if hasFailure || w.index.Interrupted {
		return StatusFailed
	}
	return StatusPassed
}
