package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/webflow-runner/pkg/logger"
)

// FlowWriter writes updates for a single flow.
// Each flow goroutine has its own FlowWriter - no locking needed.
type FlowWriter struct {
	flow      *FlowDetail
	path      string
	assetsDir string
	index     *IndexWriter
}

// NewFlowWriter creates a new FlowWriter for a flow.
func NewFlowWriter(flowDetail *FlowDetail, outputDir string, index *IndexWriter) *FlowWriter {
	flowPath := filepath.Join(outputDir, "flows", flowDetail.ID+".json")
	assetsDir := filepath.Join(outputDir, "assets", flowDetail.ID)

	if err := ensureDir(assetsDir); err != nil {
		logger.Warn("report: create assets dir %s: %v", assetsDir, err)
	}

	return &FlowWriter{
		flow:      flowDetail,
		path:      flowPath,
		assetsDir: assetsDir,
		index:     index,
	}
}

// Start marks the flow as started.
func (w *FlowWriter) Start() {
	now := time.Now()
	w.flow.StartTime = now

	w.flush()
	w.updateIndex(StatusRunning, &now, nil, nil)
}

// CommandStart marks a command as started.
func (w *FlowWriter) CommandStart(cmdIndex int) {
	if cmdIndex < 0 || cmdIndex >= len(w.flow.Commands) {
		return
	}

	now := time.Now()
	cmd := &w.flow.Commands[cmdIndex]
	cmd.Status = StatusRunning
	cmd.StartTime = &now

	w.flush()
	w.updateIndexProgress()
}

// CommandEnd marks a command as complete.
func (w *FlowWriter) CommandEnd(cmdIndex int, status Status, element *Element, err *Error, artifacts CommandArtifacts) {
	if cmdIndex < 0 || cmdIndex >= len(w.flow.Commands) {
		return
	}

	now := time.Now()
	cmd := &w.flow.Commands[cmdIndex]
	cmd.Status = status
	cmd.EndTime = &now

	if cmd.StartTime != nil {
		duration := now.Sub(*cmd.StartTime).Milliseconds()
		cmd.Duration = &duration
	}

	cmd.Element = element
	cmd.Error = err
	cmd.Artifacts = artifacts

	w.flush()
	w.updateIndexProgress()
}

// End marks the flow as complete. failure is nil for a passing flow.
func (w *FlowWriter) End(status Status, failure *Failure) {
	now := time.Now()
	w.flow.EndTime = &now
	w.flow.Failure = failure

	var duration int64
	if !w.flow.StartTime.IsZero() {
		duration = now.Sub(w.flow.StartTime).Milliseconds()
		w.flow.Duration = &duration
	}

	w.flush()

	update := &FlowUpdate{
		Status:   status,
		EndTime:  &now,
		Duration: &duration,
		Commands: w.commandSummary(),
		Failure:  failure,
	}
	if status == StatusFailed {
		update.Error = w.firstError()
	}
	w.index.UpdateFlow(w.flow.ID, update)
}

// firstError returns the message of the first failing command, falling
// back to the flow failure detail when no command ran.
func (w *FlowWriter) firstError() *string {
	for _, cmd := range w.flow.Commands {
		if cmd.Error != nil {
			msg := cmd.Error.Message
			return &msg
		}
	}
	if w.flow.Failure != nil {
		msg := w.flow.Failure.Detail
		return &msg
	}
	return nil
}

// SaveScreenshot saves a screenshot and returns the relative path.
func (w *FlowWriter) SaveScreenshot(cmdIndex int, timing string, data []byte) (string, error) {
	filename := fmt.Sprintf("cmd-%03d-%s.png", cmdIndex, timing)
	return w.saveAsset(filename, data)
}

// SavePageContent saves the document HTML and returns the relative path.
func (w *FlowWriter) SavePageContent(cmdIndex int, data []byte) (string, error) {
	filename := fmt.Sprintf("cmd-%03d-page.html", cmdIndex)
	return w.saveAsset(filename, data)
}

func (w *FlowWriter) saveAsset(filename string, data []byte) (string, error) {
	absPath := filepath.Join(w.assetsDir, filename)
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return "", err
	}
	return filepath.Join("assets", w.flow.ID, filename), nil
}

// GetFlowDetail returns the current flow detail (for reading).
func (w *FlowWriter) GetFlowDetail() *FlowDetail {
	return w.flow
}

// flush writes the flow detail to disk.
func (w *FlowWriter) flush() {
	if err := atomicWriteJSON(w.path, w.flow); err != nil {
		logger.Warn("report: write %s: %v", w.flow.ID, err)
	}
}

// updateIndex updates the index with current flow state.
func (w *FlowWriter) updateIndex(status Status, startTime, endTime *time.Time, duration *int64) {
	w.index.UpdateFlow(w.flow.ID, &FlowUpdate{
		Status:    status,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Commands:  w.commandSummary(),
	})
}

// updateIndexProgress updates the index with progress only.
func (w *FlowWriter) updateIndexProgress() {
	w.index.UpdateFlow(w.flow.ID, &FlowUpdate{
		Status:   StatusRunning,
		Commands: w.commandSummary(),
	})
}

// commandSummary computes command summary.
func (w *FlowWriter) commandSummary() CommandSummary {
	var s CommandSummary
	s.Total = len(w.flow.Commands)

	for i, cmd := range w.flow.Commands {
		switch cmd.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
			idx := i
			s.Current = &idx
		case StatusPending:
			s.Pending++
		}
	}

	return s
}

// SkipRemainingCommands marks all pending commands as skipped.
// Called when a command fails and we need to skip the rest.
func (w *FlowWriter) SkipRemainingCommands(fromIndex int) {
	for i := fromIndex; i < len(w.flow.Commands); i++ {
		if w.flow.Commands[i].Status == StatusPending {
			w.flow.Commands[i].Status = StatusSkipped
		}
	}
	w.flush()
}
