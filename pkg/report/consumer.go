package report

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// Consumer reads a report directory that may still be written to, and
// reports which flows changed since the last poll.
type Consumer struct {
	reportDir     string
	lastGlobalSeq uint64
	lastFlowSeq   map[string]uint64
}

// NewConsumer creates a Consumer for the report in reportDir.
func NewConsumer(reportDir string) *Consumer {
	return &Consumer{
		reportDir:   reportDir,
		lastFlowSeq: make(map[string]uint64),
	}
}

// Poll reads the index and returns the IDs of flows whose UpdateSeq
// moved since the previous poll. The first poll reports every flow.
func (c *Consumer) Poll() ([]string, *Index, error) {
	index, err := c.ReadIndex()
	if err != nil {
		return nil, nil, err
	}

	if index.UpdateSeq == c.lastGlobalSeq && len(c.lastFlowSeq) > 0 {
		return nil, index, nil
	}

	var changed []string
	for _, f := range index.Flows {
		last, seen := c.lastFlowSeq[f.ID]
		if !seen || f.UpdateSeq != last {
			changed = append(changed, f.ID)
			c.lastFlowSeq[f.ID] = f.UpdateSeq
		}
	}
	c.lastGlobalSeq = index.UpdateSeq

	return changed, index, nil
}

// ReadIndex reads report.json.
func (c *Consumer) ReadIndex() (*Index, error) {
	return ReadIndex(filepath.Join(c.reportDir, "report.json"))
}

// ReadFlow reads the detail file of one flow.
func (c *Consumer) ReadFlow(flowID string) (*FlowDetail, error) {
	return readFlowDetail(filepath.Join(c.reportDir, "flows", flowID+".json"))
}

// Reset forgets all seen sequence numbers.
func (c *Consumer) Reset() {
	c.lastGlobalSeq = 0
	c.lastFlowSeq = make(map[string]uint64)
}

// ReadIndex reads an index file.
func ReadIndex(path string) (*Index, error) {
	var index Index
	if err := readJSON(path, &index); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return &index, nil
}

func readFlowDetail(path string) (*FlowDetail, error) {
	var fd FlowDetail
	if err := readJSON(path, &fd); err != nil {
		return nil, fmt.Errorf("read flow: %w", err)
	}
	return &fd, nil
}

// ReadReport reads the index and every flow detail of a report directory.
func ReadReport(reportDir string) (*Index, []FlowDetail, error) {
	index, err := ReadIndex(filepath.Join(reportDir, "report.json"))
	if err != nil {
		return nil, nil, err
	}

	flows := make([]FlowDetail, 0, len(index.Flows))
	for _, entry := range index.Flows {
		fd, err := readFlowDetail(filepath.Join(reportDir, entry.DataFile))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", entry.ID, err)
		}
		flows = append(flows, *fd)
	}
	return index, flows, nil
}

// interruptedKind is the failure kind recorded for flows cut short.
const interruptedKind = "run_timeout"

// Recover settles a report left behind by a runner that did not finish.
// Each flow still pending or running is resolved from its command states
// and its detail file is rewritten to match:
//   - all commands passed: passed
//   - a command failed: failed at that command, later commands skipped
//   - never started: skipped
//   - cut short: failed with kind run_timeout at the interrupted command
//
// A run with any flow cut short or never started is marked interrupted and
// failed. The index is rewritten only if something changed.
func Recover(reportDir string) error {
	indexPath := filepath.Join(reportDir, "report.json")
	index, err := ReadIndex(indexPath)
	if err != nil {
		return err
	}

	changed := false
	now := time.Now()

	for i := range index.Flows {
		entry := &index.Flows[i]
		if entry.Status.IsTerminal() {
			continue
		}

		interrupted, err := recoverFlow(reportDir, entry, now)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.ID, err)
		}
		if interrupted {
			index.Interrupted = true
		}
		changed = true
	}

	if !changed {
		return nil
	}

	index.Summary = summarizeFlows(index.Flows)
	index.Status = StatusPassed
	if index.Summary.Failed > 0 || index.Interrupted {
		index.Status = StatusFailed
	}
	if index.EndTime == nil {
		index.EndTime = &now
	}
	index.LastUpdated = now
	index.UpdateSeq++

	return atomicWriteJSON(indexPath, index)
}

// recoverFlow settles one unfinished flow. It reports whether the flow
// was cut short or never started.
func recoverFlow(reportDir string, entry *FlowEntry, now time.Time) (bool, error) {
	path := filepath.Join(reportDir, entry.DataFile)
	fd, err := readFlowDetail(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		settleEntry(entry, StatusFailed, &Failure{Kind: interruptedKind, Detail: "flow data missing"}, now)
		return true, nil
	}

	interrupted := false
	status := inferStatus(fd.Commands)
	switch status {
	case StatusPassed:
	case StatusFailed:
		if fd.Failure == nil {
			fd.Failure = failedCommand(fd.Commands)
		}
		skipPending(fd.Commands)
	default:
		interrupted = true
		if entry.Status == StatusPending && !anyStarted(fd.Commands) {
			status = StatusSkipped
			skipPending(fd.Commands)
			break
		}
		status = StatusFailed
		fd.Failure = cutShort(fd.Commands, now)
	}

	fd.EndTime = &now
	if !fd.StartTime.IsZero() {
		duration := now.Sub(fd.StartTime).Milliseconds()
		fd.Duration = &duration
	}
	if err := atomicWriteJSON(path, fd); err != nil {
		return false, err
	}

	entry.Commands = summarizeCommands(fd.Commands)
	settleEntry(entry, status, fd.Failure, now)
	return interrupted, nil
}

func settleEntry(entry *FlowEntry, status Status, failure *Failure, now time.Time) {
	entry.Status = status
	if status == StatusFailed && failure != nil {
		entry.Failure = failure
		msg := failure.Detail
		entry.Error = &msg
	}
	entry.EndTime = &now
	entry.UpdateSeq++
}

// failedCommand describes the first failed command as a flow failure.
func failedCommand(commands []Command) *Failure {
	for i, cmd := range commands {
		if cmd.Status != StatusFailed {
			continue
		}
		f := &Failure{Step: i + 1, Kind: "driver_failure", Detail: "step failed"}
		if cmd.Error != nil {
			if cmd.Error.Type != "" {
				f.Kind = cmd.Error.Type
			}
			if cmd.Error.Message != "" {
				f.Detail = cmd.Error.Message
			}
		}
		return f
	}
	return &Failure{Kind: interruptedKind, Detail: "flow interrupted"}
}

// cutShort fails the command that was in progress and skips the rest.
// The returned failure points at that command, or at the first pending
// one when none was running.
func cutShort(commands []Command, now time.Time) *Failure {
	failure := &Failure{Kind: interruptedKind, Detail: "flow interrupted"}
	for i := range commands {
		cmd := &commands[i]
		if cmd.Status != StatusRunning && cmd.Status != StatusPending {
			continue
		}
		if failure.Step == 0 {
			failure.Step = i + 1
			cmd.Status = StatusFailed
			cmd.EndTime = &now
			cmd.Error = &Error{Type: interruptedKind, Message: "flow interrupted"}
			continue
		}
		cmd.Status = StatusSkipped
	}
	return failure
}

func skipPending(commands []Command) {
	for i := range commands {
		if commands[i].Status == StatusPending || commands[i].Status == StatusRunning {
			commands[i].Status = StatusSkipped
		}
	}
}

func anyStarted(commands []Command) bool {
	for _, cmd := range commands {
		if cmd.Status != StatusPending {
			return true
		}
	}
	return false
}

// inferStatus derives a flow status from its commands.
func inferStatus(commands []Command) Status {
	if len(commands) == 0 {
		return StatusFailed
	}

	allPassed := true
	for _, cmd := range commands {
		if cmd.Status == StatusFailed {
			return StatusFailed
		}
		if cmd.Status != StatusPassed {
			allPassed = false
		}
	}
	if allPassed {
		return StatusPassed
	}
	return StatusRunning
}

func summarizeCommands(commands []Command) CommandSummary {
	s := CommandSummary{Total: len(commands)}
	for _, cmd := range commands {
		switch cmd.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

func summarizeFlows(flows []FlowEntry) Summary {
	var s Summary
	for _, f := range flows {
		s.Total++
		switch f.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}
