package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/webflow-runner/pkg/flow"
	"github.com/devicelab-dev/webflow-runner/pkg/logger"
	"github.com/devicelab-dev/webflow-runner/pkg/report"
)

// workItem represents a flow and its index in the original flow list.
type workItem struct {
	flow  flow.Flow
	index int
}

// executeFlows drains a work queue of flows with Parallelism workers.
// Each worker runs one flow at a time on its own page. Flows still queued
// when ctx ends, or after a failure with StopOnFail, are reported skipped.
// interrupted reports whether ctx ended before every flow had started.
func (r *Runner) executeFlows(ctx context.Context, flows []flow.Flow, flowDetails []report.FlowDetail, indexWriter *report.IndexWriter) (results []FlowResult, interrupted bool) {
	results = make([]FlowResult, len(flows))
	if len(flows) == 0 {
		return results, ctx.Err() != nil
	}

	workers := r.config.Parallelism
	if workers < 1 {
		workers = 1
	}
	if workers > len(flows) {
		workers = len(flows)
	}

	workQueue := make(chan workItem, len(flows))
	for i, f := range flows {
		workQueue <- workItem{flow: f, index: i}
	}
	close(workQueue)

	var stop, cancelled atomic.Bool
	totalFlows := len(flows)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for item := range workQueue {
				detail := &flowDetails[item.index]

				if ctx.Err() != nil {
					cancelled.Store(true)
					results[item.index] = r.skipFlow(detail, indexWriter, "run interrupted")
					continue
				}
				if stop.Load() {
					results[item.index] = r.skipFlow(detail, indexWriter, "run stopped after a failure")
					continue
				}

				result := r.executeFlow(ctx, item.flow, detail, indexWriter, item.index, totalFlows)
				results[item.index] = result

				if r.config.StopOnFail && result.Status == report.StatusFailed {
					stop.Store(true)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, cancelled.Load()
}

// skipFlow records a flow that was never started.
func (r *Runner) skipFlow(detail *report.FlowDetail, indexWriter *report.IndexWriter, reason string) FlowResult {
	logger.Infow("flow skipped", "flow", detail.Name, "reason", reason)

	fw := report.NewFlowWriter(detail, r.config.OutputDir, indexWriter)
	fw.SkipRemainingCommands(0)
	fw.End(report.StatusSkipped, nil)

	return FlowResult{
		ID:           detail.ID,
		Name:         detail.Name,
		Status:       report.StatusSkipped,
		Error:        reason,
		StepsTotal:   len(detail.Commands),
		StepsSkipped: len(detail.Commands),
	}
}
