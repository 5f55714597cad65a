// Package executor orchestrates flow execution, connecting pages to reports.
package executor

import (
	"context"
	"time"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/fixture"
	"github.com/devicelab-dev/webflow-runner/pkg/flow"
	"github.com/devicelab-dev/webflow-runner/pkg/report"
)

// ArtifactMode determines when to capture screenshots and page HTML.
type ArtifactMode int

const (
	// ArtifactOnFailure captures artifacts only when a step fails.
	ArtifactOnFailure ArtifactMode = iota
	// ArtifactAlways captures artifacts after every step.
	ArtifactAlways
	// ArtifactNever disables artifact capture.
	ArtifactNever
)

// capture returns the artifact policy for the mode.
func (m ArtifactMode) capture() core.ArtifactConfig {
	cfg := core.DefaultArtifactConfig()
	switch m {
	case ArtifactAlways:
		cfg.CaptureOnSuccess = true
	case ArtifactNever:
		cfg.CaptureOnFailure = false
	}
	return cfg
}

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	OutputDir   string       // Report output directory
	Parallelism int          // Concurrent runs (<= 1 = sequential)
	StopOnFail  bool         // Do not start new flows after the first failure
	Artifacts   ArtifactMode // When to capture artifacts
	FixturesDir string       // Fixture directory (default "fixtures")

	Env          map[string]string // Variables exposed to ${...} and $VAR
	StepTimeout  time.Duration     // Bounded wait per step (flow commandTimeout overrides)
	PollInterval time.Duration     // Delay between probes
	RunTimeout   time.Duration     // Whole-run deadline per flow (flow timeout overrides)

	// Report metadata
	RunID         string
	Browser       report.Browser // Defaults to the provider's info
	CI            *report.CI
	RunnerVersion string
	DriverName    string

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(idx int, desc string, passed bool, durationMs int64, err string)
	OnFlowEnd      func(name string, passed bool, durationMs int64, err string)
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	RunID        string
	Status       report.Status
	TotalFlows   int
	PassedFlows  int
	FailedFlows  int
	SkippedFlows int
	Interrupted  bool  // Cancelled before every flow started; the run is failed
	Duration     int64 // Wall clock duration in milliseconds
	FlowResults  []FlowResult
}

// FlowResult contains the outcome of a single flow execution.
type FlowResult struct {
	ID           string
	Name         string
	Status       report.Status
	Duration     int64
	Error        string
	Failure      *core.Failure
	StepsTotal   int
	StepsPassed  int
	StepsFailed  int
	StepsSkipped int
}

// Runner orchestrates flow execution.
type Runner struct {
	config   RunnerConfig
	provider core.PageProvider
	fixtures *fixture.Loader
}

// New creates a new Runner.
func New(provider core.PageProvider, cfg RunnerConfig) *Runner {
	return &Runner{
		config:   cfg,
		provider: provider,
		fixtures: fixture.NewLoader(cfg.FixturesDir),
	}
}

// Run executes all flows and generates reports.
func (r *Runner) Run(ctx context.Context, flows []flow.Flow) (*RunResult, error) {
	builderCfg := report.BuilderConfig{
		OutputDir:     r.config.OutputDir,
		RunID:         r.config.RunID,
		Browser:       r.browserInfo(),
		CI:            r.config.CI,
		RunnerVersion: r.config.RunnerVersion,
		DriverName:    r.config.DriverName,
	}

	index, flowDetails, err := report.BuildSkeleton(flows, builderCfg)
	if err != nil {
		return nil, err
	}

	if err := report.WriteSkeleton(r.config.OutputDir, index, flowDetails); err != nil {
		return nil, err
	}

	indexWriter := report.NewIndexWriter(r.config.OutputDir, index)
	defer indexWriter.Close()

	indexWriter.Start()
	startTime := time.Now()

	results, interrupted := r.executeFlows(ctx, flows, flowDetails, indexWriter)
	if interrupted {
		indexWriter.MarkInterrupted()
	}

	indexWriter.End()

	result := buildRunResult(results, time.Since(startTime).Milliseconds(), interrupted)
	result.RunID = index.RunID
	return result, nil
}

// browserInfo returns the configured browser, falling back to the provider.
func (r *Runner) browserInfo() report.Browser {
	if r.config.Browser.Driver != "" || r.provider == nil {
		return r.config.Browser
	}
	info := r.provider.Info()
	if info == nil {
		return r.config.Browser
	}
	return report.Browser{
		Driver:   info.Driver,
		Name:     info.Name,
		Version:  info.Version,
		Headless: info.Headless,
		BaseURL:  info.BaseURL,
	}
}

// executeFlow runs a single flow.
func (r *Runner) executeFlow(ctx context.Context, f flow.Flow, detail *report.FlowDetail, indexWriter *report.IndexWriter, flowIdx, totalFlows int) FlowResult {
	fr := &FlowRunner{
		ctx:         ctx,
		flow:        f,
		detail:      detail,
		provider:    r.provider,
		fixtures:    r.fixtures,
		config:      r.config,
		indexWriter: indexWriter,
		flowIdx:     flowIdx,
		totalFlows:  totalFlows,
	}
	return fr.Run()
}

// buildRunResult aggregates flow results into a run result.
// An interrupted run is failed even when no flow failed.
func buildRunResult(flowResults []FlowResult, wallClockDuration int64, interrupted bool) *RunResult {
	result := &RunResult{
		TotalFlows:  len(flowResults),
		FlowResults: flowResults,
		Interrupted: interrupted,
		Duration:    wallClockDuration,
	}

	for _, fr := range flowResults {
		switch fr.Status {
		case report.StatusPassed:
			result.PassedFlows++
		case report.StatusFailed:
			result.FailedFlows++
		case report.StatusSkipped:
			result.SkippedFlows++
		}
	}

	if result.FailedFlows > 0 || interrupted {
		result.Status = report.StatusFailed
	} else {
		result.Status = report.StatusPassed // All passed or skipped
	}

	return result
}
