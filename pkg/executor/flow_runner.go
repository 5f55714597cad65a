package executor

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/fixture"
	"github.com/devicelab-dev/webflow-runner/pkg/flow"
	"github.com/devicelab-dev/webflow-runner/pkg/logger"
	"github.com/devicelab-dev/webflow-runner/pkg/report"
)

// FlowRunner executes a single flow: load fixture, acquire a page, run the
// steps, release the page, report.
type FlowRunner struct {
	ctx         context.Context
	flow        flow.Flow
	detail      *report.FlowDetail
	provider    core.PageProvider
	fixtures    *fixture.Loader
	config      RunnerConfig
	indexWriter *report.IndexWriter
	flowWriter  *report.FlowWriter
	script      *ScriptEngine
	phase       core.Phase
	flowIdx     int // Current flow index (0-based)
	totalFlows  int // Total number of flows
}

// Run executes the flow and returns the result.
func (fr *FlowRunner) Run() FlowResult {
	flowStart := time.Now()

	fr.flowWriter = report.NewFlowWriter(fr.detail, fr.config.OutputDir, fr.indexWriter)

	fr.script = NewScriptEngine()
	defer fr.script.Close()

	fr.script.ImportSystemEnv()
	fr.script.SetVariables(fr.config.Env)
	fr.script.SetVariables(fr.flow.Config.Env)

	flowName := fr.detail.Name
	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, flowName, filepath.Base(fr.flow.SourcePath))
	}

	fr.flowWriter.Start()
	fr.phase = core.PhaseInit
	logger.Infow("flow started", "flow", flowName, "file", fr.flow.SourcePath, "phase", fr.phase.String())

	ctx := fr.ctx
	if timeout := fr.runTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	run := fr.execute(ctx)

	flowStatus := report.StatusPassed
	var flowError string
	if run.Failure != nil {
		flowStatus = report.StatusFailed
		flowError = run.Failure.Error()
		fr.enter(core.PhaseFailed)
		fr.flowWriter.SkipRemainingCommands(0)
	} else {
		fr.enter(core.PhasePassed)
	}

	fr.flowWriter.End(flowStatus, failureToReport(run.Failure))

	flowDuration := time.Since(flowStart).Milliseconds()
	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(flowName, flowStatus == report.StatusPassed, flowDuration, flowError)
	}

	result := FlowResult{
		ID:       fr.detail.ID,
		Name:     fr.detail.Name,
		Status:   flowStatus,
		Duration: flowDuration,
		Error:    flowError,
		Failure:  run.Failure,
	}
	for _, sr := range run.Steps {
		result.StepsTotal++
		switch sr.Status {
		case core.StatusPassed:
			result.StepsPassed++
		case core.StatusFailed, core.StatusErrored:
			result.StepsFailed++
		default:
			result.StepsSkipped++
		}
	}
	return result
}

// execute runs the fixture, expansion, page and step phases. A panic in a
// hook fails the run; the page is still released.
func (fr *FlowRunner) execute(ctx context.Context) (run core.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("flow %s: panic: %v", fr.detail.Name, r)
			run = fr.failBeforeSteps(0, core.ErrDriverFailure.WithMessage(fmt.Sprintf("panic: %v", r)))
		}
	}()

	fr.enter(core.PhaseLoadingFixture)
	fx, err := fr.loadFixture()
	if err != nil {
		return fr.failBeforeSteps(0, err)
	}
	if err := fr.script.SetFixture(fx); err != nil {
		return fr.failBeforeSteps(0, core.ErrFixtureMalformed.WithMessage("expose fixture").WithCause(err))
	}

	steps, idx, err := fr.script.ExpandSteps(fr.flow.Steps)
	if err != nil {
		return fr.failBeforeSteps(idx+1, err)
	}
	steps = resolveNavigation(steps, fr.flow.Config.BaseURL)

	page, err := fr.provider.NewPage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fr.failBeforeSteps(0, runTimeout(ctx.Err()))
		}
		return fr.failBeforeSteps(0, core.ErrDriverFailure.WithMessage("acquire page").WithCause(err))
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Warn("flow %s: release page: %v", fr.detail.Name, err)
		}
	}()

	fr.enter(core.PhaseExecuting)
	capture := fr.config.Artifacts.capture()

	exec := &FlowExecutor{
		StepTimeout:  fr.stepTimeout(),
		PollInterval: fr.config.PollInterval,
		OnStepStart: func(idx int, step flow.Step) {
			if isAssertion(step) {
				fr.enter(core.PhaseAsserting)
			} else {
				fr.enter(core.PhaseExecuting)
			}
			fr.flowWriter.CommandStart(idx)
		},
		OnStepEnd: func(idx int, step flow.Step, sr *core.StepResult) {
			var artifacts report.CommandArtifacts
			if capture.ShouldCapture(sr.Status) {
				artifacts = fr.captureArtifacts(page, idx, capture, sr)
			}
			fr.flowWriter.CommandEnd(idx, statusToReport(sr.Status), stepResultToElement(sr), errorToReport(sr.Err), artifacts)

			if fr.config.OnStepComplete != nil {
				fr.config.OnStepComplete(idx, step.Describe(), sr.Status == core.StatusPassed, sr.Duration.Milliseconds(), sr.Error)
			}
		},
	}

	return exec.Run(ctx, page, steps)
}

// loadFixture loads the flow's fixture and checks that it has every field
// the flow references. Returns nil when the flow uses no fixture.
func (fr *FlowRunner) loadFixture() (*fixture.Fixture, error) {
	fields := flow.FixtureFields(&fr.flow)
	name := fr.flow.Config.Fixture

	if name == "" {
		if len(fields) > 0 {
			return nil, core.ErrFixtureNotFound.WithMessage(
				fmt.Sprintf("flow references fixture fields %s but declares no fixture", strings.Join(fields, ", ")))
		}
		return nil, nil
	}

	fx, err := fr.fixtures.Load(name)
	if err != nil {
		return nil, err
	}
	if err := fx.Require(fields...); err != nil {
		return nil, err
	}
	logger.Infow("fixture loaded", "flow", fr.detail.Name, "fixture", fx.Name(), "fields", fx.Len())
	return fx, nil
}

// failBeforeSteps builds the result of a run that failed before the page
// was touched. step is 1-based; 0 means no particular step.
func (fr *FlowRunner) failBeforeSteps(step int, err error) core.RunResult {
	run := core.RunResult{
		Status:  core.StatusFailed,
		Failure: core.NewFailure(step, err),
		Steps:   make([]core.StepResult, len(fr.flow.Steps)),
	}
	for i, s := range fr.flow.Steps {
		run.Steps[i] = core.StepResult{
			Index:   i,
			Command: string(s.Type()),
			Label:   s.Label(),
			Status:  core.StatusSkipped,
		}
	}
	if step > 0 && step <= len(run.Steps) {
		sr := &run.Steps[step-1]
		sr.Status = core.StatusFailed
		sr.Err = err
		sr.Error = err.Error()
		sr.Category = core.CategoryOf(err)
		fr.flowWriter.CommandEnd(step-1, report.StatusFailed, nil, errorToReport(err), report.CommandArtifacts{})
	}
	logger.Infow("flow failed before steps", "flow", fr.detail.Name, "kind", run.Failure.Kind, "detail", run.Failure.Detail)
	return run
}

// captureArtifacts saves a screenshot and the page HTML for a step.
func (fr *FlowRunner) captureArtifacts(page core.Page, idx int, capture core.ArtifactConfig, sr *core.StepResult) report.CommandArtifacts {
	var artifacts report.CommandArtifacts
	timing := "after"
	if sr.Status != core.StatusPassed {
		timing = "failure"
	}

	if capture.Screenshot {
		if data, err := page.CaptureScreenshot(); err != nil {
			logger.Warn("flow %s: screenshot for step %d: %v", fr.detail.Name, idx+1, err)
		} else if len(data) > 0 {
			if path, err := fr.flowWriter.SaveScreenshot(idx, timing, data); err == nil {
				artifacts.Screenshot = path
				sr.Attachments = append(sr.Attachments, core.NewScreenshotAttachment(path, data))
			}
		}
	}

	if capture.PageContent {
		if data, err := page.CaptureContent(); err != nil {
			logger.Warn("flow %s: page content for step %d: %v", fr.detail.Name, idx+1, err)
		} else if len(data) > 0 {
			if path, err := fr.flowWriter.SavePageContent(idx, data); err == nil {
				artifacts.PageContent = path
				sr.Attachments = append(sr.Attachments, core.NewPageAttachment(path, data))
			}
		}
	}

	return artifacts
}

// enter moves the run state machine to p and logs the transition.
func (fr *FlowRunner) enter(p core.Phase) {
	if fr.phase == p {
		return
	}
	logger.Infow("phase", "flow", fr.detail.Name, "from", fr.phase.String(), "to", p.String())
	fr.phase = p
}

func (fr *FlowRunner) stepTimeout() time.Duration {
	if ms := fr.flow.Config.CommandTimeout; ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fr.config.StepTimeout
}

func (fr *FlowRunner) runTimeout() time.Duration {
	if ms := fr.flow.Config.Timeout; ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fr.config.RunTimeout
}

func isAssertion(step flow.Step) bool {
	switch step.Type() {
	case flow.StepAssertContains, flow.StepAssertEquals, flow.StepAssertURL:
		return true
	}
	return false
}

// resolveNavigation makes relative navigate paths absolute against base.
// Steps are already copies, so they are updated in place.
func resolveNavigation(steps []flow.Step, base string) []flow.Step {
	if base == "" {
		return steps
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return steps
	}
	for _, step := range steps {
		nav, ok := step.(*flow.NavigateStep)
		if !ok {
			continue
		}
		ref, err := url.Parse(nav.Path)
		if err != nil || ref.IsAbs() {
			continue
		}
		nav.Path = strings.TrimRight(baseURL.String(), "/") + "/" + strings.TrimLeft(nav.Path, "/")
	}
	return steps
}
