package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/webflow-runner/pkg/assertion"
	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/flow"
)

// Default bounded-wait settings.
const (
	DefaultStepTimeout  = 4 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// FlowExecutor runs a sequence of steps against one page, strictly in
// order, stopping at the first failure. It holds no state between runs.
type FlowExecutor struct {
	StepTimeout  time.Duration // Bounded wait for each step unless the step overrides it
	PollInterval time.Duration // Delay between probes while waiting

	// OnStepStart is called before step idx (0-based) runs.
	OnStepStart func(idx int, step flow.Step)
	// OnStepEnd is called after step idx finishes, passed or failed.
	OnStepEnd func(idx int, step flow.Step, result *core.StepResult)
}

// NewFlowExecutor creates an executor. Zero values select the defaults.
func NewFlowExecutor(stepTimeout, pollInterval time.Duration) *FlowExecutor {
	return &FlowExecutor{
		StepTimeout:  stepTimeout,
		PollInterval: pollInterval,
	}
}

// Run executes steps on page. On the first failure the remaining steps are
// marked skipped and never touch the page. If ctx ends, the run fails with
// run_timeout at the step that was running or about to run.
func (e *FlowExecutor) Run(ctx context.Context, page core.Page, steps []flow.Step) core.RunResult {
	start := time.Now()
	result := core.RunResult{
		Status: core.StatusPassed,
		Steps:  make([]core.StepResult, len(steps)),
	}

	for i, step := range steps {
		result.Steps[i] = core.StepResult{
			Index:   i,
			Command: string(step.Type()),
			Label:   step.Label(),
			Status:  core.StatusPending,
		}
	}

	for i, step := range steps {
		sr := &result.Steps[i]

		if err := ctx.Err(); err != nil {
			e.fail(sr, runTimeout(err))
			result.Failure = core.NewFailure(i+1, sr.Err)
			skipFrom(result.Steps, i+1)
			break
		}

		if e.OnStepStart != nil {
			e.OnStepStart(i, step)
		}

		sr.Status = core.StatusRunning
		sr.StartTime = time.Now()
		err := e.runStep(ctx, page, step, sr)
		sr.Duration = time.Since(sr.StartTime)

		if err != nil {
			if ctx.Err() != nil && core.CodeOf(err) != core.CodeRunTimeout {
				err = runTimeout(ctx.Err())
			}
			e.fail(sr, err)
		} else {
			sr.Status = core.StatusPassed
		}

		if e.OnStepEnd != nil {
			e.OnStepEnd(i, step, sr)
		}

		if err != nil {
			result.Failure = core.NewFailure(i+1, sr.Err)
			skipFrom(result.Steps, i+1)
			break
		}
	}

	if result.Failure != nil {
		result.Status = core.StatusFailed
	}
	result.Duration = time.Since(start)
	return result
}

// Locate waits for selector to match, probing every PollInterval until
// StepTimeout elapses. Implements assertion.Locator.
func (e *FlowExecutor) Locate(ctx context.Context, page core.Page, selector string) (core.Element, error) {
	return e.locateUntil(ctx, page, selector, time.Now().Add(e.stepTimeout(0)))
}

func (e *FlowExecutor) locateUntil(ctx context.Context, page core.Page, selector string, deadline time.Time) (core.Element, error) {
	var el core.Element
	var lastErr error

	found, err := pollUntil(ctx, deadline, e.PollInterval, func() bool {
		el, lastErr = page.FindElement(ctx, selector)
		return lastErr == nil
	})
	if err != nil {
		return nil, runTimeout(err)
	}
	if found {
		return el, nil
	}
	if lastErr != nil && !errors.Is(lastErr, core.ErrElementNotFound) {
		return nil, lastErr
	}
	return nil, core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("no element matches %s", selector)).
		WithDetails(map[string]interface{}{"selector": selector})
}

func (e *FlowExecutor) runStep(ctx context.Context, page core.Page, step flow.Step, sr *core.StepResult) error {
	timeout := e.stepTimeout(step.Timeout())
	deadline := time.Now().Add(timeout)

	switch s := step.(type) {
	case *flow.NavigateStep:
		sr.Expected = s.Path
		return e.navigate(ctx, page, s.Path, timeout)

	case *flow.LocateStep:
		sr.Selector = s.Selector.Query()
		_, err := e.locateUntil(ctx, page, sr.Selector, deadline)
		return err

	case *flow.TypeStep:
		sr.Selector = s.Selector.Query()
		el, err := e.locateUntil(ctx, page, sr.Selector, deadline)
		if err != nil {
			return err
		}
		return page.Type(ctx, el, s.Text)

	case *flow.ClickStep:
		sr.Selector = s.Selector.Query()
		el, err := e.locateUntil(ctx, page, sr.Selector, deadline)
		if err != nil {
			return err
		}
		return page.Click(ctx, el)

	case *flow.AssertURLStep:
		sr.Expected = s.Contains
		return e.assertURL(ctx, page, s.Contains, deadline, sr)

	case *flow.AssertContainsStep:
		return e.assertText(ctx, page, s.Selector.Query(), s.Text, assertion.Contains, deadline, sr)

	case *flow.AssertEqualsStep:
		return e.assertText(ctx, page, s.Selector.Query(), s.Text, assertion.Equals, deadline, sr)

	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported step type: %s", step.Type()))
	}
}

func (e *FlowExecutor) navigate(ctx context.Context, page core.Page, path string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := page.Navigate(navCtx, path)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return runTimeout(ctx.Err())
	}
	if core.CodeOf(err) == core.CodeRunTimeout || errors.Is(err, context.DeadlineExceeded) {
		return core.ErrNavigationTimeout.
			WithMessage(fmt.Sprintf("page %s not ready within %s", path, timeout)).
			WithCause(err)
	}
	return err
}

func (e *FlowExecutor) assertURL(ctx context.Context, page core.Page, fragment string, deadline time.Time, sr *core.StepResult) error {
	found, err := pollUntil(ctx, deadline, e.PollInterval, func() bool {
		sr.Actual = page.URL()
		return fragment != "" && strings.Contains(sr.Actual, fragment)
	})
	if err != nil {
		return runTimeout(err)
	}
	if found {
		return nil
	}
	return core.ErrNavigationTimeout.
		WithMessage(fmt.Sprintf("url %q does not contain %q", sr.Actual, fragment)).
		WithDetails(map[string]interface{}{"expected": fragment, "actual": sr.Actual})
}

// assertText locates selector, then polls the checker until the text
// matches or deadline passes.
func (e *FlowExecutor) assertText(ctx context.Context, page core.Page, selector, expected string, mode assertion.Mode, deadline time.Time, sr *core.StepResult) error {
	sr.Selector = selector
	sr.Expected = expected

	if _, err := e.locateUntil(ctx, page, selector, deadline); err != nil {
		return err
	}

	checker := assertion.NewChecker(assertion.ProbeLocator{})

	var lastErr error
	matched, err := pollUntil(ctx, deadline, e.PollInterval, func() bool {
		actual, ok, err := checker.Inspect(ctx, page, selector, expected, mode)
		lastErr = err
		if err == nil {
			sr.Actual = actual
		}
		return ok
	})
	if err != nil {
		return runTimeout(err)
	}
	if matched {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return assertion.Mismatch(selector, expected, sr.Actual, mode)
}

func (e *FlowExecutor) stepTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if e.StepTimeout > 0 {
		return e.StepTimeout
	}
	return DefaultStepTimeout
}

func (e *FlowExecutor) fail(sr *core.StepResult, err error) {
	sr.Status = core.StatusFailed
	sr.Err = err
	sr.Error = err.Error()
	sr.Message = err.Error()
	sr.Category = core.CategoryOf(err)
}

func skipFrom(steps []core.StepResult, from int) {
	for i := from; i < len(steps); i++ {
		steps[i].Status = core.StatusSkipped
	}
}

func runTimeout(cause error) error {
	if core.CodeOf(cause) == core.CodeRunTimeout {
		if _, ok := cause.(*core.ExecutionError); ok {
			return cause
		}
	}
	msg := "run deadline exceeded"
	if errors.Is(cause, context.Canceled) {
		msg = "run cancelled"
	}
	return core.ErrRunTimeout.WithMessage(msg).WithCause(cause)
}
