package core

import (
	"fmt"
	"time"
)

// StepResult captures the outcome of executing a single step
type StepResult struct {
	// Identity
	Index   int    `json:"index"`   // 0-based position in flow
	Command string `json:"command"` // Step type: navigate, click, assertContains, etc.
	Label   string `json:"label,omitempty"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message  string `json:"message,omitempty"`  // Human-readable explanation
	Selector string `json:"selector,omitempty"` // Element query used by the step
	Expected string `json:"expected,omitempty"` // Assertion expected text
	Actual   string `json:"actual,omitempty"`   // Assertion extracted text

	// Error details
	Error string `json:"error,omitempty"` // Technical error message
	Err   error  `json:"-"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// Failure identifies the first failing step of a run.
type Failure struct {
	Step   int    `json:"step"`   // 1-based step number; 0 means before any step ran
	Kind   string `json:"kind"`   // Error code, e.g. element_not_found
	Detail string `json:"detail"` // Human-readable detail
	Err    error  `json:"-"`
}

// Error implements error so a Failure can be returned or wrapped directly.
func (f *Failure) Error() string {
	if f.Step == 0 {
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
	return fmt.Sprintf("step %d: %s: %s", f.Step, f.Kind, f.Detail)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a Failure for step (1-based) from err.
func NewFailure(step int, err error) *Failure {
	kind := CodeOf(err)
	if kind == "" {
		kind = CodeDriverFailure
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &Failure{Step: step, Kind: kind, Detail: detail, Err: err}
}

// RunResult is the outcome of one run: Passed, or Failed with the first
// failing step. There is no partial pass beyond how far it got.
type RunResult struct {
	Status   StepStatus    `json:"status"`
	Failure  *Failure      `json:"failure,omitempty"`
	Steps    []StepResult  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Passed returns true if the run passed
func (r *RunResult) Passed() bool {
	return r.Status == StatusPassed
}

// Executed returns the number of steps that ran (passed or failed)
func (r *RunResult) Executed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StatusPassed || s.Status == StatusFailed || s.Status == StatusErrored {
			n++
		}
	}
	return n
}

// FlowResult captures the complete outcome of executing a flow
type FlowResult struct {
	// Identity
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Fixture  string   `json:"fixture,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Browser info (captured once per flow)
	BrowserInfo *BrowserInfo `json:"browserInfo,omitempty"`

	// Status (aggregated from steps)
	Status StepStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps []StepResult `json:"steps"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`

	// Error info (if flow failed)
	Failure *Failure `json:"failure,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (f *FlowResult) ComputeSummary() {
	f.TotalSteps = len(f.Steps)
	f.PassedSteps = 0
	f.FailedSteps = 0
	f.SkippedSteps = 0

	for _, step := range f.Steps {
		switch step.Status {
		case StatusPassed:
			f.PassedSteps++
		case StatusFailed, StatusErrored:
			f.FailedSteps++
		case StatusSkipped, StatusPending:
			f.SkippedSteps++
		}
	}
}

// hasFailure checks if any step in the slice has failed or errored
func hasFailure(steps []StepResult) bool {
	for _, step := range steps {
		if step.Status == StatusFailed || step.Status == StatusErrored {
			return true
		}
	}
	return false
}

// AggregateStatus determines the flow status from step results
// Rules:
// - A failure recorded before any step (fixture) -> StatusFailed
// - Any failed/errored step -> StatusFailed
// - Otherwise -> StatusPassed
func (f *FlowResult) AggregateStatus() StepStatus {
	if f.Failure != nil || hasFailure(f.Steps) {
		return StatusFailed
	}
	return StatusPassed
}

// SuiteResult captures the complete outcome of executing multiple flows
type SuiteResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Flows []FlowResult `json:"flows"`

	// Summary
	TotalFlows   int `json:"totalFlows"`
	PassedFlows  int `json:"passedFlows"`
	FailedFlows  int `json:"failedFlows"`
	SkippedFlows int `json:"skippedFlows"`
}

// ComputeSummary calculates flow counts from the Flows slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalFlows = len(s.Flows)
	s.PassedFlows = 0
	s.FailedFlows = 0
	s.SkippedFlows = 0

	for _, flow := range s.Flows {
		switch flow.Status {
		case StatusPassed:
			s.PassedFlows++
		case StatusFailed, StatusErrored:
			s.FailedFlows++
		case StatusSkipped:
			s.SkippedFlows++
		}
	}
}

// Success returns true if all flows passed
func (s *SuiteResult) Success() bool {
	for _, flow := range s.Flows {
		if !flow.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Flows) > 0
}
