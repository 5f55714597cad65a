package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Step or assertion failed
	StatusErrored                   // Infrastructure error (page could not be acquired, driver crashed)
	StatusSkipped                   // Not executed because an earlier step failed
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryFixture                         // Fixture missing or malformed
	ErrCategoryAssertion                       // Element not found, text mismatch
	ErrCategoryTimeout                         // Navigation or whole-run timeout
	ErrCategoryConnection                      // Browser or driver connection lost
	ErrCategoryConfig                          // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryFixture:
		return "fixture"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Phase is a state of the run state machine:
// Init -> LoadingFixture -> Executing -> Asserting -> {Passed, Failed}.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseLoadingFixture
	PhaseExecuting
	PhaseAsserting
	PhasePassed
	PhaseFailed
)

// String returns the string representation of Phase
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseLoadingFixture:
		return "loading_fixture"
	case PhaseExecuting:
		return "executing"
	case PhaseAsserting:
		return "asserting"
	case PhasePassed:
		return "passed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for Passed and Failed.
func (p Phase) IsTerminal() bool {
	return p == PhasePassed || p == PhaseFailed
}
