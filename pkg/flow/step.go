package flow

import (
	"strconv"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation & Interaction
	StepNavigate StepType = "navigate"
	StepLocate   StepType = "locate"
	StepTypeText StepType = "type"
	StepClick    StepType = "click"

	// Assertions
	StepAssertURL      StepType = "assertUrl"
	StepAssertContains StepType = "assertContains"
	StepAssertEquals   StepType = "assertEquals"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	Label() string
	Describe() string
	// Timeout is the per-step bounded wait override, zero if unset.
	Timeout() time.Duration
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// Timeout returns the step timeout override.
func (b *BaseStep) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ============================================
// Navigation & Interaction Steps
// ============================================

// NavigateStep loads a path relative to the base URL.
type NavigateStep struct {
	BaseStep `yaml:",inline"`
	Path     string `yaml:"path"`
}

// LocateStep waits for an element to be present.
type LocateStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:"selector"`
}

// TypeStep replaces the value of an input element.
type TypeStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:"selector"`
	Text     string   `yaml:"text"`
}

// ClickStep clicks an element.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:"selector"`
}

// ============================================
// Assertion Steps
// ============================================

// AssertURLStep asserts the current URL contains a fragment.
type AssertURLStep struct {
	BaseStep `yaml:",inline"`
	Contains string `yaml:"contains"`
}

// AssertContainsStep asserts an element's text contains Text.
type AssertContainsStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:"selector"`
	Text     string   `yaml:"text"`
}

// AssertEqualsStep asserts an element's trimmed text equals Text.
type AssertEqualsStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:"selector"`
	Text     string   `yaml:"text"`
}

// ============================================
// Describe implementations
// ============================================

// Describe returns a human-readable description of the navigate step.
func (s *NavigateStep) Describe() string {
	return "navigate: " + s.Path
}

// Describe returns a human-readable description of the locate step.
func (s *LocateStep) Describe() string {
	return "locate: " + s.Selector.Describe()
}

// Describe returns a human-readable description of the type step.
func (s *TypeStep) Describe() string {
	return "type: " + strconv.Quote(s.Text) + " into " + s.Selector.Describe()
}

// Describe returns a human-readable description of the click step.
func (s *ClickStep) Describe() string {
	return "click: " + s.Selector.Describe()
}

// Describe returns a human-readable description of the assert url step.
func (s *AssertURLStep) Describe() string {
	return "assertUrl: " + strconv.Quote(s.Contains)
}

// Describe returns a human-readable description of the assert contains step.
func (s *AssertContainsStep) Describe() string {
	return "assertContains: " + s.Selector.Describe() + " ~ " + strconv.Quote(s.Text)
}

// Describe returns a human-readable description of the assert equals step.
func (s *AssertEqualsStep) Describe() string {
	return "assertEquals: " + s.Selector.Describe() + " == " + strconv.Quote(s.Text)
}

// SelectorOf returns the element selector a step targets, if any.
func SelectorOf(step Step) (Selector, bool) {
	switch s := step.(type) {
	case *LocateStep:
		return s.Selector, true
	case *TypeStep:
		return s.Selector, true
	case *ClickStep:
		return s.Selector, true
	case *AssertContainsStep:
		return s.Selector, true
	case *AssertEqualsStep:
		return s.Selector, true
	}
	return Selector{}, false
}

// Texts returns every user-supplied string of a step that may carry
// ${...} expressions.
func Texts(step Step) []string {
	switch s := step.(type) {
	case *NavigateStep:
		return []string{s.Path}
	case *LocateStep:
		return selectorTexts(s.Selector)
	case *TypeStep:
		return append(selectorTexts(s.Selector), s.Text)
	case *ClickStep:
		return selectorTexts(s.Selector)
	case *AssertURLStep:
		return []string{s.Contains}
	case *AssertContainsStep:
		return append(selectorTexts(s.Selector), s.Text)
	case *AssertEqualsStep:
		return append(selectorTexts(s.Selector), s.Text)
	}
	return nil
}

func selectorTexts(sel Selector) []string {
	return []string{sel.CSS, sel.TestID, sel.Text}
}
