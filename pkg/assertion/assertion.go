// Package assertion evaluates text assertions against elements of a page.
package assertion

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
)

// Mode selects how extracted text is compared with the expected value.
type Mode int

const (
	Contains Mode = iota // Extracted text contains expected as a substring
	Equals               // Whitespace-trimmed text equals expected
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case Contains:
		return "contains"
	case Equals:
		return "equals"
	default:
		return "unknown"
	}
}

// Locator finds an element, waiting as long as its policy allows.
// It must return core.ErrElementNotFound when nothing matches.
type Locator interface {
	Locate(ctx context.Context, page core.Page, selector string) (core.Element, error)
}

// ProbeLocator locates with a single FindElement call and no waiting.
type ProbeLocator struct{}

// Locate implements Locator.
func (ProbeLocator) Locate(ctx context.Context, page core.Page, selector string) (core.Element, error) {
	return page.FindElement(ctx, selector)
}

// Checker reads element text and compares it with an expected value.
// It never mutates the page.
type Checker struct {
	Locator Locator
}

// NewChecker creates a Checker using locator (ProbeLocator if nil).
func NewChecker(locator Locator) *Checker {
	if locator == nil {
		locator = ProbeLocator{}
	}
	return &Checker{Locator: locator}
}

// Check locates selector, reads its text and reports whether it matches
// expected under mode. Fails with ElementNotFound like Locate does.
func (c *Checker) Check(ctx context.Context, page core.Page, selector, expected string, mode Mode) (bool, error) {
	_, ok, err := c.Inspect(ctx, page, selector, expected, mode)
	return ok, err
}

// Inspect is Check that also returns the extracted text.
func (c *Checker) Inspect(ctx context.Context, page core.Page, selector, expected string, mode Mode) (string, bool, error) {
	locator := c.Locator
	if locator == nil {
		locator = ProbeLocator{}
	}

	el, err := locator.Locate(ctx, page, selector)
	if err != nil {
		return "", false, err
	}

	actual, err := page.ReadText(ctx, el)
	if err != nil {
		return "", false, fmt.Errorf("read text of %s: %w", selector, err)
	}
	return actual, Match(actual, expected, mode), nil
}

// Match compares actual with expected. Contains is a plain substring
// test, so an empty expected value matches any text; flows asserting
// empty text are rejected at validation instead.
func Match(actual, expected string, mode Mode) bool {
	switch mode {
	case Contains:
		return strings.Contains(actual, expected)
	case Equals:
		return strings.TrimSpace(actual) == strings.TrimSpace(expected)
	default:
		return false
	}
}

// Mismatch builds the AssertionMismatch error for a failed comparison.
func Mismatch(selector, expected, actual string, mode Mode) *core.ExecutionError {
	return core.ErrAssertionMismatch.
		WithMessage(fmt.Sprintf("%s: expected text to %s %q, got %q", selector, verb(mode), expected, actual)).
		WithDetails(map[string]interface{}{
			"selector": selector,
			"expected": expected,
			"actual":   actual,
			"mode":     mode.String(),
		})
}

func verb(mode Mode) string {
	if mode == Equals {
		return "equal"
	}
	return "contain"
}
