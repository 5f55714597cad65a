package executor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/report"
)

// suggestions gives a hint per error code for the report.
var suggestions = map[string]string{
	core.CodeElementNotFound:   "Check the selector; prefer a data-testid over generated ids and classes",
	core.CodeAssertionMismatch: "Check the fixture value and that the page finished updating",
	core.CodeNavigationTimeout: "Check that the base URL is reachable or raise commandTimeout",
	core.CodeRunTimeout:        "The whole-run timeout elapsed or the run was cancelled",
	core.CodeFixtureMalformed:  "Add the missing fields to the fixture file",
	core.CodeFixtureNotFound:   "Create the fixture in the fixtures directory",
}

// stepResultToElement converts a step outcome to report.Element.
func stepResultToElement(sr *core.StepResult) *report.Element {
	if sr == nil || sr.Selector == "" {
		return nil
	}
	return &report.Element{
		Found: sr.Status == core.StatusPassed || core.CodeOf(sr.Err) == core.CodeAssertionMismatch,
		Query: sr.Selector,
		Text:  sr.Actual,
	}
}

// errorToReport converts an execution error to report.Error.
func errorToReport(err error) *report.Error {
	if err == nil {
		return nil
	}

	errType := core.CodeOf(err)
	if errType == "" {
		errType = core.CodeDriverFailure
	}

	out := &report.Error{
		Type:       errType,
		Message:    err.Error(),
		Suggestion: suggestions[errType],
	}

	var execErr *core.ExecutionError
	if errors.As(err, &execErr) && len(execErr.Details) > 0 {
		out.Details = formatDetails(execErr.Details)
	}
	return out
}

// failureToReport converts core.Failure to report.Failure.
func failureToReport(f *core.Failure) *report.Failure {
	if f == nil {
		return nil
	}
	return &report.Failure{Step: f.Step, Kind: f.Kind, Detail: f.Detail}
}

// statusToReport maps a step status to a report status.
func statusToReport(s core.StepStatus) report.Status {
	switch s {
	case core.StatusPassed:
		return report.StatusPassed
	case core.StatusFailed, core.StatusErrored:
		return report.StatusFailed
	case core.StatusSkipped:
		return report.StatusSkipped
	case core.StatusRunning:
		return report.StatusRunning
	default:
		return report.StatusPending
	}
}

func formatDetails(details map[string]interface{}) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, details[k])
	}
	return strings.Join(parts, " ")
}
