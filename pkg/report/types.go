// Package report provides JSON-based test reporting with real-time updates.
//
// Architecture:
//   - report.json: Main index file (small, frequently updated, mutex-protected)
//   - flows/flow-XXX.json: Per-flow detail files (no lock needed)
//   - assets/flow-XXX/: Per-flow artifacts (screenshots, page HTML)
//
// The index file serves as single source of truth for status and change tracking.
// Consumers poll report.json and only fetch changed flow details as needed.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file that binds everything together.
// It contains minimal info for efficient polling and change detection.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Status      Status      `json:"status"`
	Interrupted bool        `json:"interrupted,omitempty"` // Cancelled before every flow started
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Browser     Browser     `json:"browser"`
	CI          *CI         `json:"ci,omitempty"`
	Runner      RunnerInfo  `json:"runner"`
	Summary     Summary     `json:"summary"`
	Flows       []FlowEntry `json:"flows"`
}

// Browser contains browser information.
type Browser struct {
	Driver   string `json:"driver"` // playwright, mock
	Name     string `json:"name"`   // chromium, firefox, webkit
	Version  string `json:"version,omitempty"`
	Headless bool   `json:"headless"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

// CI contains CI/CD build information.
type CI struct {
	Provider string `json:"provider,omitempty"`
	BuildID  string `json:"buildId,omitempty"`
	BuildURL string `json:"buildUrl,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Commit   string `json:"commit,omitempty"`
}

// RunnerInfo contains webflow-runner information.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// FlowEntry is the index entry for a flow (minimal info).
type FlowEntry struct {
	Index       int            `json:"index"`      // Original position
	ID          string         `json:"id"`         // Unique flow ID
	Name        string         `json:"name"`       // Display name
	SourceFile  string         `json:"sourceFile"` // Path to YAML file
	Fixture     string         `json:"fixture,omitempty"`
	DataFile    string         `json:"dataFile"`  // Path to flow detail JSON
	AssetsDir   string         `json:"assetsDir"` // Path to assets directory
	Status      Status         `json:"status"`
	UpdateSeq   uint64         `json:"updateSeq"`
	StartTime   *time.Time     `json:"startTime,omitempty"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	Duration    *int64         `json:"duration,omitempty"` // milliseconds
	LastUpdated *time.Time     `json:"lastUpdated,omitempty"`
	Commands    CommandSummary `json:"commands"`
	Error       *string        `json:"error,omitempty"`
	Failure     *Failure       `json:"failure,omitempty"`
}

// CommandSummary contains command counts for a flow.
type CommandSummary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Running int  `json:"running"`
	Pending int  `json:"pending"`
	Current *int `json:"current,omitempty"` // Currently running command index
}

// Failure identifies the first failing step of a flow.
type Failure struct {
	Step   int    `json:"step"` // 1-based; 0 = before any step (fixture, page acquisition)
	Kind   string `json:"kind"` // fixture_malformed, element_not_found, run_timeout, ...
	Detail string `json:"detail"`
}

// ============================================================================
// FLOW DETAIL (flows/flow-XXX.json)
// ============================================================================

// FlowDetail contains full flow execution details.
type FlowDetail struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SourceFile string     `json:"sourceFile"`
	Fixture    string     `json:"fixture,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Browser    *Browser   `json:"browser,omitempty"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Duration   *int64     `json:"duration,omitempty"` // milliseconds
	Commands   []Command  `json:"commands"`
	Failure    *Failure   `json:"failure,omitempty"`
}

// Command represents a single command execution.
type Command struct {
	ID          string           `json:"id"`
	Index       int              `json:"index"`
	Type        string           `json:"type"`
	Label       string           `json:"label,omitempty"` // Human-readable description from YAML label field
	Description string           `json:"description,omitempty"`
	Status      Status           `json:"status"`
	StartTime   *time.Time       `json:"startTime,omitempty"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	Duration    *int64           `json:"duration,omitempty"` // milliseconds
	Params      *CommandParams   `json:"params,omitempty"`
	Element     *Element         `json:"element,omitempty"`
	Error       *Error           `json:"error,omitempty"`
	Artifacts   CommandArtifacts `json:"artifacts"`
}

// CommandParams contains command-specific parameters.
type CommandParams struct {
	Selector *Selector `json:"selector,omitempty"`
	Path     string    `json:"path,omitempty"`
	Text     string    `json:"text,omitempty"`
	Timeout  int       `json:"timeout,omitempty"`
}

// Selector represents an element selector.
type Selector struct {
	Type  string `json:"type"` // css, testId, text
	Value string `json:"value"`
	Query string `json:"query"` // Engine query derived from Type/Value
}

// Element contains information about the element a command acted on.
type Element struct {
	Found bool   `json:"found"`
	Query string `json:"query,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Error contains error details.
type Error struct {
	Type       string `json:"type"` // element_not_found, assertion_mismatch, navigation_timeout, run_timeout, ...
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ============================================================================
// ARTIFACTS (paths only, never inline data)
// ============================================================================

// CommandArtifacts contains command-level artifact paths.
type CommandArtifacts struct {
	Screenshot  string `json:"screenshot,omitempty"`
	PageContent string `json:"pageContent,omitempty"`
}

// ============================================================================
// UPDATE TYPES
// ============================================================================

// FlowUpdate contains the fields to update in index for a flow.
type FlowUpdate struct {
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Commands  CommandSummary
	Error     *string
	Failure   *Failure
}
