package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/webflow-runner/pkg/flow"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	OutputDir     string  // Base output directory for reports
	RunID         string  // Run identifier; generated when empty
	Browser       Browser // Browser information
	CI            *CI     // CI/CD information (optional)
	RunnerVersion string  // webflow-runner version
	DriverName    string  // Driver name (playwright, mock)
}

// BuildSkeleton creates the initial report structure from parsed flows.
// All flows and commands are set to "pending" status.
// This should be called after YAML validation, before execution starts.
func BuildSkeleton(flows []flow.Flow, cfg BuilderConfig) (*Index, []FlowDetail, error) {
	now := time.Now()

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	index := &Index{
		Version:     Version,
		RunID:       runID,
		UpdateSeq:   0,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Browser:     cfg.Browser,
		CI:          cfg.CI,
		Runner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
		},
		Summary: Summary{
			Total:   len(flows),
			Pending: len(flows),
		},
		Flows: make([]FlowEntry, len(flows)),
	}

	flowDetails := make([]FlowDetail, len(flows))

	for i, f := range flows {
		flowID := fmt.Sprintf("flow-%03d", i)
		flowName := extractFlowName(f)
		commands := buildCommands(f.Steps)

		index.Flows[i] = FlowEntry{
			Index:      i,
			ID:         flowID,
			Name:       flowName,
			SourceFile: f.SourcePath,
			Fixture:    f.Config.Fixture,
			DataFile:   filepath.Join("flows", flowID+".json"),
			AssetsDir:  filepath.Join("assets", flowID),
			Status:     StatusPending,
			Commands: CommandSummary{
				Total:   len(commands),
				Pending: len(commands),
			},
		}

		browser := cfg.Browser
		if f.Config.BaseURL != "" {
			browser.BaseURL = f.Config.BaseURL
		}

		flowDetails[i] = FlowDetail{
			ID:         flowID,
			Name:       flowName,
			SourceFile: f.SourcePath,
			Fixture:    f.Config.Fixture,
			Tags:       f.Config.Tags,
			Browser:    &browser,
			Commands:   commands,
		}
	}

	return index, flowDetails, nil
}

// extractFlowName extracts a display name from the flow.
func extractFlowName(f flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	base := filepath.Base(f.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// buildCommands creates Command entries from flow steps.
func buildCommands(steps []flow.Step) []Command {
	commands := make([]Command, len(steps))
	for i, step := range steps {
		commands[i] = Command{
			ID:          fmt.Sprintf("cmd-%03d", i),
			Index:       i,
			Type:        string(step.Type()),
			Label:       step.Label(),
			Description: step.Describe(),
			Status:      StatusPending,
			Params:      extractParams(step),
		}
	}
	return commands
}

// extractParams extracts command parameters from a step.
func extractParams(step flow.Step) *CommandParams {
	params := &CommandParams{}
	hasContent := false

	if sel, ok := flow.SelectorOf(step); ok && !sel.IsEmpty() {
		params.Selector = convertSelector(sel)
		hasContent = true
	}

	switch s := step.(type) {
	case *flow.NavigateStep:
		params.Path = s.Path
	case *flow.TypeStep:
		params.Text = s.Text
	case *flow.AssertURLStep:
		params.Text = s.Contains
	case *flow.AssertContainsStep:
		params.Text = s.Text
	case *flow.AssertEqualsStep:
		params.Text = s.Text
	}
	if params.Path != "" || params.Text != "" {
		hasContent = true
	}

	if t := step.Timeout(); t > 0 {
		params.Timeout = int(t / time.Millisecond)
		hasContent = true
	}

	if !hasContent {
		return nil
	}
	return params
}

// convertSelector converts flow.Selector to report.Selector.
func convertSelector(sel flow.Selector) *Selector {
	var sType, sValue string
	switch {
	case sel.CSS != "":
		sType = "css"
		sValue = sel.CSS
	case sel.TestID != "":
		sType = "testId"
		sValue = sel.TestID
	case sel.Text != "":
		sType = "text"
		sValue = sel.Text
	default:
		return nil
	}

	return &Selector{
		Type:  sType,
		Value: sValue,
		Query: sel.Query(),
	}
}

// WriteSkeleton writes the initial skeleton to disk.
// Creates report.json and all flow detail files with pending status.
func WriteSkeleton(outputDir string, index *Index, flowDetails []FlowDetail) error {
	if err := ensureDir(filepath.Join(outputDir, "flows")); err != nil {
		return fmt.Errorf("create flows dir: %w", err)
	}
	if err := ensureDir(filepath.Join(outputDir, "assets")); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	for _, fd := range flowDetails {
		flowPath := filepath.Join(outputDir, "flows", fd.ID+".json")
		if err := atomicWriteJSON(flowPath, fd); err != nil {
			return fmt.Errorf("write flow %s: %w", fd.ID, err)
		}

		assetsPath := filepath.Join(outputDir, "assets", fd.ID)
		if err := ensureDir(assetsPath); err != nil {
			return fmt.Errorf("create assets dir for %s: %w", fd.ID, err)
		}
	}

	indexPath := filepath.Join(outputDir, "report.json")
	if err := atomicWriteJSON(indexPath, index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}
