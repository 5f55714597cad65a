package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/devicelab-dev/webflow-runner/pkg/executor"
	"github.com/devicelab-dev/webflow-runner/pkg/report"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

const tableWidth = 104

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

// stderr receives warnings and errors.
var stderr io.Writer = os.Stderr

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// printSetupStep prints a setup step with spinner-style prefix
func printSetupStep(msg string) {
	fmt.Printf("  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

// printSetupSuccess prints a success message for setup
func printSetupSuccess(msg string) {
	fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

// printWarning writes a warning to stderr.
func printWarning(format string, args ...interface{}) {
	fmt.Fprintf(stderr, "  %s⚠ Warning:%s %s\n", color(colorYellow), color(colorReset), fmt.Sprintf(format, args...))
}

// Live progress callbacks

func onFlowStart(flowIdx, totalFlows int, name, file string) {
	fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset), file)
	fmt.Println(strings.Repeat("─", 60))
}

func onStepComplete(idx int, desc string, passed bool, durationMs int64, errMsg string) {
	printStep("    ", desc, passed, durationMs, errMsg)
}

func onFlowEnd(name string, passed bool, durationMs int64, errMsg string) {
	printFlowResult(name, passed, durationMs)
}

func printStep(indent, desc string, passed bool, durationMs int64, errMsg string) {
	isSlow := durationMs >= slowThresholdMs
	durStr := formatDuration(durationMs)

	if passed {
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if isSlow {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Printf("%s%s%s%s %s %s(%s)%s\n",
			indent, symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
		return
	}

	fmt.Printf("%s%s✗%s %s (%s)\n", indent, color(colorRed), color(colorReset), desc, durStr)
	if errMsg != "" {
		fmt.Printf("%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), errMsg)
	}
}

func printFlowResult(name string, passed bool, durationMs int64) {
	if passed {
		fmt.Printf("%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), name, color(colorGray), formatDuration(durationMs), color(colorReset))
	} else {
		fmt.Printf("%s✗ %s%s %s%s%s\n",
			color(colorRed), color(colorReset), name, color(colorGray), formatDuration(durationMs), color(colorReset))
	}
}

// printUnifiedOutput prints the summary table for a finished run,
// read back from the report on disk.
func printUnifiedOutput(outputDir string, result *executor.RunResult) error {
	index, flows, err := report.ReadReport(outputDir)
	if err != nil {
		return err
	}
	printSummaryTable(index, flows, result.Duration)
	return nil
}

// printDetailedFlowResults prints flow-by-flow results with all commands.
func printDetailedFlowResults(index *report.Index, flows []report.FlowDetail) {
	for i, entry := range index.Flows {
		fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s)\n",
			color(colorCyan), i+1, len(index.Flows), color(colorReset),
			color(colorBold), entry.Name, color(colorReset), entry.SourceFile)
		fmt.Println("  " + strings.Repeat("─", 60))

		if i < len(flows) {
			for _, cmd := range flows[i].Commands {
				printCommand(cmd)
			}
		}

		switch entry.Status {
		case report.StatusPassed, report.StatusFailed:
			printFlowResult(entry.Name, entry.Status == report.StatusPassed, derefDuration(entry.Duration))
		default:
			fmt.Printf("%s- %s%s %s(%s)%s\n",
				color(colorCyan), color(colorReset), entry.Name, color(colorGray), entry.Status, color(colorReset))
		}
		if entry.Failure != nil && entry.Failure.Step == 0 {
			fmt.Printf("    %s╰─%s %s: %s\n", color(colorGray), color(colorReset), entry.Failure.Kind, entry.Failure.Detail)
		}
	}
}

// printCommand prints a single command with proper indentation.
func printCommand(cmd report.Command) {
	description := cmd.Label
	if description == "" {
		description = cmd.Description
	}
	if description == "" {
		description = cmd.Type
	}

	switch cmd.Status {
	case report.StatusPassed:
		printStep("    ", description, true, derefDuration(cmd.Duration), "")
	case report.StatusFailed:
		errMsg := ""
		if cmd.Error != nil {
			errMsg = cmd.Error.Message
		}
		printStep("    ", description, false, derefDuration(cmd.Duration), errMsg)
	default:
		fmt.Printf("    %s-%s %s %s(%s)%s\n",
			color(colorGray), color(colorReset), description, color(colorGray), cmd.Status, color(colorReset))
	}
}

// stepTotals counts command outcomes across flows.
type stepTotals struct {
	Total, Passed, Failed, Skipped int
}

func countSteps(commands []report.Command) stepTotals {
	t := stepTotals{Total: len(commands)}
	for _, cmd := range commands {
		switch cmd.Status {
		case report.StatusPassed:
			t.Passed++
		case report.StatusFailed:
			t.Failed++
		case report.StatusSkipped:
			t.Skipped++
		}
	}
	return t
}

// printSummaryTable prints step totals and one row per flow with its fixture.
func printSummaryTable(index *report.Index, flows []report.FlowDetail, durationMs int64) {
	var total stepTotals
	perFlow := make([]stepTotals, len(index.Flows))
	for i := range index.Flows {
		if i < len(flows) {
			perFlow[i] = countSteps(flows[i].Commands)
		}
		total.Total += perFlow[i].Total
		total.Passed += perFlow[i].Passed
		total.Failed += perFlow[i].Failed
		total.Skipped += perFlow[i].Skipped
	}

	// Print step summary
	fmt.Println()
	if total.Passed > 0 {
		fmt.Printf("  %s%d steps passing%s (%s)\n",
			color(colorGreen), total.Passed, color(colorReset), formatDuration(durationMs))
	}
	if total.Failed > 0 {
		fmt.Printf("  %s%d steps failing%s\n", color(colorRed), total.Failed, color(colorReset))
	}
	if total.Skipped > 0 {
		fmt.Printf("  %s%d steps skipped%s\n", color(colorCyan), total.Skipped, color(colorReset))
	}
	fmt.Println()

	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %-34s %6s %7s %6s %6s %6s %10s  %s\n",
		"Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration", "Fixture")
	fmt.Println(strings.Repeat("─", tableWidth))

	passedFlows := 0
	for i, entry := range index.Flows {
		status, statusColor := statusLabel(entry.Status)
		if entry.Status == report.StatusPassed {
			passedFlows++
		}

		name := truncate(entry.Name, 34)
		fixtureName := entry.Fixture
		if fixtureName == "" {
			fixtureName = "-"
		}

		st := perFlow[i]
		fmt.Printf("  %-34s %s%6s%s %7d %6d %6d %6d %10s  %s\n",
			name, statusColor, status, color(colorReset),
			st.Total, st.Passed, st.Failed, st.Skipped,
			formatDuration(derefDuration(entry.Duration)), truncate(fixtureName, 20))
	}

	// Print totals row
	fmt.Println(strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", passedFlows, len(index.Flows))
	statusColor := color(colorGreen)
	if index.Summary.Failed > 0 {
		statusColor = color(colorRed)
	}
	fmt.Printf("  %s%-34s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		total.Total, total.Passed, total.Failed, total.Skipped,
		formatDuration(durationMs))
	fmt.Println(strings.Repeat("═", tableWidth))

	browser := index.Browser
	label := browser.Name
	if browser.Version != "" {
		label += " " + browser.Version
	}
	if browser.Headless {
		label += " (headless)"
	}
	fmt.Printf("  %sBrowser:%s %s via %s\n", color(colorDim), color(colorReset), label, browser.Driver)
}

// printSummary is the fallback when the report cannot be read back.
func printSummary(result *executor.RunResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %-34s %6s %7s %6s %6s %6s %10s\n", "Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Println(strings.Repeat("─", tableWidth))
	for _, fr := range result.FlowResults {
		status, statusColor := statusLabel(fr.Status)
		fmt.Printf("  %-34s %s%6s%s %7d %6d %6d %6d %10s\n",
			truncate(fr.Name, 34), statusColor, status, color(colorReset),
			fr.StepsTotal, fr.StepsPassed, fr.StepsFailed, fr.StepsSkipped,
			formatDuration(fr.Duration))
	}
	fmt.Println(strings.Repeat("─", tableWidth))
	fmt.Printf("  %s%-34s%s %6s\n", color(colorBold), "TOTAL", color(colorReset),
		fmt.Sprintf("%d/%d", result.PassedFlows, result.TotalFlows))
	fmt.Println(strings.Repeat("═", tableWidth))
}

func statusLabel(status report.Status) (string, string) {
	switch status {
	case report.StatusPassed:
		return "✓ PASS", color(colorGreen)
	case report.StatusFailed:
		return "✗ FAIL", color(colorRed)
	case report.StatusSkipped:
		return "- SKIP", color(colorCyan)
	default:
		return "… " + strings.ToUpper(string(status)), color(colorYellow)
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func derefDuration(d *int64) int64 {
	if d == nil {
		return 0
	}
	return *d
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
