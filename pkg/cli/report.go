package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webflow-runner/pkg/report"
)

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "Print the results stored in a report directory",
	ArgsUsage: "<report-dir>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "recover",
			Usage: "Settle flows left pending or running by an interrupted run",
		},
	},
	Action: runReport,
}

func runReport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one report directory is required")
	}
	dir := c.Args().First()

	if c.Bool("recover") {
		if err := report.Recover(dir); err != nil {
			return fmt.Errorf("recover report: %w", err)
		}
	}

	index, flows, err := report.ReadReport(dir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	printDetailedFlowResults(index, flows)

	var durationMs int64
	if index.EndTime != nil {
		durationMs = index.EndTime.Sub(index.StartTime).Milliseconds()
	}
	printSummaryTable(index, flows, durationMs)

	if index.Status != report.StatusPassed {
		return cli.Exit("", 1)
	}
	return nil
}
