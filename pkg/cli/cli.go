// Package cli provides the command-line interface for webflow-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Page driver (playwright, mock)",
		Value:   "playwright",
		EnvVars: []string{"WEBFLOW_DRIVER"},
	},
	&cli.StringFlag{
		Name:    "browser",
		Aliases: []string{"b"},
		Usage:   "Browser engine (chromium, firefox, webkit)",
		EnvVars: []string{"WEBFLOW_BROWSER"},
	},
	&cli.StringFlag{
		Name:    "base-url",
		Usage:   "Base URL navigate paths resolve against",
		EnvVars: []string{"WEBFLOW_BASE_URL"},
	},
	&cli.BoolFlag{
		Name:    "headless",
		Usage:   "Run the browser without a window",
		Value:   true,
		EnvVars: []string{"WEBFLOW_HEADLESS"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"WEBFLOW_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "webflow-runner",
		Usage:   "Declarative UI-flow test runner for web applications",
		Version: Version,
		Description: `webflow-runner executes YAML flow files against a web application
in a real browser, driving each flow with values from a fixture file.

Examples:
  webflow-runner test flows/add-product.yaml
  webflow-runner --base-url http://localhost:4200 test flows/
  webflow-runner validate flows/
  webflow-runner report reports/2024-01-01_10-00-00`,
		Flags: GlobalFlags,
		// Exit codes are applied by Execute so the app can run in tests.
		ExitErrHandler: func(*cli.Context, error) {},
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			testCommand,
			validateCommand,
			reportCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			if msg := exitErr.Error(); msg != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
