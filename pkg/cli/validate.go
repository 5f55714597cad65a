package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webflow-runner/pkg/fixture"
	"github.com/devicelab-dev/webflow-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check flow files and their fixtures without opening a browser",
	ArgsUsage: "<flow-file-or-folder>...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
		&cli.StringFlag{
			Name:  "fixtures",
			Usage: "Fixture directory (default: ./fixtures)",
			Value: fixture.DefaultDir,
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	v := validator.New(
		c.StringSlice("include-tags"),
		c.StringSlice("exclude-tags"),
		fixture.NewLoader(c.String("fixtures")),
	)
	result := v.ValidateAll(c.Args().Slice())

	for _, f := range result.Files {
		printSetupSuccess(f)
	}

	if !result.IsValid() {
		fmt.Println()
		for _, err := range result.Errors {
			fmt.Printf("  %s✗%s %v\n", color(colorRed), color(colorReset), err)
		}
		fmt.Printf("\n  %s%d error(s)%s in %d file(s) checked\n",
			color(colorRed), len(result.Errors), color(colorReset), len(result.Files)+len(result.Errors))
		return cli.Exit("", 1)
	}

	fmt.Printf("\n  %s%d flow(s) valid%s\n", color(colorGreen), len(result.Flows), color(colorReset))
	return nil
}
