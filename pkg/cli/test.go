package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webflow-runner/pkg/config"
	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/driver/browser"
	"github.com/devicelab-dev/webflow-runner/pkg/driver/mock"
	"github.com/devicelab-dev/webflow-runner/pkg/executor"
	"github.com/devicelab-dev/webflow-runner/pkg/fixture"
	"github.com/devicelab-dev/webflow-runner/pkg/flow"
	"github.com/devicelab-dev/webflow-runner/pkg/logger"
	"github.com/devicelab-dev/webflow-runner/pkg/report"
	"github.com/devicelab-dev/webflow-runner/pkg/validator"
)

var testCommand = &cli.Command{
	Name:      "test",
	Usage:     "Run web flows in a browser",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more flow files against a web application.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  webflow-runner test flows/add-product.yaml
  webflow-runner --base-url http://localhost:4200 test flows/
  webflow-runner test flows/ -e ADMIN_USER=test --env-file .env
  webflow-runner test flows/ --include-tags smoke --parallel 4
  webflow-runner test flows/ --output ./my-reports --flatten`,
	Flags: []cli.Flag{
		// Configuration
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to workspace config.yaml (default: ./config.yaml if present)",
		},

		// Variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables exposed to flows (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "Load variables from a .env file",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},

		// Fixtures
		&cli.StringFlag{
			Name:  "fixtures",
			Usage: "Fixture directory (default: ./fixtures)",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.StringFlag{
			Name:  "artifacts",
			Usage: "When to capture screenshots and page HTML (on-failure, always, never)",
			Value: "on-failure",
		},

		// Execution
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run N flows concurrently, each in its own page",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Do not start further flows after the first failure",
		},
		&cli.IntFlag{
			Name:    "command-timeout",
			Usage:   "Bounded wait per step in ms (default 4000)",
			EnvVars: []string{"WEBFLOW_COMMAND_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "run-timeout",
			Usage:   "Whole-run deadline per flow in ms (0 = none)",
			EnvVars: []string{"WEBFLOW_RUN_TIMEOUT"},
		},
		&cli.BoolFlag{
			Name:  "install-driver",
			Usage: "Download the Playwright driver and browser if missing",
			Value: true,
		},
	},
	Action: runTest,
}

// RunConfig holds the complete test run configuration.
type RunConfig struct {
	// Paths
	FlowPaths   []string
	ConfigPath  string
	FixturesDir string

	// Variables
	Env map[string]string

	// Filtering
	IncludeTags []string
	ExcludeTags []string

	// Output
	OutputDir string // Final resolved output directory
	Artifacts executor.ArtifactMode

	// Execution
	Parallel       int
	StopOnFail     bool
	CommandTimeout time.Duration
	RunTimeout     time.Duration

	// Browser
	Driver        string // playwright, mock
	Browser       string // chromium, firefox, webkit
	BaseURL       string
	Headless      bool
	InstallDriver bool
	Verbose       bool
}

func runTest(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	workspace, configPath, err := loadWorkspaceConfig(c.String("config"))
	if err != nil {
		return err
	}

	env, err := buildEnv(workspace.Env, c.StringSlice("env-file"), c.StringSlice("env"))
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}

	artifactsName := c.String("artifacts")
	if !c.IsSet("artifacts") && workspace.Artifacts != "" {
		artifactsName = workspace.Artifacts
	}
	artifacts, err := parseArtifactMode(artifactsName)
	if err != nil {
		return err
	}

	cfg := &RunConfig{
		FlowPaths:      c.Args().Slice(),
		ConfigPath:     configPath,
		FixturesDir:    firstNonEmpty(c.String("fixtures"), workspace.FixturesDir, fixture.DefaultDir),
		Env:            env,
		IncludeTags:    firstNonEmptySlice(c.StringSlice("include-tags"), workspace.IncludeTags),
		ExcludeTags:    firstNonEmptySlice(c.StringSlice("exclude-tags"), workspace.ExcludeTags),
		OutputDir:      outputDir,
		Artifacts:      artifacts,
		Parallel:       firstNonZero(c.Int("parallel"), workspace.Parallel),
		StopOnFail:     c.Bool("stop-on-fail"),
		CommandTimeout: millis(firstNonZero(c.Int("command-timeout"), workspace.CommandTimeout)),
		RunTimeout:     millis(firstNonZero(c.Int("run-timeout"), workspace.RunTimeout)),
		Driver:         c.String("driver"),
		Browser:        firstNonEmpty(c.String("browser"), workspace.Browser, "chromium"),
		BaseURL:        firstNonEmpty(c.String("base-url"), workspace.BaseURL),
		Headless:       c.Bool("headless"),
		InstallDriver:  c.Bool("install-driver"),
		Verbose:        c.Bool("verbose"),
	}

	// Flag > workspace config > default (headless)
	if !c.IsSet("headless") && workspace.Headless != nil {
		cfg.Headless = *workspace.Headless
	}

	// Relative fixture directories in config.yaml are relative to the config file.
	if c.String("fixtures") == "" && workspace.FixturesDir != "" && configPath != "" && !filepath.IsAbs(workspace.FixturesDir) {
		cfg.FixturesDir = filepath.Join(filepath.Dir(configPath), workspace.FixturesDir)
	}

	return executeTest(cfg)
}

// loadWorkspaceConfig loads the given config file, or ./config.yaml when
// path is empty. A missing default config yields an empty Config.
func loadWorkspaceConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, path, nil
	}

	cfg, err := config.LoadFromDir(".")
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, "", nil
}

// buildEnv merges variables: workspace config < .env files < -e flags.
func buildEnv(workspace map[string]string, envFiles, envFlags []string) (map[string]string, error) {
	merged := make(map[string]string)
	for k, v := range workspace {
		merged[k] = v
	}

	if len(envFiles) > 0 {
		fileEnv, err := godotenv.Read(envFiles...)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		for k, v := range fileEnv {
			merged[k] = v
		}
	}

	for k, v := range parseEnvVars(envFlags) {
		merged[k] = v // CLI overrides everything else
	}
	return merged, nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func executeTest(cfg *RunConfig) error {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := filepath.Join(cfg.OutputDir, "webflow-runner.log")
	if err := logger.Init(logPath); err != nil {
		printWarning("failed to initialize logger: %v", err)
	}
	defer logger.Close()
	if cfg.Verbose {
		_ = logger.SetLevel("debug")
	}

	logger.Info("=== Test execution started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Driver: %s (%s, headless=%v)", cfg.Driver, cfg.Browser, cfg.Headless)
	logger.Info("Base URL: %s", cfg.BaseURL)

	// SIGINT/SIGTERM fail running flows with run_timeout and skip the rest.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Validate and parse flows
	flows, err := validateAndParseFlows(cfg)
	if err != nil {
		logger.Error("Flow validation failed: %v", err)
		return err
	}
	logger.Info("Validated %d flow(s)", len(flows))

	// 4. Start the page provider
	provider, err := createProvider(cfg)
	if err != nil {
		logger.Error("Driver startup failed: %v", err)
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("Failed to close driver: %v", err)
		}
	}()
	printSetupSuccess(fmt.Sprintf("Started %s driver", cfg.Driver))

	// 5. Execute flows
	runner := executor.New(provider, executor.RunnerConfig{
		OutputDir:      cfg.OutputDir,
		Parallelism:    cfg.Parallel,
		StopOnFail:     cfg.StopOnFail,
		Artifacts:      cfg.Artifacts,
		FixturesDir:    cfg.FixturesDir,
		Env:            cfg.Env,
		StepTimeout:    cfg.CommandTimeout,
		RunTimeout:     cfg.RunTimeout,
		CI:             detectCI(),
		RunnerVersion:  Version,
		DriverName:     cfg.Driver,
		OnFlowStart:    onFlowStart,
		OnStepComplete: onStepComplete,
		OnFlowEnd:      onFlowEnd,
	})

	result, err := runner.Run(ctx, flows)
	if err != nil {
		logger.Error("Flow execution failed: %v", err)
		return err
	}
	logger.Info("Flow execution completed: %d passed, %d failed, %d skipped",
		result.PassedFlows, result.FailedFlows, result.SkippedFlows)

	// 6. Print summary
	if err := printUnifiedOutput(cfg.OutputDir, result); err != nil {
		printWarning("failed to print unified output: %v", err)
		printSummary(result)
	}

	if result.Interrupted {
		printWarning("run interrupted: %d flow(s) not started", result.SkippedFlows)
	}

	fmt.Println()
	fmt.Println("  Reports:")
	fmt.Printf("    JSON:   %s\n", filepath.Join(cfg.OutputDir, "report.json"))
	fmt.Printf("    Log:    %s\n", logPath)
	fmt.Println()

	// Exit with code 1 if any flows failed (summary already printed)
	if result.Status != report.StatusPassed {
		return cli.Exit("", 1)
	}

	return nil
}

// validateAndParseFlows validates all flow paths and returns the parsed flows.
func validateAndParseFlows(cfg *RunConfig) ([]flow.Flow, error) {
	v := validator.New(cfg.IncludeTags, cfg.ExcludeTags, fixture.NewLoader(cfg.FixturesDir))
	result := v.ValidateAll(cfg.FlowPaths)

	if !result.IsValid() {
		fmt.Fprintf(stderr, "Validation errors:\n")
		for _, err := range result.Errors {
			fmt.Fprintf(stderr, "  - %v\n", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
	}

	if len(result.Flows) == 0 {
		return nil, fmt.Errorf("no test flows found")
	}

	fmt.Printf("\n%sSetup%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 40))
	printSetupSuccess(fmt.Sprintf("Found %d test flow(s)", len(result.Flows)))

	flows := make([]flow.Flow, len(result.Flows))
	for i, f := range result.Flows {
		flows[i] = *f
	}
	return flows, nil
}

// createProvider starts the configured page driver.
func createProvider(cfg *RunConfig) (core.PageProvider, error) {
	switch cfg.Driver {
	case "mock":
		provider := mock.NewProvider(mock.ProductApp())
		if cfg.BaseURL != "" {
			provider.BaseURL = cfg.BaseURL
		}
		return provider, nil

	case "playwright", "":
		printSetupStep(fmt.Sprintf("Launching %s...", cfg.Browser))
		return browser.New(browser.Config{
			Browser:     cfg.Browser,
			Headless:    cfg.Headless,
			BaseURL:     cfg.BaseURL,
			DriverDir:   config.PlaywrightDriverDir(),
			BrowsersDir: config.BrowsersDir(),
			Install:     cfg.InstallDriver,
		})

	default:
		return nil, fmt.Errorf("unknown driver %q (want playwright or mock)", cfg.Driver)
	}
}

// detectCI reads build metadata from well-known CI environment variables.
func detectCI() *report.CI {
	switch {
	case os.Getenv("GITHUB_ACTIONS") == "true":
		ci := &report.CI{
			Provider: "github",
			BuildID:  os.Getenv("GITHUB_RUN_ID"),
			Branch:   os.Getenv("GITHUB_REF_NAME"),
			Commit:   os.Getenv("GITHUB_SHA"),
		}
		if server, repo := os.Getenv("GITHUB_SERVER_URL"), os.Getenv("GITHUB_REPOSITORY"); server != "" && repo != "" && ci.BuildID != "" {
			ci.BuildURL = fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, ci.BuildID)
		}
		return ci
	case os.Getenv("GITLAB_CI") == "true":
		return &report.CI{
			Provider: "gitlab",
			BuildID:  os.Getenv("CI_PIPELINE_ID"),
			BuildURL: os.Getenv("CI_PIPELINE_URL"),
			Branch:   os.Getenv("CI_COMMIT_REF_NAME"),
			Commit:   os.Getenv("CI_COMMIT_SHA"),
		}
	case os.Getenv("CI") != "":
		return &report.CI{Provider: "generic"}
	}
	return nil
}

func parseArtifactMode(name string) (executor.ArtifactMode, error) {
	switch name {
	case "", "on-failure":
		return executor.ArtifactOnFailure, nil
	case "always":
		return executor.ArtifactAlways, nil
	case "never":
		return executor.ArtifactNever, nil
	}
	return 0, fmt.Errorf("unknown artifacts mode %q (want on-failure, always or never)", name)
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptySlice(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
