// Package config handles workspace configuration for webflow-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
)

// Browsers supported by the playwright driver.
var Browsers = []string{"chromium", "firefox", "webkit"}

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Flow selection
	Flows       []string `yaml:"flows"`       // Glob patterns for flows
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Execution settings
	Env            map[string]string `yaml:"env"`            // Variables exposed to flows
	FixturesDir    string            `yaml:"fixturesDir"`    // Fixture directory, relative to the workspace
	CommandTimeout int               `yaml:"commandTimeout"` // Per-step bounded wait (ms)
	RunTimeout     int               `yaml:"runTimeout"`     // Whole-run deadline per flow (ms)
	Parallel       int               `yaml:"parallel"`       // Concurrent runs
	Artifacts      string            `yaml:"artifacts"`      // on-failure, always, never

	// Browser settings
	BaseURL  string `yaml:"baseUrl"`  // Paths in navigate steps resolve against this
	Browser  string `yaml:"browser"`  // chromium, firefox, webkit
	Headless *bool  `yaml:"headless"` // nil means the CLI default
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// Validate checks value ranges. Zero values mean "use the default".
func (c *Config) Validate() error {
	if c.Browser != "" && !isBrowser(c.Browser) {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown browser %q (want one of %v)", c.Browser, Browsers))
	}
	if c.CommandTimeout < 0 {
		return core.ErrInvalidConfig.WithMessage("commandTimeout must not be negative")
	}
	if c.RunTimeout < 0 {
		return core.ErrInvalidConfig.WithMessage("runTimeout must not be negative")
	}
	if c.Parallel < 0 {
		return core.ErrInvalidConfig.WithMessage("parallel must not be negative")
	}
	switch c.Artifacts {
	case "", "on-failure", "always", "never":
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown artifacts mode %q", c.Artifacts))
	}
	return nil
}

func isBrowser(name string) bool {
	for _, b := range Browsers {
		if b == name {
			return true
		}
	}
	return false
}
