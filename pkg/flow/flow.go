// Package flow handles parsing and representation of YAML web flow files.
package flow

// Flow represents a parsed flow file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (name, fixture, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	Name           string            `yaml:"name"`
	Fixture        string            `yaml:"fixture"` // Fixture name, resolved by the fixture loader
	BaseURL        string            `yaml:"baseUrl"` // Overrides the runner base URL for this flow
	Tags           []string          `yaml:"tags"`
	Env            map[string]string `yaml:"env"`
	Requires       []string          `yaml:"requires"`       // Fixture fields required besides the ones referenced by steps
	Timeout        int               `yaml:"timeout"`        // Whole-run deadline in ms
	CommandTimeout int               `yaml:"commandTimeout"` // Per-step bounded wait in ms
}

// DisplayName returns the configured name, falling back to the source path.
func (f *Flow) DisplayName() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	return f.SourcePath
}
