// Package validator checks web flow files before execution.
// It parses all files upfront and reports every problem it can find
// without touching a browser.
package validator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/webflow-runner/pkg/fixture"
	"github.com/devicelab-dev/webflow-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 1-based; 0 for file-level problems
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step %d: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of flow file paths in execution order.
	Files []string
	// Flows holds the parsed flows, parallel to Files.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
	fixtures    *fixture.Loader
}

// New creates a new Validator. fixtures may be nil to skip fixture checks.
func New(includeTags, excludeTags []string, fixtures *fixture.Loader) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
		fixtures:    fixtures,
	}
}

// Validate validates a file or directory.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}
	v.validatePath(path, result)
	return result
}

// ValidateAll validates several files or directories into one result.
func (v *Validator) ValidateAll(paths []string) *Result {
	result := &Result{}
	seen := make(map[string]bool)
	for _, path := range paths {
		r := &Result{}
		v.validatePath(path, r)
		for i, file := range r.Files {
			if seen[file] {
				continue
			}
			seen[file] = true
			result.Files = append(result.Files, file)
			result.Flows = append(result.Flows, r.Flows[i])
		}
		result.Errors = append(result.Errors, r.Errors...)
	}
	return result
}

func (v *Validator) validatePath(path string, result *Result) {
	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return
	}

	var files []string
	if info.IsDir() {
		files, err = v.collectFlowFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		v.validateFile(file, result)
	}
}

// collectFlowFiles finds all .yaml/.yml files in a directory, skipping the
// fixtures directory and hidden directories.
func (v *Validator) collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && v.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func (v *Validator) skipDir(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || name == fixture.DefaultDir {
		return true
	}
	if v.fixtures != nil {
		if abs, err := filepath.Abs(path); err == nil {
			if fixAbs, err := filepath.Abs(v.fixtures.Dir); err == nil && abs == fixAbs {
				return true
			}
		}
	}
	return false
}

// validateFile parses a single file and checks its steps and fixture.
func (v *Validator) validateFile(filePath string, result *Result) {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}

	before := len(result.Errors)
	for i, step := range f.Steps {
		if msg := checkStep(step); msg != "" {
			result.Errors = append(result.Errors, &ValidationError{File: filePath, Step: i + 1, Message: msg})
		}
	}
	if err := v.checkFixture(f); err != nil {
		result.Errors = append(result.Errors, &ValidationError{File: filePath, Message: err.Error()})
	}
	if f.Config.Timeout < 0 || f.Config.CommandTimeout < 0 {
		result.Errors = append(result.Errors, &ValidationError{File: filePath, Message: "timeouts must not be negative"})
	}

	if len(result.Errors) == before {
		result.Files = append(result.Files, filePath)
		result.Flows = append(result.Flows, f)
	}
}

// checkStep returns a message describing what is wrong with step, or "".
func checkStep(step flow.Step) string {
	if step.Timeout() < 0 {
		return fmt.Sprintf("%s: timeout must not be negative", step.Type())
	}

	switch s := step.(type) {
	case *flow.NavigateStep:
		if s.Path == "" {
			return "navigate: path is empty"
		}
	case *flow.AssertURLStep:
		if s.Contains == "" {
			return "assertUrl: expected fragment is empty"
		}
	case *flow.AssertContainsStep:
		if s.Text == "" {
			return "assertContains: expected text is empty"
		}
	case *flow.AssertEqualsStep:
		if s.Text == "" {
			return "assertEquals: expected text is empty"
		}
	}

	if sel, ok := flow.SelectorOf(step); ok && sel.IsEmpty() {
		return fmt.Sprintf("%s: selector is empty", step.Type())
	}
	return ""
}

// checkFixture verifies the fixture exists and has every referenced field.
func (v *Validator) checkFixture(f *flow.Flow) error {
	fields := flow.FixtureFields(f)
	if f.Config.Fixture == "" {
		if len(fields) > 0 {
			return fmt.Errorf("references fixture fields %s but declares no fixture", strings.Join(fields, ", "))
		}
		return nil
	}
	if v.fixtures == nil {
		return nil
	}

	fx, err := v.fixtures.Load(f.Config.Fixture)
	if err != nil {
		return err
	}
	return fx.Require(fields...)
}
