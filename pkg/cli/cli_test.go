package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webflow-runner/pkg/executor"
	"github.com/devicelab-dev/webflow-runner/pkg/report"
)

func TestResolveOutputDir_Default(t *testing.T) {
	dir, err := resolveOutputDir("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "reports/") {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	// Should have timestamp subfolder
	parts := strings.Split(dir, "/")
	if len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true)
	if err == nil {
		t.Error("expected error when flatten is used without output")
	}
}

func TestParseEnvVars(t *testing.T) {
	env := parseEnvVars([]string{"USER=admin", "QUERY=a=b", "BROKEN", "EMPTY="})

	if env["USER"] != "admin" {
		t.Errorf("expected USER=admin, got %q", env["USER"])
	}
	if env["QUERY"] != "a=b" {
		t.Errorf("expected value split on first '=', got %q", env["QUERY"])
	}
	if _, ok := env["BROKEN"]; ok {
		t.Error("entries without '=' should be ignored")
	}
	if v, ok := env["EMPTY"]; !ok || v != "" {
		t.Errorf("expected EMPTY to be set to empty string, got %q (ok=%v)", v, ok)
	}
}

func TestBuildEnv_Precedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("A=file\nB=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := buildEnv(
		map[string]string{"A": "config", "B": "config", "C": "config"},
		[]string{envFile},
		[]string{"B=flag"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env["A"] != "file" {
		t.Errorf("env file should override config, got A=%q", env["A"])
	}
	if env["B"] != "flag" {
		t.Errorf("-e should override env file, got B=%q", env["B"])
	}
	if env["C"] != "config" {
		t.Errorf("config value should survive, got C=%q", env["C"])
	}
}

func TestBuildEnv_MissingFile(t *testing.T) {
	if _, err := buildEnv(nil, []string{filepath.Join(t.TempDir(), "missing.env")}, nil); err == nil {
		t.Error("expected error for missing env file")
	}
}

func TestParseArtifactMode(t *testing.T) {
	tests := []struct {
		name    string
		want    executor.ArtifactMode
		wantErr bool
	}{
		{"", executor.ArtifactOnFailure, false},
		{"on-failure", executor.ArtifactOnFailure, false},
		{"always", executor.ArtifactAlways, false},
		{"never", executor.ArtifactNever, false},
		{"sometimes", 0, true},
	}

	for _, tt := range tests {
		got, err := parseArtifactMode(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseArtifactMode(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseArtifactMode(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1500, "1.5s"},
		{59999, "60.0s"},
		{61000, "1m 1s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("expected b, got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if got := firstNonZero(0, 3, 5); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := firstNonEmptySlice(nil, []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("expected [x], got %v", got)
	}
}

func TestDetectCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_RUN_ID", "42")
	t.Setenv("GITHUB_REF_NAME", "main")
	t.Setenv("GITHUB_SHA", "abc123")
	t.Setenv("GITHUB_SERVER_URL", "https://github.com")
	t.Setenv("GITHUB_REPOSITORY", "acme/shop")

	ci := detectCI()
	if ci == nil {
		t.Fatal("expected CI info")
	}
	if ci.Provider != "github" || ci.BuildID != "42" || ci.Branch != "main" || ci.Commit != "abc123" {
		t.Errorf("unexpected CI info: %+v", ci)
	}
	if ci.BuildURL != "https://github.com/acme/shop/actions/runs/42" {
		t.Errorf("unexpected build URL: %s", ci.BuildURL)
	}
}

func TestDetectCI_None(t *testing.T) {
	for _, key := range []string{"GITHUB_ACTIONS", "GITLAB_CI", "CI"} {
		t.Setenv(key, "")
	}
	if ci := detectCI(); ci != nil {
		t.Errorf("expected no CI info, got %+v", ci)
	}
}

// captureStderr redirects warnings into a buffer for the test.
func captureStderr(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevColors := stderr, colorsEnabled
	stderr, colorsEnabled = &buf, false
	t.Cleanup(func() { stderr, colorsEnabled = prevOut, prevColors })
	return &buf
}

func TestPrintWarning(t *testing.T) {
	buf := captureStderr(t)

	printWarning("failed to print unified output: %v", errors.New("no report"))

	if got := buf.String(); got != "  ⚠ Warning: failed to print unified output: no report\n" {
		t.Errorf("unexpected warning output %q", got)
	}
}

func TestGlobalFlags(t *testing.T) {
	want := map[string]bool{
		"driver": false, "browser": false, "base-url": false,
		"headless": false, "verbose": false, "no-ansi": false,
	}
	for _, f := range GlobalFlags {
		for _, name := range f.Names() {
			if _, ok := want[name]; ok {
				want[name] = true
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("global flag %q not registered", name)
		}
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := NewApp()
	for _, name := range []string{"test", "validate", "report"} {
		if app.Command(name) == nil {
			t.Errorf("command %q not registered", name)
		}
	}
}

// ===========================================
// End-to-end runs against the mock driver
// ===========================================

const widgetFixtureJSON = `{"name": "Widget", "description": "A widget", "price": "9.99"}`

const addWidgetFlow = `name: Add widget
fixture: widget
---
- navigate: /
- click: ".mat-flat-button.mat-primary"
- type: { selector: "#field-name", text: "${fixture.name}" }
- type: { selector: "#field-description", text: "${fixture.description}" }
- type: { selector: "#field-price", text: "${fixture.price}" }
- click: '[type="submit"]'
- assertUrl: /products/1
- assertContains: { selector: h2, text: "${fixture.name}" }
`

const wrongHeadingFlow = `name: Wrong heading
fixture: widget
---
- navigate: /
- click: ".mat-flat-button.mat-primary"
- type: { selector: "#field-name", text: "${fixture.name}" }
- click: '[type="submit"]'
- assertEquals: { selector: h2, text: "Gadget" }
- assertUrl: /products/1
`

type workspace struct {
	dir      string
	fixtures string
	output   string
}

func newWorkspace(t *testing.T, flows map[string]string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:      dir,
		fixtures: filepath.Join(dir, "fixtures"),
		output:   filepath.Join(dir, "out"),
	}
	if err := os.MkdirAll(ws.fixtures, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.fixtures, "widget.json"), []byte(widgetFixtureJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, content := range flows {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return ws
}

func (ws workspace) path(name string) string {
	return filepath.Join(ws.dir, name)
}

func runApp(args ...string) error {
	return NewApp().Run(append([]string{"webflow-runner"}, args...))
}

func (ws workspace) runMock(flows ...string) error {
	args := []string{
		"--driver", "mock", "--no-ansi",
		"test",
		"--output", ws.output, "--flatten",
		"--fixtures", ws.fixtures,
		"--command-timeout", "300",
	}
	for _, f := range flows {
		args = append(args, ws.path(f))
	}
	return runApp(args...)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

func TestTestCommand_MockPasses(t *testing.T) {
	ws := newWorkspace(t, map[string]string{"add-widget.yaml": addWidgetFlow})

	if err := ws.runMock("add-widget.yaml"); err != nil {
		t.Fatalf("expected run to pass, got %v", err)
	}

	index, flows, err := report.ReadReport(ws.output)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if index.Status != report.StatusPassed {
		t.Errorf("expected passed run, got %s", index.Status)
	}
	if len(flows) != 1 || len(flows[0].Commands) != 8 {
		t.Fatalf("expected 1 flow with 8 commands, got %+v", flows)
	}
	if index.Browser.Driver != "mock" {
		t.Errorf("expected mock driver in report, got %q", index.Browser.Driver)
	}
	if _, err := os.Stat(filepath.Join(ws.output, "webflow-runner.log")); err != nil {
		t.Errorf("expected log file: %v", err)
	}
}

func TestTestCommand_MockFailureExitsOne(t *testing.T) {
	ws := newWorkspace(t, map[string]string{
		"add-widget.yaml":    addWidgetFlow,
		"wrong-heading.yaml": wrongHeadingFlow,
	})

	err := ws.runMock("add-widget.yaml", "wrong-heading.yaml")
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit code 1, got %d (%v)", code, err)
	}

	index, flows, err := report.ReadReport(ws.output)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if index.Summary.Passed != 1 || index.Summary.Failed != 1 {
		t.Errorf("expected 1 passed and 1 failed, got %+v", index.Summary)
	}

	var failed *report.FlowDetail
	for i := range flows {
		if flows[i].Name == "Wrong heading" {
			failed = &flows[i]
		}
	}
	if failed == nil {
		t.Fatal("wrong-heading flow missing from report")
	}
	if failed.Failure == nil || failed.Failure.Step != 5 || failed.Failure.Kind != "assertion_mismatch" {
		t.Errorf("unexpected failure: %+v", failed.Failure)
	}
	if failed.Commands[5].Status != report.StatusSkipped {
		t.Errorf("expected step after failure to be skipped, got %s", failed.Commands[5].Status)
	}
}

func TestTestCommand_MissingFixtureFieldFailsValidation(t *testing.T) {
	ws := newWorkspace(t, map[string]string{
		"sku.yaml": "fixture: widget\n---\n- navigate: /\n- type: { selector: \"#field-name\", text: \"${fixture.sku}\" }\n",
	})

	buf := captureStderr(t)

	err := ws.runMock("sku.yaml")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "sku") {
		t.Errorf("expected validation errors on stderr naming the field, got %q", buf.String())
	}
	if _, statErr := os.Stat(filepath.Join(ws.output, "report.json")); statErr == nil {
		t.Error("no report should be written when validation fails")
	}
}

func TestTestCommand_NoArgs(t *testing.T) {
	if err := runApp("test"); err == nil {
		t.Error("expected error without flow paths")
	}
}

func TestTestCommand_UnknownDriver(t *testing.T) {
	ws := newWorkspace(t, map[string]string{"add-widget.yaml": addWidgetFlow})

	err := runApp("--driver", "selenium", "test",
		"--output", ws.output, "--flatten", "--fixtures", ws.fixtures, ws.path("add-widget.yaml"))
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("expected unknown driver error, got %v", err)
	}
}

func TestTestCommand_BadArtifacts(t *testing.T) {
	ws := newWorkspace(t, map[string]string{"add-widget.yaml": addWidgetFlow})

	err := runApp("--driver", "mock", "test", "--artifacts", "sometimes",
		"--output", ws.output, "--flatten", ws.path("add-widget.yaml"))
	if err == nil || !strings.Contains(err.Error(), "artifacts") {
		t.Errorf("expected artifacts error, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	ws := newWorkspace(t, map[string]string{"add-widget.yaml": addWidgetFlow})

	if err := runApp("validate", "--fixtures", ws.fixtures, ws.path("add-widget.yaml")); err != nil {
		t.Errorf("expected valid flow, got %v", err)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	ws := newWorkspace(t, map[string]string{
		"broken.yaml": "- hover: button\n",
	})

	err := runApp("validate", "--fixtures", ws.fixtures, ws.path("broken.yaml"))
	if code := exitCode(err); code != 1 {
		t.Errorf("expected exit code 1, got %d (%v)", code, err)
	}
}

func TestReportCommand(t *testing.T) {
	ws := newWorkspace(t, map[string]string{"add-widget.yaml": addWidgetFlow})
	if err := ws.runMock("add-widget.yaml"); err != nil {
		t.Fatalf("run: %v", err)
	}

	if err := runApp("--no-ansi", "report", ws.output); err != nil {
		t.Errorf("expected report of passing run to succeed, got %v", err)
	}
	if err := runApp("report", "--recover", ws.output); err != nil {
		t.Errorf("recover on a finished report should be a no-op, got %v", err)
	}
}

func TestReportCommand_Missing(t *testing.T) {
	if err := runApp("report", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing report")
	}
}
