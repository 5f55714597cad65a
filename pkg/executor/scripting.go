package executor

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/fixture"
	"github.com/devicelab-dev/webflow-runner/pkg/flow"
	"github.com/devicelab-dev/webflow-runner/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// ScriptEngine handles variable management and ${...} expansion for one run.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// SetFixture exposes the fixture's fields as the `fixture` object.
func (se *ScriptEngine) SetFixture(fx *fixture.Fixture) error {
	if fx == nil {
		return nil
	}
	return se.js.SetFixture(fx.Map())
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
// $VAR is only replaced in the literal text around ${...} expressions,
// never inside the values those expressions produce.
func (se *ScriptEngine) ExpandVariables(text string) (string, error) {
	var b strings.Builder
	rest := text

	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			break
		}
		end := closingBrace(rest, start+2)
		if end == -1 {
			break
		}

		b.WriteString(se.expandDollarVars(rest[:start]))

		value, err := se.js.ExpandVariables(rest[start : end+1])
		if err != nil {
			return text, err
		}
		b.WriteString(value)
		rest = rest[end+1:]
	}

	b.WriteString(se.expandDollarVars(rest))
	return b.String(), nil
}

// closingBrace returns the index of the brace closing the expression that
// starts at from, or -1 if it is never closed.
func closingBrace(text string, from int) int {
	depth := 1
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// expandDollarVars replaces every known $VAR in literal text.
// Longest names go first so $HOST_NAME is not split by $HOST.
func (se *ScriptEngine) expandDollarVars(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Check if followed by alphanumeric (would be different variable)
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// ExpandStep returns a copy of step with variables expanded in all of its
// user-supplied strings. The original step is never modified.
func (se *ScriptEngine) ExpandStep(step flow.Step) (flow.Step, error) {
	var err error
	expand := func(s string) string {
		if err != nil || s == "" {
			return s
		}
		var out string
		out, err = se.ExpandVariables(s)
		return out
	}
	expandSel := func(sel flow.Selector) flow.Selector {
		return flow.Selector{
			CSS:    expand(sel.CSS),
			TestID: expand(sel.TestID),
			Text:   expand(sel.Text),
		}
	}

	var out flow.Step
	switch s := step.(type) {
	case *flow.NavigateStep:
		c := *s
		c.Path = expand(c.Path)
		out = &c
	case *flow.LocateStep:
		c := *s
		c.Selector = expandSel(c.Selector)
		out = &c
	case *flow.TypeStep:
		c := *s
		c.Selector = expandSel(c.Selector)
		c.Text = expand(c.Text)
		out = &c
	case *flow.ClickStep:
		c := *s
		c.Selector = expandSel(c.Selector)
		out = &c
	case *flow.AssertURLStep:
		c := *s
		c.Contains = expand(c.Contains)
		out = &c
	case *flow.AssertContainsStep:
		c := *s
		c.Selector = expandSel(c.Selector)
		c.Text = expand(c.Text)
		out = &c
	case *flow.AssertEqualsStep:
		c := *s
		c.Selector = expandSel(c.Selector)
		c.Text = expand(c.Text)
		out = &c
	default:
		return step, nil
	}

	if err != nil {
		return nil, core.ErrInvalidConfig.
			WithMessage("expand " + step.Describe()).
			WithCause(err)
	}
	return out, nil
}

// ExpandSteps expands every step. On error it returns the 0-based index
// of the offending step.
func (se *ScriptEngine) ExpandSteps(steps []flow.Step) ([]flow.Step, int, error) {
	out := make([]flow.Step, len(steps))
	for i, step := range steps {
		expanded, err := se.ExpandStep(step)
		if err != nil {
			return nil, i, err
		}
		out[i] = expanded
	}
	return out, -1, nil
}
