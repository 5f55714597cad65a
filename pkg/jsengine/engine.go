// Package jsengine evaluates ${...} expressions in web flow files.
package jsengine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/webflow-runner/pkg/logger"
)

// FixtureGlobal is the name of the global object holding fixture fields.
const FixtureGlobal = "fixture"

// Engine wraps a goja runtime. One engine serves one run.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	mu        sync.Mutex
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
	}

	e.setupBuiltins()
	return e
}

// setupBuiltins registers all built-in functions and objects
func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.runtime.Set("json", e.jsonFunc())
}

// setupConsole routes console.log, console.warn and console.error to the run log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(logf func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}
			logf("js: %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper function
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}

		str := call.Arguments[0].String()

		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}

		return result
	}
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// SetFixture exposes fields as a frozen `fixture` object, so both
// fixture.name and fixture["name"] resolve.
func (e *Engine) SetFixture(fields map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	obj := e.runtime.NewObject()
	for k, v := range fields {
		if err := obj.Set(k, v); err != nil {
			return fmt.Errorf("set fixture field %q: %w", k, err)
		}
	}

	freeze, ok := goja.AssertFunction(e.runtime.Get("Object").ToObject(e.runtime).Get("freeze"))
	if ok {
		if _, err := freeze(goja.Undefined(), obj); err != nil {
			return fmt.Errorf("freeze fixture: %w", err)
		}
	}

	e.variables[FixtureGlobal] = fields
	return e.runtime.Set(FixtureGlobal, obj)
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}

	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}

	if result == nil {
		return "", nil
	}

	return fmt.Sprintf("%v", result), nil
}

// ExpandVariables expands ${...} expressions in a string using JS evaluation.
// An expression that fails to evaluate is left as written and its error
// is returned after the rest of the text has been expanded.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0
	var firstErr error

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		// Find matching }
		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			if result[end] == '{' {
				depth++
			} else if result[end] == '}' {
				depth--
			}
			end++
		}

		if depth != 0 {
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]

		value, err := e.EvalString(expr)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("expand ${%s}: %w", expr, err)
			}
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, firstErr
}

// Close stops any script still running on the engine.
// Safe to call multiple times.
func (e *Engine) Close() {
	e.runtime.Interrupt("engine closed")
}
