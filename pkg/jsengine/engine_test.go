package jsengine

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	engine := New()
	defer engine.Close()

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("username", "john")
	engine.SetVariable("count", 42)

	result, err := engine.EvalString("username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "john" {
		t.Errorf("expected 'john', got %q", result)
	}

	result, err = engine.EvalString("count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "42" {
		t.Errorf("expected '42', got %q", result)
	}
}

func TestSetVariables(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariables(map[string]interface{}{"BASE": "/shop", "ID": "7"})

	result, err := engine.EvalString("BASE + '/products/' + ID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "/shop/products/7" {
		t.Errorf("expected '/shop/products/7', got %q", result)
	}
}

func TestSetFixture(t *testing.T) {
	engine := New()
	defer engine.Close()

	if err := engine.SetFixture(map[string]string{
		"name":       "Widget",
		"price":      "9.99",
		"unit price": "1.00",
	}); err != nil {
		t.Fatalf("SetFixture() error = %v", err)
	}

	tests := []struct {
		expr     string
		expected string
	}{
		{"fixture.name", "Widget"},
		{`fixture["price"]`, "9.99"},
		{"fixture['unit price']", "1.00"},
		{"fixture.name.toUpperCase()", "WIDGET"},
		{"fixture.missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := engine.EvalString(tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("EvalString(%q) = %q, want %q", tt.expr, got, tt.expected)
			}
		})
	}
}

func TestSetFixture_Frozen(t *testing.T) {
	engine := New()
	defer engine.Close()

	if err := engine.SetFixture(map[string]string{"name": "Widget"}); err != nil {
		t.Fatalf("SetFixture() error = %v", err)
	}

	if _, err := engine.Eval("fixture.name = 'Gadget'"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := engine.EvalString("fixture.name")
	if got != "Widget" {
		t.Errorf("fixture.name = %q after assignment, want %q", got, "Widget")
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("name", "John")
	engine.SetVariable("age", 30)
	if err := engine.SetFixture(map[string]string{"name": "Widget"}); err != nil {
		t.Fatalf("SetFixture() error = %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "Hello ${name}", "Hello John"},
		{"expression", "Age: ${age + 5}", "Age: 35"},
		{"multiple vars", "${name} is ${age}", "John is 30"},
		{"no vars", "plain text", "plain text"},
		{"string concat", "${name + ' Doe'}", "John Doe"},
		{"nested braces", "${({a: 1}).a}", "1"},
		{"fixture field", "Product: ${fixture.name}", "Product: Widget"},
		{"unterminated", "${name", "${name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestExpandVariablesWithError(t *testing.T) {
	engine := New()
	defer engine.Close()
	engine.SetVariable("name", "John")

	result, err := engine.ExpandVariables("Value: ${undefinedVar} by ${name}")
	if err == nil {
		t.Fatal("expected error for undefined variable")
	}
	if !strings.Contains(err.Error(), "undefinedVar") {
		t.Errorf("error %q does not name the expression", err)
	}
	if result != "Value: ${undefinedVar} by John" {
		t.Errorf("expected failed expression left as written, got %q", result)
	}
}

func TestConsoleLog(t *testing.T) {
	engine := New()
	defer engine.Close()

	// Just make sure it doesn't panic
	_, err := engine.Eval(`
		console.log("test message");
		console.error("error message");
		console.warn("warning message");
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJSON(t *testing.T) {
	engine := New()
	defer engine.Close()

	_, err := engine.Eval(`
		var data = json('{"name": "test", "value": 123}');
		parsedName = data.name;
		parsedValue = data.value;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, _ := engine.EvalString("parsedName")
	if name != "test" {
		t.Errorf("expected 'test', got %q", name)
	}

	value, _ := engine.EvalString("parsedValue")
	if value != "123" {
		t.Errorf("expected '123', got %q", value)
	}
}

func TestTemplateLiterals(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("name", "World")

	result, err := engine.EvalString("`Hello, ${name}!`")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello, World!" {
		t.Errorf("expected 'Hello, World!', got %q", result)
	}
}

func TestEvalError(t *testing.T) {
	engine := New()
	defer engine.Close()

	_, err := engine.Eval("undefinedVariable.property")
	if err == nil {
		t.Error("expected error for undefined variable")
	}
}

func TestClose_Idempotent(t *testing.T) {
	engine := New()
	engine.Close()
	engine.Close()
}
