package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/fixture"
	"github.com/devicelab-dev/webflow-runner/pkg/flow"
)

func newWidgetEngine(t *testing.T) *ScriptEngine {
	t.Helper()
	se := NewScriptEngine()
	t.Cleanup(se.Close)
	require.NoError(t, se.SetFixture(fixture.New("widget", map[string]string{
		"name":        "Widget",
		"description": "A widget",
		"price":       "9.99",
	})))
	return se
}

func TestScriptEngine_SetVariable(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()

	se.SetVariable("HOST", "shop.local")
	se.SetVariables(map[string]string{"USER": "ada"})

	assert.Equal(t, "shop.local", se.GetVariable("HOST"))
	assert.Equal(t, "ada", se.GetVariable("USER"))
	assert.Equal(t, "", se.GetVariable("MISSING"))
}

func TestScriptEngine_ExpandVariables(t *testing.T) {
	se := newWidgetEngine(t)
	se.SetVariable("HOST", "shop.local")

	tests := []struct {
		input string
		want  string
	}{
		{"${fixture.name}", "Widget"},
		{"${fixture['price']}", "9.99"},
		{"Product: ${fixture.name}", "Product: Widget"},
		{"${fixture.name.toUpperCase()}", "WIDGET"},
		{"https://$HOST/products", "https://shop.local/products"},
		{"${HOST}", "shop.local"},
		{"$HOSTNAME", "$HOSTNAME"},
		{"no variables", "no variables"},
	}

	for _, tt := range tests {
		got, err := se.ExpandVariables(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestScriptEngine_ExpandVariables_FixtureValuesAreLiteral(t *testing.T) {
	t.Setenv("SHOP_SECRET", "leaked")

	se := NewScriptEngine()
	defer se.Close()
	se.ImportSystemEnv()
	require.NoError(t, se.SetFixture(fixture.New("widget", map[string]string{
		"name":  "Widget $SHOP_SECRET",
		"price": "${price}",
	})))

	tests := []struct {
		input string
		want  string
	}{
		{"${fixture.name}", "Widget $SHOP_SECRET"},
		{"${fixture.price}", "${price}"},
		{"$SHOP_SECRET: ${fixture.name}", "leaked: Widget $SHOP_SECRET"},
		{"${fixture.name} / $SHOP_SECRET", "Widget $SHOP_SECRET / leaked"},
		{"${'$' + 'SHOP_SECRET'}", "$SHOP_SECRET"},
	}

	for _, tt := range tests {
		got, err := se.ExpandVariables(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestScriptEngine_ExpandVariables_Unclosed(t *testing.T) {
	se := newWidgetEngine(t)
	se.SetVariable("HOST", "shop.local")

	got, err := se.ExpandVariables("${fixture.name} at $HOST ${broken")
	require.NoError(t, err)
	assert.Equal(t, "Widget at shop.local ${broken", got)
}

func TestScriptEngine_ExpandVariables_Error(t *testing.T) {
	se := newWidgetEngine(t)

	got, err := se.ExpandVariables("${nope.field}")
	assert.Error(t, err)
	assert.Equal(t, "${nope.field}", got)
}

func TestScriptEngine_SetFixture_Nil(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()
	assert.NoError(t, se.SetFixture(nil))
}

func TestExpandDollarVar(t *testing.T) {
	tests := []struct {
		text, name, value, want string
	}{
		{"$A", "A", "1", "1"},
		{"$A-$A", "A", "1", "1-1"},
		{"$AB", "A", "1", "$AB"},
		{"$A_1", "A", "1", "$A_1"},
		{"x $A y", "A", "", "x  y"},
	}
	for _, tt := range tests {
		if got := expandDollarVar(tt.text, tt.name, tt.value); got != tt.want {
			t.Errorf("expandDollarVar(%q, %q, %q) = %q, want %q", tt.text, tt.name, tt.value, got, tt.want)
		}
	}
}

func TestScriptEngine_ExpandStep_DoesNotMutate(t *testing.T) {
	se := newWidgetEngine(t)

	original := typeText("#field-name", "${fixture.name}")
	expanded, err := se.ExpandStep(original)
	require.NoError(t, err)

	typed, ok := expanded.(*flow.TypeStep)
	require.True(t, ok)
	assert.Equal(t, "Widget", typed.Text)
	assert.Equal(t, "${fixture.name}", original.Text)
	assert.NotSame(t, original, typed)
}

func TestScriptEngine_ExpandStep_AllTypes(t *testing.T) {
	se := newWidgetEngine(t)

	steps := []flow.Step{
		navigate("/products/${fixture.name}"),
		locate("[title='${fixture.name}']"),
		click("#${fixture.name}"),
		assertURL("${fixture.name}"),
		assertContains("h2", "${fixture.name}"),
		assertEquals("h2", "${fixture.price}"),
	}
	expanded, idx, err := se.ExpandSteps(steps)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)

	assert.Equal(t, "/products/Widget", expanded[0].(*flow.NavigateStep).Path)
	assert.Equal(t, "[title='Widget']", expanded[1].(*flow.LocateStep).Selector.CSS)
	assert.Equal(t, "#Widget", expanded[2].(*flow.ClickStep).Selector.CSS)
	assert.Equal(t, "Widget", expanded[3].(*flow.AssertURLStep).Contains)
	assert.Equal(t, "Widget", expanded[4].(*flow.AssertContainsStep).Text)
	assert.Equal(t, "9.99", expanded[5].(*flow.AssertEqualsStep).Text)
}

func TestScriptEngine_ExpandSteps_ReportsIndex(t *testing.T) {
	se := newWidgetEngine(t)

	steps := []flow.Step{
		navigate("/"),
		typeText("#field-name", "${undefinedThing.name}"),
	}
	_, idx, err := se.ExpandSteps(steps)

	require.Error(t, err)
	assert.Equal(t, 1, idx)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
