package assertion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/driver/mock"
)

func detailPage(t *testing.T, heading string) *mock.Page {
	t.Helper()
	app := mock.App{
		"/products/1": {
			Nodes: []*mock.Node{
				{Queries: []string{"h2"}, Tag: "h2", Text: heading},
			},
		},
	}
	p := mock.NewPage(app, "")
	require.NoError(t, p.Navigate(context.Background(), "/products/1"))
	return p
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		mode     Mode
		want     bool
	}{
		{"contains substring", "Product: Widget", "Widget", Contains, true},
		{"contains whole", "Widget", "Widget", Contains, true},
		{"contains missing", "Product: Gadget", "Widget", Contains, false},
		{"contains is case sensitive", "Product: widget", "Widget", Contains, false},
		{"equals exact", "Widget", "Widget", Equals, true},
		{"equals trims whitespace", "  Widget\n", "Widget", Equals, true},
		{"equals rejects substring", "Product: Widget", "Widget", Equals, false},
		{"empty expected is contained in any text", "anything", "", Contains, true},
		{"empty expected is contained in empty text", "", "", Contains, true},
		{"empty expected equals blank text", "  \n", "", Equals, true},
		{"empty expected does not equal text", "Widget", "", Equals, false},
		{"unknown mode", "Widget", "Widget", Mode(7), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.actual, tt.expected, tt.mode))
		})
	}
}

func TestMatch_ContainsProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prefix := rapid.String().Draw(rt, "prefix")
		expected := rapid.StringN(1, 16, -1).Draw(rt, "expected")
		suffix := rapid.String().Draw(rt, "suffix")

		if !Match(prefix+expected+suffix, expected, Contains) {
			rt.Fatalf("%q should contain %q", prefix+expected+suffix, expected)
		}
		if !Match(prefix+suffix, "", Contains) {
			rt.Fatalf("%q should contain the empty string", prefix+suffix)
		}
	})
}

func TestMatch_ContainsAgreesWithSubstring(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		actual := rapid.StringMatching(`[ab ]{0,12}`).Draw(rt, "actual")
		expected := rapid.StringMatching(`[ab]{1,4}`).Draw(rt, "expected")

		want := false
		for i := 0; i+len(expected) <= len(actual); i++ {
			if actual[i:i+len(expected)] == expected {
				want = true
				break
			}
		}
		if got := Match(actual, expected, Contains); got != want {
			rt.Fatalf("Match(%q, %q, Contains) = %v, want %v", actual, expected, got, want)
		}
	})
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "contains", Contains.String())
	assert.Equal(t, "equals", Equals.String())
	assert.Equal(t, "unknown", Mode(9).String())
}

func TestChecker_Check(t *testing.T) {
	page := detailPage(t, "Product: Widget")
	c := NewChecker(nil)
	ctx := context.Background()

	ok, err := c.Check(ctx, page, "h2", "Widget", Contains)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check(ctx, page, "h2", "Widget", Equals)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Check(ctx, page, "h2", "Product: Widget", Equals)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChecker_Inspect_ReturnsActual(t *testing.T) {
	page := detailPage(t, "Product: Gadget")

	actual, ok, err := NewChecker(nil).Inspect(context.Background(), page, "h2", "Widget", Contains)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Product: Gadget", actual)
}

func TestChecker_ElementNotFound(t *testing.T) {
	page := detailPage(t, "Product: Widget")

	ok, err := NewChecker(nil).Check(context.Background(), page, "h3", "Widget", Contains)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
}

func TestChecker_DoesNotMutatePage(t *testing.T) {
	page := detailPage(t, "Product: Widget")
	before := page.Calls()

	for i := 0; i < 3; i++ {
		_, err := NewChecker(nil).Check(context.Background(), page, "h2", "Widget", Contains)
		require.NoError(t, err)
	}

	after := page.Calls()
	assert.Equal(t, before.Actions(), after.Actions())
	assert.Equal(t, "http://mock.local/products/1", page.URL())
}

type countingLocator struct {
	calls int
}

func (l *countingLocator) Locate(ctx context.Context, page core.Page, selector string) (core.Element, error) {
	l.calls++
	return page.FindElement(ctx, selector)
}

func TestChecker_UsesLocator(t *testing.T) {
	page := detailPage(t, "Product: Widget")
	loc := &countingLocator{}

	_, err := NewChecker(loc).Check(context.Background(), page, "h2", "Widget", Contains)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.calls)
}

func TestMismatch(t *testing.T) {
	err := Mismatch("h2", "Widget", "Product: Gadget", Contains)

	assert.True(t, errors.Is(err, core.ErrAssertionMismatch))
	assert.Equal(t, core.ErrCategoryAssertion, err.Category)
	assert.Contains(t, err.Error(), `expected text to contain "Widget"`)
	assert.Contains(t, err.Error(), `got "Product: Gadget"`)
	assert.Equal(t, "Product: Gadget", err.Details["actual"])
	assert.Equal(t, "contains", err.Details["mode"])

	eq := Mismatch("h2", "Widget", "Product: Widget", Equals)
	assert.Contains(t, eq.Error(), `expected text to equal "Widget"`)
}
