package flow

import (
	"testing"
	"time"
)

func TestBaseStep(t *testing.T) {
	b := &BaseStep{StepType: StepClick, StepLabel: "Submit form", TimeoutMs: 2500}

	if b.Type() != StepClick {
		t.Errorf("Type()=%s, want %s", b.Type(), StepClick)
	}
	if b.Label() != "Submit form" {
		t.Errorf("Label()=%q", b.Label())
	}
	if b.Describe() != "click" {
		t.Errorf("Describe()=%q, want click", b.Describe())
	}
	if b.Timeout() != 2500*time.Millisecond {
		t.Errorf("Timeout()=%v, want 2.5s", b.Timeout())
	}
	if (&BaseStep{}).Timeout() != 0 {
		t.Error("unset timeout should be zero")
	}
}

func TestStep_Describe(t *testing.T) {
	sel := Selector{CSS: "#field-name"}
	tests := []struct {
		step Step
		want string
	}{
		{&NavigateStep{Path: "/"}, "navigate: /"},
		{&LocateStep{Selector: sel}, "locate: #field-name"},
		{&TypeStep{Selector: sel, Text: "Widget"}, `type: "Widget" into #field-name`},
		{&ClickStep{Selector: Selector{TestID: "add"}}, `click: testId="add"`},
		{&AssertURLStep{Contains: "/product-add"}, `assertUrl: "/product-add"`},
		{&AssertContainsStep{Selector: Selector{CSS: "h2"}, Text: "Widget"}, `assertContains: h2 ~ "Widget"`},
		{&AssertEqualsStep{Selector: Selector{CSS: "h2"}, Text: "Widget"}, `assertEquals: h2 == "Widget"`},
	}

	for _, tt := range tests {
		if got := tt.step.Describe(); got != tt.want {
			t.Errorf("Describe()=%q, want %q", got, tt.want)
		}
	}
}

func TestSelectorOf(t *testing.T) {
	sel := Selector{CSS: "h2"}
	withSelector := []Step{
		&LocateStep{Selector: sel},
		&TypeStep{Selector: sel},
		&ClickStep{Selector: sel},
		&AssertContainsStep{Selector: sel},
		&AssertEqualsStep{Selector: sel},
	}
	for _, s := range withSelector {
		got, ok := SelectorOf(s)
		if !ok || got != sel {
			t.Errorf("SelectorOf(%T)=%+v,%v", s, got, ok)
		}
	}

	for _, s := range []Step{&NavigateStep{Path: "/"}, &AssertURLStep{Contains: "/x"}} {
		if _, ok := SelectorOf(s); ok {
			t.Errorf("SelectorOf(%T) should report no selector", s)
		}
	}
}

func TestTexts(t *testing.T) {
	step := &TypeStep{Selector: Selector{CSS: "#f"}, Text: "${fixture.name}"}
	texts := Texts(step)

	found := false
	for _, s := range texts {
		if s == "${fixture.name}" {
			found = true
		}
	}
	if !found {
		t.Errorf("Texts() = %v, missing step text", texts)
	}

	if got := Texts(&NavigateStep{Path: "/p"}); len(got) != 1 || got[0] != "/p" {
		t.Errorf("Texts(navigate) = %v", got)
	}
}
