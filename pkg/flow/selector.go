package flow

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Selector addresses one element in the page.
// Exactly one of the fields is normally set; CSS wins over TestID over Text.
type Selector struct {
	CSS    string `yaml:"css"`    // Raw CSS selector
	TestID string `yaml:"testId"` // Value of a data-testid attribute
	Text   string `yaml:"text"`   // Visible text
}

// UnmarshalYAML allows Selector to be unmarshaled from string or struct.
// A plain string is a CSS selector.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.CSS = node.Value
		return nil
	}

	type selectorRaw Selector
	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Selector(raw)
	return nil
}

// IsEmpty returns true if no selector properties are set.
func (s Selector) IsEmpty() bool {
	return s.CSS == "" && s.TestID == "" && s.Text == ""
}

// Query returns the engine query string for the selector.
//
//	css    -> as written
//	testId -> [data-testid="..."]
//	text   -> text=...
func (s Selector) Query() string {
	switch {
	case s.CSS != "":
		return s.CSS
	case s.TestID != "":
		return "[data-testid=" + strconv.Quote(s.TestID) + "]"
	case s.Text != "":
		return "text=" + s.Text
	default:
		return ""
	}
}

// Describe returns a human-readable description.
func (s Selector) Describe() string {
	switch {
	case s.CSS != "":
		return s.CSS
	case s.TestID != "":
		return "testId=" + strconv.Quote(s.TestID)
	case s.Text != "":
		return "text=" + strconv.Quote(s.Text)
	default:
		return ""
	}
}
