package flow

import (
	"regexp"
	"sort"
)

var (
	exprPattern       = regexp.MustCompile(`\$\{([^}]*)\}`)
	fixtureDotPattern = regexp.MustCompile(`\bfixture\.([A-Za-z_$][A-Za-z0-9_$]*)`)
	fixtureIdxPattern = regexp.MustCompile(`\bfixture\[\s*["']([^"']+)["']\s*\]`)
)

// FixtureFields returns the sorted, de-duplicated fixture fields a flow
// depends on: every ${fixture.x} or ${fixture["x"]} reference in its steps
// plus Config.Requires.
func FixtureFields(f *Flow) []string {
	seen := make(map[string]bool)
	for _, name := range f.Config.Requires {
		if name != "" {
			seen[name] = true
		}
	}
	for _, step := range f.Steps {
		for _, text := range Texts(step) {
			for _, name := range ReferencedFields(text) {
				seen[name] = true
			}
		}
	}

	fields := make([]string, 0, len(seen))
	for name := range seen {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// ReferencedFields returns fixture fields referenced inside ${...}
// expressions of text.
func ReferencedFields(text string) []string {
	var fields []string
	for _, m := range exprPattern.FindAllStringSubmatch(text, -1) {
		expr := m[1]
		for _, fm := range fixtureDotPattern.FindAllStringSubmatch(expr, -1) {
			fields = append(fields, fm[1])
		}
		for _, fm := range fixtureIdxPattern.FindAllStringSubmatch(expr, -1) {
			fields = append(fields, fm[1])
		}
	}
	return fields
}
