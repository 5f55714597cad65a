// Package fixture loads named test-data fixtures into flat string mappings.
package fixture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
)

// DefaultDir is the fixtures directory used when none is configured.
const DefaultDir = "fixtures"

// extensions are tried in order after the bare name.
var extensions = []string{".json", ".yaml", ".yml"}

// Fixture is an immutable mapping from field name to field value.
type Fixture struct {
	name   string
	path   string
	fields map[string]string
}

// New builds a fixture from fields. The map is copied.
func New(name string, fields map[string]string) *Fixture {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &Fixture{name: name, fields: cp}
}

// Name returns the name the fixture was loaded by.
func (f *Fixture) Name() string { return f.name }

// Path returns the file the fixture was read from, empty for in-memory fixtures.
func (f *Fixture) Path() string { return f.path }

// Len returns the number of fields.
func (f *Fixture) Len() int { return len(f.fields) }

// Get returns the value of field, or "" if absent.
func (f *Fixture) Get(field string) string { return f.fields[field] }

// Lookup returns the value of field and whether it exists.
func (f *Fixture) Lookup(field string) (string, bool) {
	v, ok := f.fields[field]
	return v, ok
}

// Has reports whether field exists.
func (f *Fixture) Has(field string) bool {
	_, ok := f.fields[field]
	return ok
}

// Fields returns the sorted field names.
func (f *Fixture) Fields() []string {
	names := make([]string, 0, len(f.fields))
	for k := range f.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the fields.
func (f *Fixture) Map() map[string]string {
	cp := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		cp[k] = v
	}
	return cp
}

// Equal reports whether both fixtures hold the same fields and values.
func (f *Fixture) Equal(other *Fixture) bool {
	if f == nil || other == nil {
		return f == other
	}
	if len(f.fields) != len(other.fields) {
		return false
	}
	for k, v := range f.fields {
		if ov, ok := other.fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Require fails with FixtureMalformed listing every field that is missing.
func (f *Fixture) Require(fields ...string) error {
	var missing []string
	for _, name := range fields {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return core.ErrFixtureMalformed.
		WithMessage(fmt.Sprintf("fixture %q is missing required fields: %s", f.name, strings.Join(missing, ", "))).
		WithDetails(map[string]interface{}{"fixture": f.name, "missing": missing})
}

// Loader resolves fixture names inside a directory.
type Loader struct {
	Dir string
}

// NewLoader creates a loader rooted at dir (DefaultDir if empty).
func NewLoader(dir string) *Loader {
	if dir == "" {
		dir = DefaultDir
	}
	return &Loader{Dir: dir}
}

// Resolve returns the file a fixture name maps to. The bare name is tried
// first, then name.json, name.yaml and name.yml.
func (l *Loader) Resolve(name string) (string, error) {
	if name == "" {
		return "", core.ErrFixtureNotFound.WithMessage("fixture name is empty")
	}

	base := filepath.Join(l.Dir, filepath.FromSlash(name))
	candidates := []string{base}
	if filepath.Ext(name) == "" {
		for _, ext := range extensions {
			candidates = append(candidates, base+ext)
		}
	}

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", core.ErrFixtureNotFound.
				WithMessage(fmt.Sprintf("fixture %q: cannot stat %s", name, path)).
				WithCause(err)
		}
	}

	return "", core.ErrFixtureNotFound.
		WithMessage(fmt.Sprintf("fixture %q not found in %s", name, l.Dir)).
		WithDetails(map[string]interface{}{"fixture": name, "tried": candidates})
}

// Load reads and parses the named fixture. It has no side effects beyond
// the read, so repeated loads return equal fixtures.
func (l *Loader) Load(name string) (*Fixture, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path resolved inside the fixtures directory
	if err != nil {
		return nil, core.ErrFixtureNotFound.
			WithMessage(fmt.Sprintf("fixture %q: read failed", name)).
			WithCause(err)
	}

	fields, err := Parse(data)
	if err != nil {
		return nil, core.ErrFixtureMalformed.
			WithMessage(fmt.Sprintf("fixture %q (%s): %v", name, path, err)).
			WithCause(err)
	}

	f := New(name, fields)
	f.path = path
	return f, nil
}

// Parse decodes JSON or YAML content into a flat string mapping.
// Scalars keep the literal text written in the source, so 9.99 stays "9.99".
func Parse(data []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of fields", root.Line)
	}

	fields := make(map[string]string, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: field name must be a string", key.Line)
		}
		if value.Kind == yaml.AliasNode && value.Alias != nil {
			value = value.Alias
		}
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: field %q must be a scalar", value.Line, key.Value)
		}
		if value.Tag == "!!null" {
			return nil, fmt.Errorf("line %d: field %q is null", value.Line, key.Value)
		}
		if _, dup := fields[key.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate field %q", key.Line, key.Value)
		}
		fields[key.Value] = value.Value
	}
	return fields, nil
}
