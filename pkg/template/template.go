// Package template renders strings containing `${name}` placeholders against
// a [props.Map].
//
// Placeholder names follow the naming rules of regex capture groups:
// an ASCII letter or underscore, followed by ASCII letters, digits or
// underscores. A placeholder whose name is missing from the map is left in
// the output unchanged, so rendering is total and never fails.
package template

import (
	"regexp"
	"slices"
	"strings"

	"github.com/macropower/resc/pkg/props"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Template is an immutable string with `${name}` placeholders.
type Template struct {
	raw string
}

// New creates a new [Template] from its raw source.
func New(raw string) Template {
	return Template{raw: raw}
}

// Ptr creates a new [Template] and returns a pointer to it.
// It is convenient for optional templates.
func Ptr(raw string) *Template {
	t := New(raw)

	return &t
}

// Raw returns the template source.
func (t Template) Raw() string {
	return t.raw
}

// String implements [fmt.Stringer].
func (t Template) String() string {
	return t.raw
}

// Render substitutes every placeholder present in p with its raw value.
// Substituted values are not expanded again. Placeholders with no matching
// property are kept as literal text.
func (t Template) Render(p props.Map) string {
	if !strings.Contains(t.raw, "${") {
		return t.raw
	}

	return placeholderRe.ReplaceAllStringFunc(t.raw, func(ph string) string {
		name := ph[2 : len(ph)-1]
		if v, ok := p[name]; ok {
			return v
		}

		return ph
	})
}

// Placeholders returns the placeholder names in order of first appearance.
func (t Template) Placeholders() []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(t.raw, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}

	return names
}

// Missing returns the placeholder names that have no value in p.
func (t Template) Missing(p props.Map) []string {
	var missing []string
	for _, name := range t.Placeholders() {
		if _, ok := p[name]; !ok {
			missing = append(missing, name)
		}
	}

	return missing
}

// MarshalText implements [encoding.TextMarshaler].
func (t Template) MarshalText() ([]byte, error) {
	return []byte(t.raw), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (t *Template) UnmarshalText(b []byte) error {
	t.raw = string(b)

	return nil
}
