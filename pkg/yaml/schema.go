package yaml

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaGenerator generates a JSON schema from Go types using
// [github.com/invopop/jsonschema].
type SchemaGenerator struct {
	v       any
	module  string
	dirs    []string
	Indent  string
	Comment bool
}

// NewSchemaGenerator creates a new [SchemaGenerator] for the value v.
// Go doc comments are read from each of dirs, which must be relative to the
// root of the module with the given import path.
func NewSchemaGenerator(v any, module string, dirs ...string) *SchemaGenerator {
	return &SchemaGenerator{
		v:       v,
		module:  module,
		dirs:    dirs,
		Indent:  "  ",
		Comment: len(dirs) > 0,
	}
}

// Generate returns the indented JSON schema.
func (g *SchemaGenerator) Generate() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}

	if g.Comment {
		for _, dir := range g.dirs {
			err := r.AddGoComments(g.module, dir)
			if err != nil {
				return nil, fmt.Errorf("add go comments from %s: %w", dir, err)
			}
		}
	}

	jss := r.Reflect(g.v)
	jss.ID = ""

	data, err := json.MarshalIndent(jss, "", g.Indent)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(data, '\n'), nil
}
