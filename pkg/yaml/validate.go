package yaml

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates data against a JSON schema.
// Uses [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new [Validator] with the provided JSON schema data.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	var schema any

	err := json.Unmarshal(schemaData, &schema)
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	err = compiler.AddResource(url, schema)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	jss, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: jss}, nil
}

// MustNewValidator creates a new [Validator] and panics on error.
func MustNewValidator(url string, schemaData []byte) *Validator {
	v, err := NewValidator(url, schemaData)
	if err != nil {
		panic(err)
	}

	return v
}

// Validate validates decoded YAML data against the schema. Failures are
// returned as an [*Error] pointing at the most specific failing node.
func (s *Validator) Validate(data any) error {
	err := s.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return &Error{
		Err:  validationErr,
		Path: buildPathFromLocation(findMostSpecificLocation(validationErr)),
	}
}

// findMostSpecificLocation recursively searches through all causes to find the
// one with the longest InstanceLocation.
func findMostSpecificLocation(err *jsonschema.ValidationError) []string {
	longest := err.InstanceLocation

	// Recursively check all causes.
	for _, cause := range err.Causes {
		candidateLocation := findMostSpecificLocation(cause)
		if len(candidateLocation) > len(longest) {
			longest = candidateLocation
		}
	}

	return longest
}

// buildPathFromLocation converts an InstanceLocation slice to a [yaml.Path].
// Numeric segments are treated as sequence indexes.
func buildPathFromLocation(location []string) *yaml.Path {
	current := NewPathBuilder().Root()

	for _, part := range location {
		index, err := strconv.ParseUint(part, 10, 0)
		if err == nil {
			current = current.Index(uint(index))
		} else {
			current = current.Child(part)
		}
	}

	return current.Build()
}
