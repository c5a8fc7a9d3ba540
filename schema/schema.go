// Package schema validates artifact envelopes against embedded JSON
// Schemas keyed by (artifact type, schema version).
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed manuscript_v1.schema.json
var manuscriptV1Schema []byte

// ErrUnknownSchema is returned when no schema is registered for the
// requested artifact type and version pair.
var ErrUnknownSchema = errors.New("unknown schema")

// Result is a validation outcome. Errors holds one entry per leaf
// violation; it is empty, never nil, when the document is valid.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

var schemas = map[string]*jsonschema.Schema{
	schemaKey("manuscript", "1.0"): mustCompile("manuscript_v1.schema.json", manuscriptV1Schema),
}

func schemaKey(artifactType, schemaVersion string) string {
	return artifactType + "/" + schemaVersion
}

func mustCompile(name string, data []byte) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("schema: add resource %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("schema: compile %s: %v", name, err))
	}
	return s
}

// Validate checks an artifact against the registered schema for the given
// type and version pair. The artifact may be a struct or an already
// decoded JSON value; structs are validated in their JSON form.
func Validate(artifact any, artifactType, schemaVersion string) (*Result, error) {
	s, ok := schemas[schemaKey(artifactType, schemaVersion)]
	if !ok {
		return nil, fmt.Errorf("%w: %s v%s", ErrUnknownSchema, artifactType, schemaVersion)
	}

	doc, err := toJSONValue(artifact)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}

	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &Result{Valid: false, Errors: leafErrors(ve)}, nil
		}
		return &Result{Valid: false, Errors: []string{err.Error()}}, nil
	}
	return &Result{Valid: true, Errors: []string{}}, nil
}

// Supported lists the registered type/version pairs, sorted.
func Supported() []string {
	keys := make([]string, 0, len(schemas))
	for k := range schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toJSONValue round-trips v through encoding/json so struct inputs are
// validated exactly as their wire form.
func toJSONValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, string, float64, bool, nil:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// leafErrors flattens a validation error tree into its leaf messages,
// each prefixed with the failing instance location.
func leafErrors(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + ve.Message}
	}
	var out []string
	for _, cause := range ve.Causes {
		out = append(out, leafErrors(cause)...)
	}
	return out
}
