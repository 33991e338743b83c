// Package validate checks YAML/JSON documents against JSON schemas.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ValidateAgainstSchema validates data (JSON or YAML) against the given
// schema bytes. name is the resource name the schema is registered
// under; ref optionally points at a sub-schema ("" validates against
// the root).
func ValidateAgainstSchema(name string, schema []byte, data []byte, ref string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("registering schema %s: %w", name, err)
	}
	target := name
	if ref != "" {
		target = name + ref
	}
	compiled, err := compiler.Compile(target)
	if err != nil {
		return fmt.Errorf("compiling schema %s: %w", target, err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// decodeDocument parses data as JSON first and falls back to YAML,
// returning plain interface{} values the schema validator accepts.
func decodeDocument(data []byte) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	// round-trip through JSON so numbers and keys look exactly like a
	// JSON decode, which is what the validator expects
	raw, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, fmt.Errorf("normalizing document: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("normalizing document: %w", err)
	}
	return doc, nil
}

// normalize converts YAML map keys to strings recursively so the result
// matches what a JSON decoder would have produced.
func normalize(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		for k, val := range vv {
			vv[k] = normalize(val)
		}
		return vv
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case []interface{}:
		for i, val := range vv {
			vv[i] = normalize(val)
		}
		return vv
	}
	return v
}
