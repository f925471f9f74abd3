package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema that can be reused across calls.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Compile compiles schemaJSON under name.
func Compile(name, schemaJSON string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSON schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: sch}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks raw JSON bytes against the schema.
func (s *Schema) Validate(data []byte) error {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to unmarshal JSON data: %w", err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("JSON data failed validation against %s: %v", s.name, verr)
		}
		return fmt.Errorf("JSON data failed validation against %s: %w", s.name, err)
	}
	return nil
}

var (
	adhocMu    sync.Mutex
	adhocCache = map[string]*Schema{}
)

// ValidateJSONWithSchema validates dataJSON against schemaJSON, compiling and
// caching the schema on first use. An empty schema accepts everything.
func ValidateJSONWithSchema(schemaJSON string, dataJSON string) error {
	if schemaJSON == "" {
		return nil
	}
	adhocMu.Lock()
	sch, ok := adhocCache[schemaJSON]
	adhocMu.Unlock()
	if !ok {
		var err error
		sch, err = Compile("schema.json", schemaJSON)
		if err != nil {
			return err
		}
		adhocMu.Lock()
		adhocCache[schemaJSON] = sch
		adhocMu.Unlock()
	}
	return sch.Validate([]byte(dataJSON))
}
