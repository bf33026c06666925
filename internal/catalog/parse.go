package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaSource string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("catalog.json", strings.NewReader(schemaSource)); err != nil {
			schemaErr = fmt.Errorf("add catalog schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("catalog.json")
	})
	return schema, schemaErr
}

// Parse decodes a JSON or YAML catalog document after validating it
func Parse(data []byte) (*Document, error) {
	raw, err := toJSON(data)
	if err != nil {
		return nil, err
	}
	if err := validateJSON(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &doc, nil
}

// Validate checks a JSON or YAML document against the catalog schema. Every
// violation is reported; use multierr.Errors to list them.
func Validate(data []byte) error {
	raw, err := toJSON(data)
	if err != nil {
		return err
	}
	return validateJSON(raw)
}

func validateJSON(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}

	err = s.Validate(v)
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return flatten(ve)
	}
	return err
}

// flatten turns a validation error tree into one error per failing location
func flatten(ve *jsonschema.ValidationError) error {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Errorf("catalog %s: %s", loc, ve.Message)
	}

	var err error
	for _, cause := range ve.Causes {
		err = multierr.Append(err, flatten(cause))
	}
	return err
}

// toJSON returns data as JSON, converting YAML input
func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("catalog document is empty")
	}
	if trimmed[0] == '{' && json.Valid(trimmed) {
		return trimmed, nil
	}

	var v interface{}
	if err := yaml.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("convert catalog to JSON: %w", err)
	}
	return raw, nil
}

// Encode renders a document as indented JSON or as YAML
func Encode(doc *Document, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return json.MarshalIndent(doc, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
}
