package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const schemaURL = "https://ozone.local/schemas/manifest.json"

// ErrInvalid wraps every schema or structural validation failure.
var ErrInvalid = errors.New("invalid manifest")

// Schema returns the JSON Schema of a manifest document.
func Schema() *invopop.Schema {
	r := &invopop.Reflector{
		Anonymous:                  true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(&Manifest{})
	s.Title = "Ozone plugin manifest"
	return s
}

// SchemaJSON returns Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

// Validator checks manifest documents against the schema and the struct
// rules. It is safe for concurrent use.
type Validator struct {
	schema   *jsonschema.Schema
	validate *validator.Validate
}

var (
	defaultValidator     *Validator
	defaultValidatorErr  error
	defaultValidatorOnce sync.Once
)

// DefaultValidator returns a process-wide Validator, compiled once.
func DefaultValidator() (*Validator, error) {
	defaultValidatorOnce.Do(func() {
		defaultValidator, defaultValidatorErr = NewValidator()
	})
	return defaultValidator, defaultValidatorErr
}

// NewValidator compiles the manifest schema.
func NewValidator() (*Validator, error) {
	raw, err := SchemaJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add manifest schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}

	return &Validator{schema: sch, validate: validator.New()}, nil
}

// ParseJSON decodes and validates a JSON manifest.
func (v *Validator) ParseJSON(data []byte) (*Manifest, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed json: %v", ErrInvalid, err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	m.normalize()
	if err := v.check(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseYAML converts a YAML manifest to JSON and parses it with ParseJSON.
func (v *Validator) ParseYAML(data []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed yaml: %v", ErrInvalid, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return v.ParseJSON(data)
}

func (v *Validator) check(m *Manifest) error {
	if err := v.validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i, res := range m.Resources {
		seen := make(map[string]bool, len(res.HTTPMethods))
		for _, b := range res.HTTPMethods {
			if seen[b.HTTPMethod] {
				return fmt.Errorf("%w: resource %d (%s) binds %s more than once", ErrInvalid, i, res.Route, b.HTTPMethod)
			}
			seen[b.HTTPMethod] = true
		}
	}
	return nil
}
