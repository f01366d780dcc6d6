// Package manifest loads plugin descriptors from a plugin folder.
package manifest

import (
	"sort"
	"strings"
)

// Defaults applied to missing informational fields.
const (
	DefaultPlugin      = "unknown"
	DefaultName        = "Unknown"
	DefaultDescription = "Unknown"
)

// Verbs accepted in method bindings.
var Verbs = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"}

// Manifest describes one plugin: identity, base route and resources. It is
// immutable once returned by the Store.
type Manifest struct {
	Informational Informational `json:"informational" yaml:"informational" jsonschema:"required"`
	Route         Route         `json:"route" yaml:"route" jsonschema:"required"`
	Resources     []Resource    `json:"resources" yaml:"resources" validate:"dive"`

	// Dir is the plugin directory the manifest was read from.
	Dir string `json:"-" yaml:"-"`
}

type Informational struct {
	Plugin      string `json:"plugin,omitempty" yaml:"plugin"`
	Name        string `json:"name,omitempty" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Required    bool   `json:"required,omitempty" yaml:"required"`
}

type Route struct {
	URI     string            `json:"uri" yaml:"uri" validate:"required" jsonschema:"required,minLength=1"`
	Options map[string]Option `json:"options,omitempty" yaml:"options"`
	CORS    *CORS             `json:"cors,omitempty" yaml:"cors"`
}

type Option struct {
	Enable bool `json:"enable" yaml:"enable"`
}

type CORS struct {
	Enable    bool   `json:"enable" yaml:"enable"`
	Whitelist string `json:"whitelist,omitempty" yaml:"whitelist"`
}

// Resource is a versioned, routed unit exposing method bindings.
type Resource struct {
	Version        int                   `json:"version" yaml:"version" validate:"gte=0" jsonschema:"required,minimum=0"`
	Route          string                `json:"route" yaml:"route" validate:"required" jsonschema:"required,minLength=1"`
	Implementation string                `json:"implementation" yaml:"implementation" validate:"required" jsonschema:"required,minLength=1"`
	HTTPMethods    []Binding             `json:"httpMethods" yaml:"httpMethods" validate:"dive"`
	Parameters     []ParameterDefinition `json:"parameters,omitempty" yaml:"parameters" validate:"dive"`
}

// Binding maps one HTTP verb to a function of the implementation.
type Binding struct {
	HTTPMethod string `json:"httpMethod" yaml:"httpMethod" validate:"required,oneof=GET POST PUT DELETE PATCH HEAD" jsonschema:"required,minLength=1"`
	Function   string `json:"function" yaml:"function" validate:"required" jsonschema:"required,minLength=1"`
}

// ParameterDefinition documents a domain parameter. It is never enforced by
// the gateway.
type ParameterDefinition struct {
	Parameter   string        `json:"parameter" yaml:"parameter" validate:"required" jsonschema:"required,minLength=1"`
	Type        string        `json:"type,omitempty" yaml:"type"`
	Description string        `json:"description,omitempty" yaml:"description"`
	Examples    []any         `json:"examples,omitempty" yaml:"examples"`
	Operators   []string      `json:"operators,omitempty" yaml:"operators"`
	Wildcard    bool          `json:"wildcard,omitempty" yaml:"wildcard"`
	Created     string        `json:"created,omitempty" yaml:"created"`
	Required    []Requirement `json:"required,omitempty" yaml:"required"`
}

type Requirement struct {
	Method         string `json:"method" yaml:"method"`
	IsRequired     bool   `json:"isRequired" yaml:"isRequired"`
	Administrative bool   `json:"administrative" yaml:"administrative"`
}

// Methods returns the verbs the definition declares requirements for.
func (d ParameterDefinition) Methods() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range d.Required {
		m := strings.ToUpper(r.Method)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// IsRequired reports whether the parameter is required for method.
func (d ParameterDefinition) IsRequired(method string) bool {
	r, ok := d.requirement(method)
	return ok && r.IsRequired
}

// IsAdministrative reports whether the parameter is administrative for method.
func (d ParameterDefinition) IsAdministrative(method string) bool {
	r, ok := d.requirement(method)
	return ok && r.Administrative
}

func (d ParameterDefinition) requirement(method string) (Requirement, bool) {
	for _, r := range d.Required {
		if strings.EqualFold(r.Method, method) {
			return r, true
		}
	}
	return Requirement{}, false
}

// Requirements returns the parameters flagged required and administrative
// for method, in declaration order.
func (r *Resource) Requirements(method string) (required, administrative []string) {
	for _, d := range r.Parameters {
		if d.IsRequired(method) {
			required = append(required, d.Parameter)
		}
		if d.IsAdministrative(method) {
			administrative = append(administrative, d.Parameter)
		}
	}
	return required, administrative
}

// ID returns the declared plugin identifier.
func (m *Manifest) ID() string { return m.Informational.Plugin }

// CORSEnabled reports whether the manifest opts in to cross-origin headers.
func (m *Manifest) CORSEnabled() bool {
	return m.Route.CORS != nil && m.Route.CORS.Enable
}

// EnabledOptions returns the names of enabled route options, sorted.
func (m *Manifest) EnabledOptions() []string {
	var names []string
	for name, opt := range m.Route.Options {
		if opt.Enable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LastResource returns the last resource whose route equals route.
func (m *Manifest) LastResource(route string) (*Resource, bool) {
	var found *Resource
	for i := range m.Resources {
		if m.Resources[i].Route == route {
			found = &m.Resources[i]
		}
	}
	return found, found != nil
}

// Binding returns the function bound to method, if any.
func (r *Resource) Binding(method string) (string, bool) {
	for _, b := range r.HTTPMethods {
		if strings.EqualFold(b.HTTPMethod, method) {
			return b.Function, true
		}
	}
	return "", false
}

// normalize fills informational defaults and canonicalises verbs.
func (m *Manifest) normalize() {
	info := &m.Informational
	info.Plugin = strings.TrimSpace(info.Plugin)
	if info.Plugin == "" {
		info.Plugin = DefaultPlugin
	}
	if info.Name == "" {
		info.Name = DefaultName
	}
	if info.Description == "" {
		info.Description = DefaultDescription
	}
	for i := range m.Resources {
		res := &m.Resources[i]
		for j := range res.HTTPMethods {
			b := &res.HTTPMethods[j]
			b.HTTPMethod = strings.ToUpper(strings.TrimSpace(b.HTTPMethod))
			b.Function = strings.TrimSpace(b.Function)
		}
	}
}
