package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reserved parameter names recognised by the gateway.
const (
	Format      = "format"
	Performance = "performance"
	System      = "system"
	Request     = "request"
	Enumerate   = "enumerate"
)

// Definition declares the type and default of one reserved parameter.
type Definition struct {
	Type    string `json:"type"`
	Default string `json:"defaultValue"`
}

// Registry maps reserved names to their definitions. It is loaded once at
// startup and only read while requests are processed.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry copies defs into a read-only registry. Default values of any
// type are stored in their string form.
func NewRegistry(defs map[string]Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for name, d := range defs {
		r.defs[name] = d
	}
	return r
}

// DefinitionOf builds a Definition from a configured default of any type,
// e.g. false becomes "false".
func DefinitionOf(typ string, defaultValue any) Definition {
	return Definition{Type: typ, Default: stringify(defaultValue)}
}

// DefaultRegistry returns the stock reserved parameter table.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Definition{
		Format:      {Type: "string", Default: "json"},
		Performance: {Type: "boolean", Default: "false"},
		System:      {Type: "boolean", Default: "false"},
		Request:     {Type: "boolean", Default: "false"},
		Enumerate:   {Type: "boolean", Default: "false"},
	})
}

// Has reports whether name is reserved.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the reserved names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String resolves a string-typed reserved value, falling back to its default.
func (r *Registry) String(reserved []Parameter, name string) string {
	if v, ok := Lookup(reserved, name); ok && v != "" {
		return v
	}
	return r.defs[name].Default
}

// Flag resolves a boolean reserved value. A present but empty value means
// true; unparseable values fall back to the default.
func (r *Registry) Flag(reserved []Parameter, name string) bool {
	v, ok := Lookup(reserved, name)
	if !ok {
		b, _ := strconv.ParseBool(r.defs[name].Default)
		return b
	}
	if strings.TrimSpace(v) == "" {
		return true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		b, _ = strconv.ParseBool(r.defs[name].Default)
	}
	return b
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
