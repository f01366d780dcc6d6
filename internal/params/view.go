package params

import "encoding/json"

// View is a read-only window over the domain parameters of one request.
type View struct {
	params []Parameter
}

// NewView copies list into a View.
func NewView(list []Parameter) View {
	return View{params: append([]Parameter(nil), list...)}
}

// Count returns the number of parameters.
func (v View) Count() int { return len(v.params) }

// Keys returns the distinct keys in first-seen order.
func (v View) Keys() []string {
	seen := make(map[string]bool, len(v.params))
	keys := make([]string, 0, len(v.params))
	for _, p := range v.params {
		if !seen[p.Key] {
			seen[p.Key] = true
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// All returns a copy of every parameter.
func (v View) All() []Parameter {
	return append([]Parameter{}, v.params...)
}

// Get returns every parameter named key.
func (v View) Get(key string) []Parameter {
	var out []Parameter
	for _, p := range v.params {
		if p.Key == key {
			out = append(out, p)
		}
	}
	return out
}

// First returns the first parameter named key.
func (v View) First(key string) (Parameter, bool) {
	for _, p := range v.params {
		if p.Key == key {
			return p, true
		}
	}
	return Parameter{}, false
}

// Value returns the value of the first parameter named key, or "".
func (v View) Value(key string) string {
	p, _ := v.First(key)
	return p.Value
}

func (v View) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.All())
}
