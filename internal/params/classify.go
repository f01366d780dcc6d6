package params

import "regexp"

// operatorPattern splits keys like "age>21" or "price<=" into name,
// operator and trailing value. Two-character operators are tried first.
var operatorPattern = regexp.MustCompile(`^(.+?)(<=|>=|<|>)(.*)$`)

// Classified is the result of Classify.
type Classified struct {
	Reserved []Parameter `json:"reserved"`
	Domain   []Parameter `json:"parameters"`
}

// Classify separates reserved parameters from domain parameters. Output
// follows the key order of values. It never fails: every key is reserved,
// carries an embedded operator, or is a plain assignment.
func Classify(values *Values, reg *Registry) Classified {
	out := Classified{
		Reserved: []Parameter{},
		Domain:   []Parameter{},
	}
	if values == nil {
		return out
	}

	for _, key := range values.Keys() {
		supplied := values.Get(key)

		if def, ok := reg.Lookup(key); ok {
			out.Reserved = append(out.Reserved, New(key, OpEq, Deconflict(def, supplied)))
			continue
		}

		if len(supplied) == 0 {
			supplied = []string{""}
		}

		if m := operatorPattern.FindStringSubmatch(key); m != nil {
			for _, v := range supplied {
				out.Domain = append(out.Domain, splitOperator(m[1], Operator(m[2]), m[3], v))
			}
			continue
		}

		for _, v := range supplied {
			out.Domain = append(out.Domain, New(key, OpEq, v))
		}
	}
	return out
}

// splitOperator builds the parameter for an operator-bearing key. When the
// operator ends the key and a value was supplied, the query string split
// "price>=100" at its '=', so the operator is widened back to >= or <=.
func splitOperator(name string, op Operator, trailing, supplied string) Parameter {
	if trailing == "" && supplied != "" {
		switch op {
		case OpGT:
			op = OpGTE
		case OpLT:
			op = OpLTE
		}
		return New(name, op, supplied)
	}
	return New(name, op, trailing)
}

// Deconflict reduces the supplied values of a reserved parameter to one:
// a single value is used as is, otherwise the first value that differs from
// the declared default wins, else the default.
func Deconflict(def Definition, supplied []string) string {
	switch len(supplied) {
	case 0:
		return def.Default
	case 1:
		return supplied[0]
	}
	for _, v := range supplied {
		if v != def.Default {
			return v
		}
	}
	return def.Default
}
