// Package params classifies raw request key/value pairs into reserved
// (gateway) parameters and domain parameters handed to plugins.
package params

import (
	"net/mail"
	"strconv"
	"strings"
)

// Operator is the comparison carried by a parsed parameter.
type Operator string

const (
	OpEq  Operator = "="
	OpLT  Operator = "<"
	OpGT  Operator = ">"
	OpLTE Operator = "<="
	OpGTE Operator = ">="
)

// Value types sniffed from parameter values.
const (
	TypeNumber = "number"
	TypeEmail  = "email"
)

// Parameter is one classified key/operator/value triple. A fresh slice of
// these is produced per request and never shared.
type Parameter struct {
	Key   string   `json:"key" xml:"key"`
	Op    Operator `json:"op" xml:"op"`
	Value string   `json:"value" xml:"value"`
}

// New builds a Parameter.
func New(key string, op Operator, value string) Parameter {
	return Parameter{Key: key, Op: op, Value: value}
}

// Type reports "number" for non-zero numeric values, "email" for address-like
// values and "" otherwise.
func (p Parameter) Type() string {
	if f, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64); err == nil && f != 0 {
		return TypeNumber
	}
	if isEmail(p.Value) {
		return TypeEmail
	}
	return ""
}

func isEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && len(domain)-dot-1 >= 2
}

// Lookup returns the value of the first parameter named key.
func Lookup(list []Parameter, key string) (string, bool) {
	for _, p := range list {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}
