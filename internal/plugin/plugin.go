// Package plugin binds manifest resources to implementations, registers
// their routes and dispatches requests to them.
package plugin

import (
	"context"
	"errors"

	"github.com/darkden-lab/ozone/internal/params"
)

var (
	ErrUnknownImplementation = errors.New("unknown implementation")
	ErrUnknownFunction       = errors.New("unknown function")
	ErrDuplicateRoute        = errors.New("route already registered")
	ErrMalformedResult       = errors.New("malformed plugin result")
	ErrTimeout               = errors.New("plugin call timed out")
	ErrNoBinding             = errors.New("no binding for route")
)

// Result is what a plugin function returns. HTTPCode 0 means 200.
type Result struct {
	HTTPCode int              `json:"httpCode"`
	Results  []map[string]any `json:"results"`
}

// Function is one callable plugin entry point. It receives a read-only view
// of the domain parameters.
type Function func(ctx context.Context, p params.View) (*Result, error)

// Implementation exposes named functions.
type Implementation interface {
	Function(name string) (Function, bool)
}

// Functions is a map-backed Implementation.
type Functions map[string]Function

func (f Functions) Function(name string) (Function, bool) {
	fn, ok := f[name]
	return fn, ok
}

// RequestContext carries the classified parameters and identities of one
// request through dispatch.
type RequestContext struct {
	ID       string
	Identity string
	Plugin   string
	Reserved []params.Parameter
	Domain   []params.Parameter
}
