package plugin

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/manifest"
)

// Binding is one synthesized (verb, URI) pair and what it dispatches to.
type Binding struct {
	Method   string             `json:"method"`
	URI      string             `json:"uri"`
	Plugin   string             `json:"plugin"`
	Version  int                `json:"version"`
	Resource string             `json:"resource"`
	Function string             `json:"function"`
	Manifest *manifest.Manifest `json:"-"`

	fn Function
}

// Base is the enumeration route of one manifest.
type Base struct {
	URI      string             `json:"uri"`
	Plugin   string             `json:"plugin"`
	Manifest *manifest.Manifest `json:"-"`
}

// Router is the transport the synthesizer registers routes with.
type Router interface {
	Handle(method, path string, h http.Handler)
}

// MuxRouter registers routes on a gorilla/mux router.
type MuxRouter struct {
	R *mux.Router
}

func (m MuxRouter) Handle(method, path string, h http.Handler) {
	m.R.Handle(path, h).Methods(method)
}

// RouteTable records every synthesized binding and rejects duplicates.
type RouteTable struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	bases    map[string]*Base
}

func NewRouteTable() *RouteTable {
	return &RouteTable{
		bindings: make(map[string]*Binding),
		bases:    make(map[string]*Base),
	}
}

func routeKey(method, uri string) string { return method + " " + uri }

// Bind records b, failing with ErrDuplicateRoute when its pair is taken.
func (t *RouteTable) Bind(b *Binding) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := routeKey(b.Method, b.URI)
	if prev, ok := t.bindings[key]; ok {
		return fmt.Errorf("%w: %s %s (plugin %s)", ErrDuplicateRoute, b.Method, b.URI, prev.Plugin)
	}
	t.bindings[key] = b
	return nil
}

// Taken reports whether method and uri are already bound.
func (t *RouteTable) Taken(method, uri string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.bindings[routeKey(method, uri)]
	return ok
}

// Lookup returns the binding for method and uri.
func (t *RouteTable) Lookup(uri, method string) (*Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bindings[routeKey(method, uri)]
	return b, ok
}

// BindBase records the enumeration route of a manifest. It reports false when
// another manifest already owns uri.
func (t *RouteTable) BindBase(b *Base) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bases[b.URI]; ok {
		return false
	}
	t.bases[b.URI] = b
	return true
}

// Base returns the enumeration route registered at uri.
func (t *RouteTable) Base(uri string) (*Base, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bases[uri]
	return b, ok
}

// Routes returns every binding sorted by URI then method.
func (t *RouteTable) Routes() []*Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].URI != out[j].URI {
			return out[i].URI < out[j].URI
		}
		return out[i].Method < out[j].Method
	})
	return out
}

type bindingKey struct{}
type baseKey struct{}

// WithBinding stores b in ctx.
func WithBinding(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, bindingKey{}, b)
}

// BindingFrom returns the binding stored by WithBinding.
func BindingFrom(ctx context.Context) (*Binding, bool) {
	b, ok := ctx.Value(bindingKey{}).(*Binding)
	return b, ok
}

// WithBase stores b in ctx.
func WithBase(ctx context.Context, b *Base) context.Context {
	return context.WithValue(ctx, baseKey{}, b)
}

// BaseFrom returns the base route stored by WithBase.
func BaseFrom(ctx context.Context) (*Base, bool) {
	b, ok := ctx.Value(baseKey{}).(*Base)
	return b, ok
}
