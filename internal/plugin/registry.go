package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Factory builds an implementation for the plugin living in dir.
type Factory func(dir string) (Implementation, error)

// Registry maps implementation references from manifests to constructors.
// References ending in ".wasm" are loaded from <plugin dir>/api/ through the
// wasm runtime when one is attached.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	wasm      *WasmRuntime
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// RegisterFunctions registers a stateless implementation.
func (r *Registry) RegisterFunctions(name string, fns Functions) {
	r.Register(name, func(string) (Implementation, error) { return fns, nil })
}

// SetWasm attaches the runtime used for .wasm references.
func (r *Registry) SetWasm(rt *WasmRuntime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wasm = rt
}

// Names returns the registered implementation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve instantiates the implementation referenced by ref for the plugin
// in dir.
func (r *Registry) Resolve(ctx context.Context, dir, ref string) (Implementation, error) {
	r.mu.RLock()
	f, ok := r.factories[ref]
	wasm := r.wasm
	r.mu.RUnlock()

	if strings.HasSuffix(ref, ".wasm") {
		if wasm == nil {
			return nil, fmt.Errorf("%w %q: wasm runtime disabled", ErrUnknownImplementation, ref)
		}
		return wasm.Load(ctx, filepath.Join(dir, "api", ref))
	}
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownImplementation, ref)
	}
	impl, err := f(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to construct implementation %q: %w", ref, err)
	}
	return impl, nil
}
