package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/darkden-lab/ozone/internal/params"
)

// WasmRuntime hosts implementation units compiled to WebAssembly.
//
// A guest exports "allocate(size) ptr" plus one function per manifest
// function name taking (ptr, len) of a JSON request {"parameters": [...]}
// and returning ptr<<32|len of a JSON Result. Every call runs in a fresh
// module instance.
type WasmRuntime struct {
	runtime wazero.Runtime

	mu       sync.Mutex
	compiled map[string]wazero.CompiledModule
}

// NewWasmRuntime creates a runtime with WASI preview1 available.
func NewWasmRuntime(ctx context.Context) *WasmRuntime {
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	return &WasmRuntime{runtime: rt, compiled: make(map[string]wazero.CompiledModule)}
}

// Close releases every compiled module.
func (w *WasmRuntime) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

// Load compiles the module at path, once per path.
func (w *WasmRuntime) Load(ctx context.Context, path string) (Implementation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if mod, ok := w.compiled[path]; ok {
		return &wasmModule{rt: w.runtime, compiled: mod, path: path}, nil
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wasm module: %w", err)
	}
	mod, err := w.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile wasm module %s: %w", path, err)
	}
	if _, ok := mod.ExportedFunctions()["allocate"]; !ok {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("wasm module %s does not export allocate", path)
	}
	w.compiled[path] = mod
	return &wasmModule{rt: w.runtime, compiled: mod, path: path}, nil
}

type wasmModule struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	path     string
}

func (m *wasmModule) Function(name string) (Function, bool) {
	if _, ok := m.compiled.ExportedFunctions()[name]; !ok {
		return nil, false
	}
	return func(ctx context.Context, p params.View) (*Result, error) {
		return m.call(ctx, name, p)
	}, true
}

type wasmRequest struct {
	Parameters []params.Parameter `json:"parameters"`
}

func (m *wasmModule) call(ctx context.Context, name string, p params.View) (*Result, error) {
	input, err := json.Marshal(wasmRequest{Parameters: p.All()})
	if err != nil {
		return nil, err
	}

	cfg := wazero.NewModuleConfig().WithName("")
	if _, ok := m.compiled.ExportedFunctions()["_initialize"]; ok {
		cfg = cfg.WithStartFunctions("_initialize")
	}
	mod, err := m.rt.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate %s: %w", m.path, err)
	}
	defer mod.Close(ctx)

	packed, err := callPacked(ctx, mod, name, input)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", m.path, name, err)
	}

	ptr, length := uint32(packed>>32), uint32(packed)
	out, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("%s %s: result out of range", m.path, name)
	}

	var res Result
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	return &res, nil
}

func callPacked(ctx context.Context, mod api.Module, name string, input []byte) (uint64, error) {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("export %q not found", name)
	}
	if mod.Memory() == nil {
		return 0, fmt.Errorf("guest exports no memory")
	}
	allocate := mod.ExportedFunction("allocate")
	alloc, err := allocate.Call(ctx, uint64(len(input)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate in guest: %w", err)
	}
	if len(alloc) == 0 {
		return 0, fmt.Errorf("allocate returned no results")
	}
	ptr := uint32(alloc[0])
	if !mod.Memory().Write(ptr, input) {
		return 0, fmt.Errorf("failed to write input to guest memory")
	}
	results, err := fn.Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, ErrMalformedResult
	}
	return results[0], nil
}
