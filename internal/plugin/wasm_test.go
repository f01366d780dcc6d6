package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/darkden-lab/ozone/internal/params"
)

// A guest module assembled by hand. It exports memory, allocate (always
// 4096) and four functions returning packed ptr<<32|len:
//
//	good: the JSON result at 1024 when the input starts with '{', else bad's
//	bad:  "not json" at 2048
//	far:  a pointer past the end of memory
const (
	guestGoodAt  = 1024
	guestBadAt   = 2048
	guestAllocAt = 4096
	guestGood    = `{"httpCode":201,"results":[{"ok":true}]}`
	guestBad     = `not json`
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmVec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmSection(id byte, body []byte) []byte {
	return append(append([]byte{id}, uleb(uint32(len(body)))...), body...)
}

func wasmName(s string) []byte { return append(uleb(uint32(len(s))), s...) }

func wasmBody(instrs ...byte) []byte {
	body := append([]byte{0x00}, instrs...) // no locals
	body = append(body, 0x0b)
	return append(uleb(uint32(len(body))), body...)
}

func packed(ptr, n int) []byte {
	return append([]byte{0x42}, sleb(int64(ptr)<<32|int64(n))...) // i64.const
}

func guestModule(withAllocate bool) []byte {
	i32, i64 := byte(0x7f), byte(0x7e)
	types := wasmSection(1, wasmVec(
		[]byte{0x60, 1, i32, 1, i32},      // (i32) -> i32
		[]byte{0x60, 2, i32, i32, 1, i64}, // (i32, i32) -> i64
	))
	funcs := wasmSection(3, wasmVec([]byte{0}, []byte{1}, []byte{1}, []byte{1}))
	memory := wasmSection(5, wasmVec([]byte{0x00, 0x01}))

	exports := [][]byte{
		append(wasmName("memory"), 0x02, 0x00),
		append(wasmName("good"), 0x00, 0x01),
		append(wasmName("bad"), 0x00, 0x02),
		append(wasmName("far"), 0x00, 0x03),
	}
	if withAllocate {
		exports = append(exports, append(wasmName("allocate"), 0x00, 0x00))
	}
	export := wasmSection(7, wasmVec(exports...))

	allocate := wasmBody(append([]byte{0x41}, sleb(guestAllocAt)...)...)

	var good []byte
	good = append(good, 0x20, 0x00, 0x2d, 0x00, 0x00) // local.get 0; i32.load8_u
	good = append(good, 0x41)
	good = append(good, sleb('{')...)
	good = append(good, 0x46, 0x04, i64) // i32.eq; if (result i64)
	good = append(good, packed(guestGoodAt, len(guestGood))...)
	good = append(good, 0x05) // else
	good = append(good, packed(guestBadAt, len(guestBad))...)
	good = append(good, 0x0b) // end if

	code := wasmSection(10, wasmVec(
		allocate,
		wasmBody(good...),
		wasmBody(packed(guestBadAt, len(guestBad))...),
		wasmBody(packed(70000, 16)...),
	))

	segment := func(at int, data string) []byte {
		seg := []byte{0x00, 0x41}
		seg = append(seg, sleb(int64(at))...)
		seg = append(seg, 0x0b)
		return append(seg, wasmName(data)...)
	}
	data := wasmSection(11, wasmVec(segment(guestGoodAt, guestGood), segment(guestBadAt, guestBad)))

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range [][]byte{types, funcs, memory, export, code, data} {
		mod = append(mod, s...)
	}
	return mod
}

func writeGuest(t *testing.T, withAllocate bool) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "api"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "api", "guest.wasm"), guestModule(withAllocate), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func resolveGuest(t *testing.T, ctx context.Context, dir string) (Implementation, error) {
	t.Helper()
	rt := NewWasmRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })
	r := NewRegistry()
	r.SetWasm(rt)
	return r.Resolve(ctx, dir, "guest.wasm")
}

func TestWasmGuest_Result(t *testing.T) {
	ctx := context.Background()
	impl, err := resolveGuest(t, ctx, writeGuest(t, true))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	fn, ok := impl.Function("good")
	if !ok {
		t.Fatal("expected the good export to be callable")
	}
	view := params.NewView([]params.Parameter{params.New("color", params.OpEq, "red")})
	res, err := fn(ctx, view)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if res.HTTPCode != 201 || len(res.Results) != 1 || res.Results[0]["ok"] != true {
		t.Errorf("unexpected result %+v", res)
	}

	// A second call runs in a fresh instance of the cached module.
	if _, err := fn(ctx, view); err != nil {
		t.Errorf("second call failed: %v", err)
	}

	if _, ok := impl.Function("missing"); ok {
		t.Error("expected unknown exports to be reported missing")
	}
}

func TestWasmGuest_MalformedResult(t *testing.T) {
	ctx := context.Background()
	impl, err := resolveGuest(t, ctx, writeGuest(t, true))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	bad, _ := impl.Function("bad")
	if _, err := bad(ctx, params.NewView(nil)); !errors.Is(err, ErrMalformedResult) {
		t.Errorf("expected ErrMalformedResult, got %v", err)
	}

	far, _ := impl.Function("far")
	if _, err := far(ctx, params.NewView(nil)); err == nil {
		t.Error("expected an error for a result outside guest memory")
	}
}

func TestWasmGuest_RequiresAllocate(t *testing.T) {
	ctx := context.Background()
	if _, err := resolveGuest(t, ctx, writeGuest(t, false)); err == nil {
		t.Fatal("expected a module without allocate to be rejected")
	}
}
