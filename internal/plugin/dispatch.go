package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/timing"
)

// Dispatcher invokes the function behind a binding and records the
// pre-api, api and post-api phase boundaries.
type Dispatcher struct {
	timings *timing.Store
	timeout time.Duration
}

// NewDispatcher creates a Dispatcher. A zero timeout waits for the plugin
// indefinitely.
func NewDispatcher(timings *timing.Store, timeout time.Duration) *Dispatcher {
	return &Dispatcher{timings: timings, timeout: timeout}
}

// Dispatch calls the function bound to b with a view over rc.Domain. Errors
// and panics raised by the plugin are passed to the caller unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, b *Binding, rc *RequestContext) (*Result, error) {
	if b == nil || b.fn == nil {
		return nil, ErrNoBinding
	}

	d.timings.End(rc.ID, timing.PreAPI)
	d.timings.Start(rc.ID, timing.API)

	res, err := d.invoke(ctx, b, params.NewView(rc.Domain))

	d.timings.End(rc.ID, timing.API)
	d.timings.Start(rc.ID, timing.PostAPI)

	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s returned no result", ErrMalformedResult, b.Function)
	}
	if c := res.HTTPCode; c != 0 && (c < 100 || c > 599) {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrMalformedResult, b.Function, c)
	}
	return res, nil
}

type outcome struct {
	res   *Result
	err   error
	panic any
}

func (d *Dispatcher) invoke(ctx context.Context, b *Binding, view params.View) (*Result, error) {
	if d.timeout <= 0 {
		return b.fn(ctx, view)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if p := recover(); p != nil {
				out.panic = p
			}
			done <- out
		}()
		out.res, out.err = b.fn(ctx, view)
	}()

	select {
	case out := <-done:
		if out.panic != nil {
			panic(out.panic)
		}
		return out.res, out.err
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s: %s %s", ErrTimeout, d.timeout, b.Method, b.URI)
	}
}

// NewBinding builds a binding outside the synthesizer, e.g. in tests.
func NewBinding(method, uri, pluginID, function string, fn Function) *Binding {
	return &Binding{Method: method, URI: uri, Plugin: pluginID, Function: function, fn: fn}
}
