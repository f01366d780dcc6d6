package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/timing"
)

func TestDispatch_RecordsPhases(t *testing.T) {
	store := timing.NewStore(16)
	d := NewDispatcher(store, 0)

	var seen params.View
	b := NewBinding("GET", "/api/w/v1/list/", "widgets", "list", func(ctx context.Context, p params.View) (*Result, error) {
		seen = p
		return &Result{Results: []map[string]any{{"id": 1}}}, nil
	})

	rc := &RequestContext{ID: "req-1", Domain: []params.Parameter{params.New("age", params.OpGT, "21")}}
	store.Start(rc.ID, timing.PreAPI)

	res, err := d.Dispatch(context.Background(), b, rc)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(res.Results) != 1 {
		t.Errorf("expected 1 result, got %d", len(res.Results))
	}
	if got := seen.Value("age"); got != "21" {
		t.Errorf("expected the plugin to see age=21, got %q", got)
	}

	pre, _ := store.Get(rc.ID, timing.PreAPI)
	api, _ := store.Get(rc.ID, timing.API)
	post, ok := store.Get(rc.ID, timing.PostAPI)
	if !pre.Complete() || !api.Complete() {
		t.Errorf("expected pre-api and api to be complete, got %+v %+v", pre, api)
	}
	if !ok || post.Start == 0 || post.End != 0 {
		t.Errorf("expected post-api to be started only, got %+v", post)
	}
}

func TestDispatch_SurfacesErrors(t *testing.T) {
	d := NewDispatcher(timing.NewStore(4), 0)
	boom := errors.New("boom")
	b := NewBinding("GET", "/x/", "p", "f", func(ctx context.Context, p params.View) (*Result, error) {
		return nil, boom
	})

	if _, err := d.Dispatch(context.Background(), b, &RequestContext{ID: "r"}); !errors.Is(err, boom) {
		t.Errorf("expected the plugin error, got %v", err)
	}
}

func TestDispatch_NilResult(t *testing.T) {
	d := NewDispatcher(timing.NewStore(4), 0)
	b := NewBinding("GET", "/x/", "p", "f", func(ctx context.Context, p params.View) (*Result, error) {
		return nil, nil
	})

	if _, err := d.Dispatch(context.Background(), b, &RequestContext{ID: "r"}); !errors.Is(err, ErrMalformedResult) {
		t.Errorf("expected ErrMalformedResult, got %v", err)
	}
}

func TestDispatch_StatusCodeRange(t *testing.T) {
	tests := []struct {
		code    int
		wantErr bool
	}{
		{0, false},
		{201, false},
		{599, false},
		{42, true},
		{-1, true},
		{600, true},
		{1000, true},
	}

	d := NewDispatcher(timing.NewStore(4), 0)
	for _, tt := range tests {
		code := tt.code
		b := NewBinding("GET", "/x/", "p", "f", func(ctx context.Context, p params.View) (*Result, error) {
			return &Result{HTTPCode: code}, nil
		})

		_, err := d.Dispatch(context.Background(), b, &RequestContext{ID: "r"})
		if tt.wantErr && !errors.Is(err, ErrMalformedResult) {
			t.Errorf("code %d: expected ErrMalformedResult, got %v", tt.code, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("code %d: unexpected error %v", tt.code, err)
		}
	}
}

func TestDispatch_PanicPropagates(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Second} {
		d := NewDispatcher(timing.NewStore(4), timeout)
		b := NewBinding("GET", "/x/", "p", "f", func(ctx context.Context, p params.View) (*Result, error) {
			panic("plugin exploded")
		})

		func() {
			defer func() {
				if v := recover(); v != "plugin exploded" {
					t.Errorf("timeout %s: expected the plugin panic, got %v", timeout, v)
				}
			}()
			_, _ = d.Dispatch(context.Background(), b, &RequestContext{ID: "r"})
		}()
	}
}

func TestDispatch_Timeout(t *testing.T) {
	d := NewDispatcher(timing.NewStore(4), 20*time.Millisecond)
	b := NewBinding("GET", "/x/", "p", "f", func(ctx context.Context, p params.View) (*Result, error) {
		time.Sleep(500 * time.Millisecond)
		return &Result{}, nil
	})

	if _, err := d.Dispatch(context.Background(), b, &RequestContext{ID: "r"}); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestDispatch_NoBinding(t *testing.T) {
	d := NewDispatcher(timing.NewStore(4), 0)
	if _, err := d.Dispatch(context.Background(), nil, &RequestContext{ID: "r"}); !errors.Is(err, ErrNoBinding) {
		t.Errorf("expected ErrNoBinding, got %v", err)
	}
}
