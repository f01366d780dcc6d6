package widgets

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/plugin"
)

// ErrMissingName is returned by create without a name parameter.
var ErrMissingName = errors.New("widget name is required")

type handlers struct {
	catalogue *Catalogue
}

// list returns every widget matching all domain parameters. Unknown keys
// match nothing; price compares numerically.
func (h *handlers) list(ctx context.Context, p params.View) (*plugin.Result, error) {
	out := []map[string]any{}
	for _, w := range h.catalogue.snapshot() {
		if matches(w, p.All()) {
			out = append(out, w.record())
		}
	}
	return &plugin.Result{Results: out}, nil
}

func (h *handlers) get(ctx context.Context, p params.View) (*plugin.Result, error) {
	id := p.Value("id")
	for _, w := range h.catalogue.snapshot() {
		if w.ID == id {
			return &plugin.Result{Results: []map[string]any{w.record()}}, nil
		}
	}
	return &plugin.Result{HTTPCode: http.StatusNotFound, Results: []map[string]any{}}, nil
}

func (h *handlers) create(ctx context.Context, p params.View) (*plugin.Result, error) {
	name := p.Value("name")
	if name == "" {
		return &plugin.Result{
			HTTPCode: http.StatusBadRequest,
			Results:  []map[string]any{{"error": ErrMissingName.Error()}},
		}, nil
	}
	price, _ := strconv.ParseFloat(p.Value("price"), 64)
	w := h.catalogue.add(Widget{Name: name, Color: p.Value("color"), Price: price})
	return &plugin.Result{HTTPCode: http.StatusCreated, Results: []map[string]any{w.record()}}, nil
}

func matches(w Widget, filters []params.Parameter) bool {
	for _, f := range filters {
		switch f.Key {
		case "id":
			if f.Op != params.OpEq || w.ID != f.Value {
				return false
			}
		case "name":
			if f.Op != params.OpEq || !strings.EqualFold(w.Name, f.Value) {
				return false
			}
		case "color":
			if f.Op != params.OpEq || !strings.EqualFold(w.Color, f.Value) {
				return false
			}
		case "price":
			v, err := strconv.ParseFloat(f.Value, 64)
			if err != nil || !compare(w.Price, f.Op, v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func compare(a float64, op params.Operator, b float64) bool {
	switch op {
	case params.OpEq:
		return a == b
	case params.OpLT:
		return a < b
	case params.OpGT:
		return a > b
	case params.OpLTE:
		return a <= b
	case params.OpGTE:
		return a >= b
	}
	return false
}
