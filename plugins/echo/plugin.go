// Package echo is a compiled-in sample implementation that answers with the
// domain parameters it received.
package echo

import (
	"context"

	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/plugin"
)

const Name = "echo"

// Register adds the implementation to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterFunctions(Name, plugin.Functions{"echo": Echo})
}

// Echo returns one record per parameter, in arrival order.
func Echo(ctx context.Context, p params.View) (*plugin.Result, error) {
	out := make([]map[string]any, 0, p.Count())
	for _, prm := range p.All() {
		out = append(out, map[string]any{
			"key":   prm.Key,
			"op":    string(prm.Op),
			"value": prm.Value,
			"type":  prm.Type(),
		})
	}
	return &plugin.Result{Results: out}, nil
}
