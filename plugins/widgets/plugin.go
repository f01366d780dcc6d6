// Package widgets is a compiled-in sample implementation backing the
// ozone-widgets plugin directory.
package widgets

import (
	"sync"

	"github.com/google/uuid"

	"github.com/darkden-lab/ozone/internal/plugin"
)

// Name is the implementation reference used by manifests.
const Name = "widgets"

// Widget is one catalogue entry.
type Widget struct {
	ID    string
	Name  string
	Color string
	Price float64
}

func (w Widget) record() map[string]any {
	return map[string]any{"id": w.ID, "name": w.Name, "color": w.Color, "price": w.Price}
}

// Catalogue is an in-memory widget store safe for concurrent use.
type Catalogue struct {
	mu      sync.RWMutex
	widgets []Widget
}

// NewCatalogue returns a catalogue seeded with widgets.
func NewCatalogue(seed ...Widget) *Catalogue {
	c := &Catalogue{}
	for _, w := range seed {
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		c.widgets = append(c.widgets, w)
	}
	return c
}

// DefaultCatalogue is the seed served by Register.
func DefaultCatalogue() *Catalogue {
	return NewCatalogue(
		Widget{ID: "1", Name: "sprocket", Color: "red", Price: 4.5},
		Widget{ID: "2", Name: "gear", Color: "blue", Price: 12},
		Widget{ID: "3", Name: "flange", Color: "red", Price: 30},
	)
}

// Functions exposes list, get and create over c.
func (c *Catalogue) Functions() plugin.Functions {
	h := &handlers{catalogue: c}
	return plugin.Functions{
		"list":   h.list,
		"get":    h.get,
		"create": h.create,
	}
}

// Register adds the implementation to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterFunctions(Name, DefaultCatalogue().Functions())
}

func (c *Catalogue) snapshot() []Widget {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Widget, len(c.widgets))
	copy(out, c.widgets)
	return out
}

func (c *Catalogue) add(w Widget) Widget {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	c.widgets = append(c.widgets, w)
	return w
}
