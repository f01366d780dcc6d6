package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/darkden-lab/ozone/internal/logging"
	"github.com/darkden-lab/ozone/internal/manifest"
)

type Status string

const (
	StatusLoaded Status = "loaded"
	StatusFailed Status = "failed"
)

// PluginStatus is the outcome of loading one plugin.
type PluginStatus struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Route       string    `json:"route,omitempty"`
	Dir         string    `json:"dir"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Routes      int       `json:"routes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Recorder persists plugin statuses. Optional.
type Recorder interface {
	SavePlugin(ctx context.Context, st PluginStatus, m *manifest.Manifest) error
}

// PlannedRoute is a binding computed from a manifest without resolving its
// implementation.
type PlannedRoute struct {
	Method         string `json:"method"`
	URI            string `json:"uri"`
	Function       string `json:"function"`
	Implementation string `json:"implementation"`
	Version        int    `json:"version"`
	Resource       string `json:"resource"`
	// Required and Administrative name the declared parameters flagged for
	// Method. They are documentation; nothing enforces them.
	Required       []string `json:"required,omitempty"`
	Administrative []string `json:"administrative,omitempty"`

	index int
}

// Plan computes the base URI and every route of m. Resource URIs accumulate:
// each resource is rooted under the segments of all resources before it.
func Plan(contextRoot string, m *manifest.Manifest) (string, []PlannedRoute) {
	base := contextRoot + m.Route.URI
	serviceURI := base

	var routes []PlannedRoute
	for i, res := range m.Resources {
		serviceURI += fmt.Sprintf("v%d/%s/", res.Version, res.Route)
		for _, b := range res.HTTPMethods {
			required, admin := res.Requirements(b.HTTPMethod)
			routes = append(routes, PlannedRoute{
				Method:         b.HTTPMethod,
				URI:            serviceURI,
				Function:       b.Function,
				Implementation: res.Implementation,
				Version:        res.Version,
				Resource:       res.Route,
				Required:       required,
				Administrative: admin,
				index:          i,
			})
		}
	}
	return base, routes
}

// Engine synthesizes routes from manifests and tracks when every discovered
// plugin has settled.
type Engine struct {
	contextRoot string
	registry    *Registry
	routes      *RouteTable
	logger      *slog.Logger

	router    Router
	entry     http.Handler
	enumerate http.Handler
	recorder  Recorder

	mu       sync.RWMutex
	expected int
	loaded   int
	failed   int
	statuses map[string]PluginStatus
	ready    chan struct{}
	closed   bool
}

func NewEngine(contextRoot string, registry *Registry, routes *RouteTable, logger *slog.Logger) *Engine {
	return &Engine{
		contextRoot: contextRoot,
		registry:    registry,
		routes:      routes,
		logger:      logging.OrDiscard(logger),
		statuses:    make(map[string]PluginStatus),
		ready:       make(chan struct{}),
	}
}

// Mount sets the transport and the handlers every synthesized route points
// at: entry for method bindings, enumerate for the OPTIONS base routes.
func (e *Engine) Mount(router Router, entry, enumerate http.Handler) {
	e.router = router
	e.entry = entry
	e.enumerate = enumerate
}

// SetRecorder enables persistence of plugin statuses.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// Routes returns the route table.
func (e *Engine) Routes() *RouteTable { return e.routes }

// Expect starts a settle round for n discovered plugins. With n == 0 the
// engine is ready immediately.
func (e *Engine) Expect(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expected = n
	e.loaded = 0
	e.failed = 0
	e.checkLocked()
}

// Fail settles a plugin that never reached synthesis, e.g. a manifest that
// did not load.
func (e *Engine) Fail(ctx context.Context, dir string, err error) {
	st := PluginStatus{ID: filepath.Base(dir), Dir: dir}
	e.settle(ctx, st, nil, err)
}

// Synthesize resolves the implementations of m and registers one route per
// method binding, plus an OPTIONS route on the manifest base URI. A failing
// resource is skipped without blocking the others; the plugin then settles as
// failed.
func (e *Engine) Synthesize(ctx context.Context, m *manifest.Manifest) ([]*Binding, error) {
	base, planned := Plan(e.contextRoot, m)

	var (
		bound []*Binding
		errs  []error
		impls = make(map[string]Implementation)
	)

	for i, res := range m.Resources {
		impl, ok := impls[res.Implementation]
		if !ok {
			var err error
			impl, err = e.registry.Resolve(ctx, m.Dir, res.Implementation)
			if err != nil {
				errs = append(errs, fmt.Errorf("resource %s: %w", res.Route, err))
				continue
			}
			impls[res.Implementation] = impl
		}

		batch, err := e.prepare(m, impl, planned, i)
		if err != nil {
			errs = append(errs, fmt.Errorf("resource %s: %w", res.Route, err))
			continue
		}
		for _, b := range batch {
			if err := e.routes.Bind(b); err != nil {
				errs = append(errs, err)
				continue
			}
			e.register(b)
			bound = append(bound, b)
		}
	}

	b := &Base{URI: base, Plugin: m.ID(), Manifest: m}
	if e.routes.BindBase(b) && e.router != nil && e.enumerate != nil {
		e.router.Handle(http.MethodOptions, base, withBase(b, e.enumerate))
	}

	err := errors.Join(errs...)
	st := PluginStatus{
		ID:          m.ID(),
		Name:        m.Informational.Name,
		Description: m.Informational.Description,
		Route:       base,
		Dir:         m.Dir,
		Routes:      len(bound),
	}
	e.settle(ctx, st, m, err)
	return bound, err
}

func (e *Engine) prepare(m *manifest.Manifest, impl Implementation, planned []PlannedRoute, index int) ([]*Binding, error) {
	var out []*Binding
	for _, p := range planned {
		if p.index != index {
			continue
		}
		fn, ok := impl.Function(p.Function)
		if !ok {
			return nil, fmt.Errorf("%w %q for %s", ErrUnknownFunction, p.Function, p.Method)
		}
		if e.routes.Taken(p.Method, p.URI) {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateRoute, p.Method, p.URI)
		}
		out = append(out, &Binding{
			Method:   p.Method,
			URI:      p.URI,
			Plugin:   m.ID(),
			Version:  p.Version,
			Resource: p.Resource,
			Function: p.Function,
			Manifest: m,
			fn:       fn,
		})
	}
	return out, nil
}

func (e *Engine) register(b *Binding) {
	if e.router == nil || e.entry == nil {
		return
	}
	e.router.Handle(b.Method, b.URI, withBinding(b, e.entry))
	e.logger.Debug("route registered", "plugin", b.Plugin, "method", b.Method, "uri", b.URI)
}

func withBinding(b *Binding, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithBinding(r.Context(), b)))
	})
}

func withBase(b *Base, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithBase(r.Context(), b)))
	})
}

func (e *Engine) settle(ctx context.Context, st PluginStatus, m *manifest.Manifest, err error) {
	st.UpdatedAt = time.Now().UTC()
	st.Status = StatusLoaded
	if err != nil {
		st.Status = StatusFailed
		st.Error = err.Error()
		e.logger.Warn("plugin failed", "plugin", st.ID, "dir", st.Dir, "error", err)
	} else {
		e.logger.Info("plugin loaded", "plugin", st.ID, "routes", st.Routes)
	}

	e.mu.Lock()
	e.statuses[st.ID] = st
	if err != nil {
		e.failed++
		e.expected--
	} else {
		e.loaded++
	}
	e.checkLocked()
	e.mu.Unlock()

	if e.recorder != nil {
		if rerr := e.recorder.SavePlugin(ctx, st, m); rerr != nil {
			e.logger.Warn("failed to persist plugin status", "plugin", st.ID, "error", rerr)
		}
	}
}

func (e *Engine) checkLocked() {
	if !e.closed && e.loaded >= e.expected {
		e.closed = true
		close(e.ready)
	}
}

// Ready is closed once every expected plugin has settled.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// IsReady reports whether Ready is closed.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// Counts returns the remaining expected, loaded and failed plugin counts.
func (e *Engine) Counts() (expected, loaded, failed int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.expected, e.loaded, e.failed
}

// Statuses returns every plugin outcome sorted by id.
func (e *Engine) Statuses() []PluginStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]PluginStatus, 0, len(e.statuses))
	for _, st := range e.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
