package plugin

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/httputil"
	"github.com/darkden-lab/ozone/internal/manifest"
)

type Handlers struct {
	engine    *Engine
	manifests *manifest.Store
}

// NewHandlers serves the admin view of engine. manifests may be nil, in which
// case the manifest endpoints answer 404.
func NewHandlers(engine *Engine, manifests *manifest.Store) *Handlers {
	return &Handlers{engine: engine, manifests: manifests}
}

func (h *Handlers) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/_ozone").Subrouter()
	api.HandleFunc("/plugins", h.handleList).Methods("GET")
	api.HandleFunc("/plugins/{id}/manifest", h.handleManifest).Methods("GET")
	api.HandleFunc("/manifests", h.handleManifests).Methods("GET")
	api.HandleFunc("/routes", h.handleRoutes).Methods("GET")
}

func (h *Handlers) handleList(w http.ResponseWriter, r *http.Request) {
	expected, loaded, failed := h.engine.Counts()
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ready":    h.engine.IsReady(),
		"expected": expected,
		"loaded":   loaded,
		"failed":   failed,
		"plugins":  h.engine.Statuses(),
	})
}

func (h *Handlers) handleManifest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.manifests == nil {
		httputil.WriteError(w, http.StatusNotFound, "plugin not found")
		return
	}
	m, ok := h.manifests.Get(id)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "plugin not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// handleManifests lists every loaded manifest, or the one whose base route
// is ?route=.
func (h *Handlers) handleManifests(w http.ResponseWriter, r *http.Request) {
	if h.manifests == nil {
		httputil.WriteJSON(w, http.StatusOK, []*manifest.Manifest{})
		return
	}
	route := r.URL.Query().Get("route")
	if route == "" {
		httputil.WriteJSON(w, http.StatusOK, h.manifests.All())
		return
	}
	m, ok := h.manifests.ByRoute(route)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "no plugin at route "+route)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handlers) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := h.engine.Routes().Routes()
	if routes == nil {
		routes = []*Binding{}
	}
	httputil.WriteJSON(w, http.StatusOK, routes)
}
