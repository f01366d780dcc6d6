package main

import (
	"net/http"
	"sync/atomic"

	"github.com/darkden-lab/ozone/internal/httputil"
	"github.com/darkden-lab/ozone/internal/plugin"
)

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyzHandler answers 503 until every discovered plugin has settled.
func readyzHandler(engine *plugin.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expected, loaded, failed := engine.Counts()
		body := map[string]any{"expected": expected, "loaded": loaded, "failed": failed}
		if !engine.IsReady() {
			body["status"] = "booting"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		httputil.WriteJSON(w, http.StatusOK, body)
	}
}

// gate is the server handler. Until a router is installed it only answers
// health probes; route registration happens before the swap so the router
// is never mutated while serving.
type gate struct {
	next atomic.Pointer[http.Handler]
}

func (g *gate) Install(h http.Handler) { g.next.Store(&h) }

func (g *gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h := g.next.Load(); h != nil {
		(*h).ServeHTTP(w, r)
		return
	}
	switch r.URL.Path {
	case "/healthz":
		healthzHandler(w, r)
	default:
		w.Header().Set("Retry-After", "5")
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "booting",
			"error":  "not_ready",
		})
	}
}
