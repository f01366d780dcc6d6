package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/httputil"
)

// Lister is the read side of the audit store.
type Lister interface {
	List(ctx context.Context, params ListParams) ([]Entry, int, error)
}

// Handlers provides HTTP handlers for the audit trail.
type Handlers struct {
	store Lister
}

// NewHandlers creates a new Handlers.
func NewHandlers(store Lister) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes wires the audit endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/_ozone/audit", h.List).Methods("GET")
}

// List handles GET /_ozone/audit with query filters and pagination.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	params := ListParams{
		Identity: q.Get("identity"),
		Plugin:   q.Get("plugin"),
		Method:   q.Get("method"),
		FromDate: q.Get("from_date"),
		ToDate:   q.Get("to_date"),
		Limit:    limit,
		Offset:   offset,
	}
	params.normalize()

	entries, total, err := h.store.List(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   params.Limit,
		"offset":  params.Offset,
	})
}
