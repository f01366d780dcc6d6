package setup

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/httputil"
)

// pathPrefix is served while the installer is active.
const pathPrefix = "/_ozone/setup/"

// GuardMiddleware answers 503 setup_required for every request outside the
// installer endpoints until setup completes.
func GuardMiddleware(service *Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, pathPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			if required, _ := service.Status(); required {
				w.Header().Set("Retry-After", "30")
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error":   "setup_required",
					"message": "Initial setup is required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
