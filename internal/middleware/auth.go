package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/auth"
	"github.com/darkden-lab/ozone/internal/httputil"
	"github.com/darkden-lab/ozone/internal/logging"
)

// Authenticate resolves the caller through a and stores the identity on the
// request context. OPTIONS requests pass through anonymously so that CORS
// preflights and enumeration stay reachable.
func Authenticate(a auth.Authenticator, logger *slog.Logger) mux.MiddlewareFunc {
	logger = logging.OrDiscard(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				ctx := auth.ContextWithIdentity(r.Context(), auth.Identity{Name: auth.Anonymous, Method: auth.ModeNone})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			id, err := a.Authenticate(r)
			if err != nil {
				logger.Debug("authentication rejected", "path", r.URL.Path, "ip", clientIP(r), "error", err)
				if _, ok := a.(*auth.BasicAuth); ok {
					w.Header().Set("WWW-Authenticate", `Basic realm="ozone"`)
				}
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
