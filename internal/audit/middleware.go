package audit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/auth"
	"github.com/darkden-lab/ozone/internal/logging"
	"github.com/darkden-lab/ozone/internal/middleware"
)

// Note carries request details that only the handler knows.
type Note struct {
	mu        sync.Mutex
	requestID string
	plugin    string
}

type noteKey struct{}

// Annotate attaches the request ID and plugin to the audit entry of the
// request carried by ctx. It is a no-op outside the audit middleware.
func Annotate(ctx context.Context, requestID, plugin string) {
	n, ok := ctx.Value(noteKey{}).(*Note)
	if !ok {
		return
	}
	n.mu.Lock()
	n.requestID, n.plugin = requestID, plugin
	n.mu.Unlock()
}

// Middleware records every request passing through it. Install it after the
// authentication middleware so the identity is known.
func Middleware(rec Recorder, logger *slog.Logger) mux.MiddlewareFunc {
	logger = logging.OrDiscard(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			note := &Note{}
			sw := middleware.NewStatusRecorder(w)
			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), noteKey{}, note)))

			note.mu.Lock()
			entry := Entry{
				RequestID:  note.requestID,
				Identity:   auth.NameFromContext(r.Context()),
				Method:     r.Method,
				Path:       r.URL.Path,
				Plugin:     note.plugin,
				Status:     sw.Status(),
				DurationMs: float64(time.Since(start).Microseconds()) / 1000,
				IPAddress:  remoteHost(r),
				UserAgent:  r.UserAgent(),
				Timestamp:  start.UTC(),
			}
			note.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()
			if err := rec.Record(ctx, entry); err != nil {
				logger.Warn("audit: failed to record entry", "path", entry.Path, "error", err)
			}
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
