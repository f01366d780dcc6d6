package ws

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker returns a CheckOrigin function for websocket.Upgrader.
// Requests without an Origin header are accepted. With an empty allow list
// only same-host origins pass.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	list := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			list = append(list, o)
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Same-origin request or non-browser client.
			return true
		}
		if len(list) == 0 {
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		}
		for _, a := range list {
			if a == "*" || strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
