package response

import (
	"net/http"
	"strings"

	"github.com/darkden-lab/ozone/internal/manifest"
)

// Enumeration is the self-description returned instead of plugin results.
type Enumeration struct {
	Plugin      string             `json:"plugin"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Headers     []Header           `json:"headers"`
	Route       string             `json:"route"`
	ServiceName string             `json:"serviceName"`
	Resource    *manifest.Resource `json:"resource"`
}

// Header is one enabled route option.
type Header struct {
	Header string `json:"header"`
	Value  bool   `json:"value"`
}

// Enumerate describes m as seen from route. The service name is the last
// non-empty segment of route; the resource is the last one declaring it.
func Enumerate(m *manifest.Manifest, route string) *Enumeration {
	en := &Enumeration{
		Plugin:      m.Informational.Plugin,
		Name:        m.Informational.Name,
		Description: m.Informational.Description,
		Headers:     []Header{},
		Route:       route,
		ServiceName: ServiceName(route),
	}
	for _, name := range m.EnabledOptions() {
		en.Headers = append(en.Headers, Header{Header: name, Value: true})
	}
	if res, ok := m.LastResource(en.ServiceName); ok {
		en.Resource = res
	}
	return en
}

// ServiceName returns the last non-empty path segment of route.
func ServiceName(route string) string {
	var last string
	for _, tok := range strings.Split(route, "/") {
		if tok != "" {
			last = tok
		}
	}
	return last
}

// Cross-origin header values sent for manifests that enable CORS.
const (
	CORSAllowHeaders = "X-Requested-With, Content-Type"
	CORSAllowMethods = "POST, GET, PUT, DELETE, OPTIONS"
)

// ApplyCORS sets cross-origin headers when m opts in.
func ApplyCORS(h http.Header, m *manifest.Manifest) {
	if m == nil || !m.CORSEnabled() {
		return
	}
	h.Set("Access-Control-Allow-Origin", m.Route.CORS.Whitelist)
	h.Set("Access-Control-Allow-Headers", CORSAllowHeaders)
	h.Set("Access-Control-Allow-Methods", CORSAllowMethods)
}
