// Package docs serves the admin API description and the manifest schema.
package docs

import (
	"embed"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/manifest"
)

//go:embed openapi.yaml
var openAPISpec embed.FS

// RegisterRoutes serves the OpenAPI document, a Swagger UI page and the manifest
// JSON Schema.
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/_ozone/docs/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openAPISpec.ReadFile("openapi.yaml")
		if err != nil {
			http.Error(w, "openapi document not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
	}).Methods("GET")

	r.HandleFunc("/_ozone/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerUIHTML))
	}).Methods("GET")

	r.HandleFunc("/_ozone/schema", func(w http.ResponseWriter, r *http.Request) {
		data, err := manifest.SchemaJSON()
		if err != nil {
			http.Error(w, "schema unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(data)
	}).Methods("GET")
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Ozone Gateway Admin API</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/_ozone/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
