package spec

import (
	"embed"
	"net/http"
)

//go:embed openapi.yaml
var openapiFS embed.FS

// OpenAPIHandler serves the embedded OpenAPI document for the public API.
func OpenAPIHandler() http.HandlerFunc {
	doc, readErr := openapiFS.ReadFile("openapi.yaml")
	return func(w http.ResponseWriter, r *http.Request) {
		if readErr != nil {
			http.Error(w, "openapi document not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}
}
