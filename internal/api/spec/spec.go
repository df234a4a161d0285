package spec

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var document []byte

// DocumentPath is where the OpenAPI document is served; the Swagger UI loads it from there.
const DocumentPath = "/openapi.yaml"

// OpenAPIHandler serves the hold-ledger OpenAPI document.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(document)
	}
}
