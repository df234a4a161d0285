package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/hold-ledger/internal/observability"
	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests no route claimed, keeping raw ids out of labels.
const unmatchedRoute = "unmatched"

// MetricsMiddleware records request durations labelled by route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rw, r)

		observability.ObserveHTTP(r.Method, routePattern(r), rw.code(), time.Since(start))
	})
}

// routePattern is the matched chi pattern, e.g. /v1/holds/{id}/capture.
// It is complete only after the router has served the request.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
