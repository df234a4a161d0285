package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimiter caps requests per client IP and endpoint, so a client retrying
// captures on one hold does not also lock it out of reads.
func RateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, r, http.StatusTooManyRequests, "rate-limit-exceeded",
				fmt.Sprintf("rate limit of %d req/s exceeded", rps))
		}),
	)
}
