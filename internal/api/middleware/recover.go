package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// RecoverMiddleware turns a handler panic into a 500 problem response. An open
// ledger transaction is rolled back by its own deferred cleanup before the
// panic reaches here.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", TraceIDFromContext(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				)
				writeProblem(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
