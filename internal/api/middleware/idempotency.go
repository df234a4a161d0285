package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/hold-ledger/internal/api/problem"
	"github.com/ayo6706/hold-ledger/internal/idempotency"
	"github.com/ayo6706/hold-ledger/internal/observability"
	"go.uber.org/zap"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "X-Idempotent-Replay"
)

// IdempotencyMiddleware requires an Idempotency-Key on money-moving requests.
// A finished response is replayed for a repeated key and body; server errors
// release the key so the request can be retried.
func IdempotencyMiddleware(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

type idempotencyGuard struct {
	store  *idempotency.Store
	logger *zap.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		observability.IncrementIdempotencyEvent("missing_key")
		writeProblem(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	hash := hashRequest(r.Method, r.URL.Path, body)

	rec, err := g.store.Lookup(r.Context(), key, hash)
	switch {
	case err == nil:
		g.replay(w, rec, "replay")
		return
	case errors.Is(err, idempotency.ErrHashMismatch):
		observability.IncrementIdempotencyEvent("hash_mismatch")
		writeProblem(w, r, http.StatusConflict, "idempotency/key-conflict", "Idempotency-Key was used with a different request")
		return
	case errors.Is(err, idempotency.ErrInProgress):
		g.await(w, r, key, hash)
		return
	case !errors.Is(err, idempotency.ErrNotFound):
		observability.IncrementIdempotencyEvent("lookup_error")
		g.logger.Warn("idempotency lookup failed", zap.Error(err), zap.String("key", key))
	}

	reserved, err := g.store.Reserve(r.Context(), key, hash, r.Method, r.URL.Path)
	if err != nil {
		observability.IncrementIdempotencyEvent("reserve_error")
		g.logger.Error("idempotency reserve failed", zap.Error(err), zap.String("key", key))
		writeProblem(w, r, http.StatusInternalServerError, "idempotency/unavailable", "idempotency unavailable")
		return
	}
	if !reserved {
		g.await(w, r, key, hash)
		return
	}
	observability.IncrementIdempotencyEvent("reserved")

	defer g.releaseOnPanic(r, key, hash)
	recorder := &bodyRecorder{ResponseWriter: w}
	next.ServeHTTP(recorder, r)
	g.settle(r, key, hash, recorder)
}

// releaseOnPanic frees key when the handler panics and passes the panic on to
// RecoverMiddleware.
func (g *idempotencyGuard) releaseOnPanic(r *http.Request, key, hash string) {
	rvr := recover()
	if rvr == nil {
		return
	}
	if err := g.store.Release(context.WithoutCancel(r.Context()), key, hash); err != nil {
		g.logger.Warn("idempotency release after panic failed", zap.Error(err), zap.String("key", key))
	} else {
		observability.IncrementIdempotencyEvent("released")
	}
	panic(rvr)
}

// settle records the response under key, or frees key when the outcome is
// worth retrying.
func (g *idempotencyGuard) settle(r *http.Request, key, hash string, rec *bodyRecorder) {
	ctx := r.Context()
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	if rec.status >= http.StatusInternalServerError {
		if err := g.store.Release(ctx, key, hash); err != nil {
			g.logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
			return
		}
		observability.IncrementIdempotencyEvent("released")
		return
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	if _, err := g.store.Finalize(ctx, key, hash, rec.status, rec.body.Bytes(), contentType); err != nil {
		observability.IncrementIdempotencyEvent("finalize_error")
		g.logger.Warn("idempotency finalize failed", zap.Error(err), zap.String("key", key))
		return
	}
	observability.IncrementIdempotencyEvent("finalized")
}

// await waits for a concurrent request with the same key and replays its result.
func (g *idempotencyGuard) await(w http.ResponseWriter, r *http.Request, key, hash string) {
	rec, err := g.store.WaitForCompletion(r.Context(), key, hash)
	if err == nil {
		g.replay(w, rec, "replay_after_wait")
		return
	}
	observability.IncrementIdempotencyEvent("in_progress_conflict")
	g.logger.Warn("idempotency wait failed", zap.Error(err), zap.String("key", key))
	writeProblem(w, r, http.StatusConflict, "idempotency/in-progress", "a request with this Idempotency-Key is still running")
}

func (g *idempotencyGuard) replay(w http.ResponseWriter, rec *idempotency.Record, event string) {
	observability.IncrementIdempotencyEvent(event)
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set(replayHeader, rec.ServedBy)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, slug, detail string) {
	problem.Write(w, r, status, problem.Type(slug), http.StatusText(status), detail)
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.Sum256(append([]byte(method+"|"+path+"|"), body...))
	return hex.EncodeToString(sum[:])
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (br *bodyRecorder) WriteHeader(code int) {
	br.status = code
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	br.body.Write(b)
	return br.ResponseWriter.Write(b)
}
