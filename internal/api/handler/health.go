package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ayo6706/hold-ledger/internal/service"
	"github.com/redis/go-redis/v9"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LedgerCheck exposes the latest reconciliation outcome.
type LedgerCheck interface {
	Last() (service.ReconciliationReport, int, error)
}

// HealthHandler exposes liveness, readiness and ledger integrity endpoints.
type HealthHandler struct {
	store  Pinger
	redis  redis.Cmdable
	ledger LedgerCheck
}

// NewHealthHandler builds the health endpoints; redis and ledger may be nil.
func NewHealthHandler(store Pinger, redis redis.Cmdable, ledger LedgerCheck) *HealthHandler {
	return &HealthHandler{store: store, redis: redis, ledger: ledger}
}

// Live always reports OK; a running process is live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks the store and, when configured, Redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "health/store-unavailable", "store unavailable")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/redis-unavailable", "redis unavailable")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type ledgerStatus struct {
	Status      string `json:"status"`
	Runs        int    `json:"runs"`
	LastLineSeq int64  `json:"last_line_seq"`
	LedgerNet   int64  `json:"ledger_net"`
	Mismatches  int    `json:"balance_mismatches"`
}

// Ledger reports the last reconciliation run. An imbalanced ledger is 503 so
// probes and alerts can key off the status code.
func (h *HealthHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		RespondError(w, r, http.StatusNotFound, "health/ledger-check-disabled", "reconciliation is not running")
		return
	}
	report, runs, err := h.ledger.Last()
	if runs == 0 {
		RespondJSON(w, http.StatusOK, ledgerStatus{Status: "pending"})
		return
	}
	if err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "health/ledger-check-failed", "last reconciliation run failed")
		return
	}

	out := ledgerStatus{
		Status:      "balanced",
		Runs:        runs,
		LastLineSeq: report.LastLineSeq,
		LedgerNet:   report.LedgerNet,
		Mismatches:  len(report.Mismatches),
	}
	status := http.StatusOK
	if !report.Balanced() {
		out.Status = "imbalanced"
		status = http.StatusServiceUnavailable
	}
	RespondJSON(w, status, out)
}
