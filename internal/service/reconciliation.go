package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayo6706/hold-ledger/internal/observability"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationReport is the outcome of one integrity check.
type ReconciliationReport struct {
	LastLineSeq int64
	LedgerNet   int64
	Mismatches  []repository.BalanceMismatch
}

// Balanced reports whether every check passed.
func (r ReconciliationReport) Balanced() bool {
	return r.LedgerNet == 0 && len(r.Mismatches) == 0
}

// ReconciliationService verifies ledger integrity invariants.
type ReconciliationService struct {
	store QueryStore
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run checks that all lines net to zero and that every cached balance equals
// both the sum of its lines and the snapshot on its latest line. The result
// is recorded as a line check.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	var report ReconciliationReport
	queries := s.store.Queries()

	seq, err := queries.GetLastLineSeq(ctx)
	if err != nil {
		return report, fmt.Errorf("read last line seq: %w", err)
	}
	report.LastLineSeq = seq

	net, err := queries.GetLedgerNet(ctx)
	if err != nil {
		return report, fmt.Errorf("run ledger net query: %w", err)
	}
	report.LedgerNet = net

	mismatches, err := queries.ListBalanceMismatches(ctx)
	if err != nil {
		return report, fmt.Errorf("list balance mismatches: %w", err)
	}
	report.Mismatches = mismatches
	observability.SetBalanceMismatches(len(mismatches))

	var log strings.Builder
	if net != 0 {
		observability.IncrementLedgerImbalance("net")
		zap.L().Error("CRITICAL: ledger imbalance detected", zap.Int64("net_amount", net))
		fmt.Fprintf(&log, "ledger net %d\n", net)
	}
	for _, m := range mismatches {
		observability.IncrementLedgerImbalance("balance")
		zap.L().Error("account balance disagrees with lines",
			zap.Stringer("account", m.Account),
			zap.Int64("balance", m.Balance),
			zap.Int64("lines_sum", m.LinesSum),
			zap.Int64("latest_snapshot", m.LatestSnapshot),
		)
		fmt.Fprintf(&log, "%s balance %d lines %d snapshot %d\n", m.Account, m.Balance, m.LinesSum, m.LatestSnapshot)
	}

	if _, err := queries.InsertLineCheck(ctx, repository.InsertLineCheckParams{
		LastLineSeq: seq,
		ErrorsFound: !report.Balanced(),
		Log:         log.String(),
	}); err != nil {
		return report, fmt.Errorf("record line check: %w", err)
	}

	if report.Balanced() {
		zap.L().Info("Ledger Balanced", zap.Int64("last_line_seq", seq))
	}
	return report, nil
}
