package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/hold-ledger/internal/observability"
	"github.com/ayo6706/hold-ledger/internal/service"
	"go.uber.org/zap"
)

const workerName = "reconciliation"

// Reconciler is the integrity check run on every tick.
type Reconciler interface {
	Run(ctx context.Context) (service.ReconciliationReport, error)
}

// ReconciliationWorker runs periodic ledger reconciliation checks.
type ReconciliationWorker struct {
	checker  Reconciler
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	last    service.ReconciliationReport
	lastErr error
	runs    int
}

// NewReconciliationWorker constructs a worker with a default hourly interval.
func NewReconciliationWorker(checker Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		checker:  checker,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs reconciliation at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// Last returns the most recent report, the number of completed runs and the last error.
func (w *ReconciliationWorker) Last() (service.ReconciliationReport, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.runs, w.lastErr
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	report, err := w.checker.Run(ctx)

	w.mu.Lock()
	w.last, w.lastErr = report, err
	w.runs++
	w.mu.Unlock()

	switch {
	case err != nil:
		observability.IncrementWorkerRun(workerName, "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
	case !report.Balanced():
		observability.IncrementWorkerRun(workerName, "imbalanced")
	default:
		observability.IncrementWorkerRun(workerName, "success")
	}
}
