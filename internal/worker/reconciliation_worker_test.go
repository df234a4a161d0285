package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/hold-ledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	calls  atomic.Int32
	report service.ReconciliationReport
	err    error
}

func (f *fakeReconciler) Run(context.Context) (service.ReconciliationReport, error) {
	f.calls.Add(1)
	return f.report, f.err
}

func TestReconciliationWorkerRunsImmediatelyAndOnTicks(t *testing.T) {
	fake := &fakeReconciler{report: service.ReconciliationReport{LastLineSeq: 7}}
	w := NewReconciliationWorker(fake).WithInterval(5 * time.Millisecond)

	stop := w.Run(context.Background())
	defer stop()

	require.Eventually(t, func() bool { return fake.calls.Load() >= 3 }, time.Second, time.Millisecond)

	report, runs, err := w.Last()
	require.NoError(t, err)
	assert.Equal(t, int64(7), report.LastLineSeq)
	assert.GreaterOrEqual(t, runs, 3)
}

func TestReconciliationWorkerKeepsLastError(t *testing.T) {
	fake := &fakeReconciler{err: errors.New("db down")}
	w := NewReconciliationWorker(fake).WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return fake.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	_, runs, err := w.Last()
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 1, runs)
}

func TestReconciliationWorkerStopIsIdempotent(t *testing.T) {
	w := NewReconciliationWorker(&fakeReconciler{}).WithInterval(time.Hour)
	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()
	w.Stop()
	w.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
