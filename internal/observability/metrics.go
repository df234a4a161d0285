package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	transferCounter        *prometheus.CounterVec
	holdTransitionCounter  *prometheus.CounterVec
	lockWaitHistogram      prometheus.Histogram
	ledgerImbalanceCounter *prometheus.CounterVec
	balanceMismatchGauge   prometheus.Gauge
	idempotencyCounter     *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transferCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Transfers written to the ledger",
		}, []string{"code"})

		holdTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorization_hold_operations_total",
			Help: "Authorization hold operations by outcome",
		}, []string{"operation", "outcome"})

		lockWaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_lock_wait_seconds",
			Help:    "Time spent acquiring account locks",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Number of times double-entry balances diverged",
		}, []string{"check"})

		balanceMismatchGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_balance_mismatches",
			Help: "Cached balances disagreeing with their lines at the last check",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			transferCounter,
			holdTransitionCounter,
			lockWaitHistogram,
			ledgerImbalanceCounter,
			balanceMismatchGauge,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransfer(code string) {
	if transferCounter == nil {
		return
	}
	transferCounter.WithLabelValues(code).Inc()
}

func IncrementHoldOperation(operation, outcome string) {
	if holdTransitionCounter == nil {
		return
	}
	holdTransitionCounter.WithLabelValues(operation, outcome).Inc()
}

func ObserveLockWait(d time.Duration) {
	if lockWaitHistogram == nil {
		return
	}
	lockWaitHistogram.Observe(d.Seconds())
}

func IncrementLedgerImbalance(check string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(check).Inc()
}

func SetBalanceMismatches(n int) {
	if balanceMismatchGauge == nil {
		return
	}
	balanceMismatchGauge.Set(float64(n))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
