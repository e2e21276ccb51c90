package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	intentTerminalCounter *prometheus.CounterVec
	intentAlertCounter    *prometheus.CounterVec
	queueDepthGauge       prometheus.Gauge
	escrowCounter         *prometheus.CounterVec
	conservationCounter   *prometheus.CounterVec
	idempotencyCounter    *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
	ledgerOpHistogram     *prometheus.HistogramVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		intentTerminalCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intents_terminal_total",
			Help: "Intents reaching a terminal state",
		}, []string{"status"})

		intentAlertCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intent_failure_alerts_total",
			Help: "Operator alerts raised for permanently failed intents",
		}, []string{"type"})

		queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intent_queue_depth",
			Help: "Current number of intents waiting to be processed",
		})

		escrowCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Escrow lifecycle transitions",
		}, []string{"status"})

		conservationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_conservation_violations_total",
			Help: "Number of times escrow conservation checks failed",
		}, []string{"check"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		ledgerOpHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Ledger gateway call latency by operation and outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "outcome"})

		prometheus.MustRegister(
			httpDurationHistogram,
			intentTerminalCounter,
			intentAlertCounter,
			queueDepthGauge,
			escrowCounter,
			conservationCounter,
			idempotencyCounter,
			workerRunCounter,
			ledgerOpHistogram,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementIntentTerminal(status string) {
	if intentTerminalCounter == nil {
		return
	}
	intentTerminalCounter.WithLabelValues(status).Inc()
}

func IncrementIntentAlert(intentType string) {
	if intentAlertCounter == nil {
		return
	}
	intentAlertCounter.WithLabelValues(intentType).Inc()
}

func SetQueueDepth(depth int64) {
	if queueDepthGauge == nil {
		return
	}
	queueDepthGauge.Set(float64(depth))
}

func IncrementEscrowTransition(status string) {
	if escrowCounter == nil {
		return
	}
	escrowCounter.WithLabelValues(status).Inc()
}

func IncrementConservationViolation(check string) {
	if conservationCounter == nil {
		return
	}
	conservationCounter.WithLabelValues(check).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func ObserveLedgerOp(op string, duration time.Duration, err error) {
	if ledgerOpHistogram == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ledgerOpHistogram.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
