package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	webhookEventCounter     *prometheus.CounterVec
	payoutTransitionCounter *prometheus.CounterVec
	walletConflictCounter   prometheus.Counter
	walletNegativeGauge     prometheus.Gauge
	idempotencyCounter      *prometheus.CounterVec
	manualReviewQueueGauge  prometheus.Gauge
	manualReviewCounter     *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		webhookEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound gateway event outcomes",
		}, []string{"outcome"})

		payoutTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Withdrawal lifecycle transitions",
		}, []string{"stage"})

		walletConflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_version_conflicts_total",
			Help: "Wallet optimistic-lock conflicts that triggered a retry",
		})

		walletNegativeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_negative_balances",
			Help: "Wallets currently holding a negative balance",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		manualReviewQueueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "manual_review_queue_size",
			Help: "Current number of transactions waiting in manual review",
		})

		manualReviewCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "manual_review_transitions_total",
			Help: "Manual review escalations and resolutions",
		}, []string{"action"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			webhookEventCounter,
			payoutTransitionCounter,
			walletConflictCounter,
			walletNegativeGauge,
			idempotencyCounter,
			manualReviewQueueGauge,
			manualReviewCounter,
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

func IncrementWebhookEvent(outcome string) {
	if webhookEventCounter == nil {
		return
	}
	webhookEventCounter.WithLabelValues(outcome).Inc()
}

func IncrementPayoutTransition(stage string) {
	if payoutTransitionCounter == nil {
		return
	}
	payoutTransitionCounter.WithLabelValues(stage).Inc()
}

func IncrementWalletConflict() {
	if walletConflictCounter == nil {
		return
	}
	walletConflictCounter.Inc()
}

func SetNegativeWalletCount(count int64) {
	if walletNegativeGauge == nil {
		return
	}
	walletNegativeGauge.Set(float64(count))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func SetManualReviewQueueSize(size int64) {
	if manualReviewQueueGauge == nil {
		return
	}
	manualReviewQueueGauge.Set(float64(size))
}

func IncrementManualReviewTransition(action string) {
	if manualReviewCounter == nil {
		return
	}
	manualReviewCounter.WithLabelValues(action).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
