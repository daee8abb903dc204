package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rpcCalls      *prometheus.CounterVec
	rpcLatency    *prometheus.HistogramVec
	failovers     *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	batchDispatch *prometheus.CounterVec
	batchSize     *prometheus.HistogramVec
	webhooks      *prometheus.CounterVec
	signals       *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		rpcCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_rpc_calls_total",
				Help: "Total RPC calls by provider, method and outcome",
			},
			[]string{"provider", "method", "outcome"},
		),
		rpcLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solgate_rpc_duration_seconds",
				Help:    "Upstream RPC call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		failovers: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_failovers_total",
				Help: "Failover retries by source and destination provider",
			},
			[]string{"from", "to"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_cache_hits_total",
				Help: "Cache hits by tier",
			},
			[]string{"tier"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_cache_misses_total",
				Help: "Cache misses by tier",
			},
			[]string{"tier"},
		),
		batchDispatch: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_batch_dispatches_total",
				Help: "Coalesced batch dispatches by upstream method",
			},
			[]string{"method"},
		),
		batchSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solgate_batch_size",
				Help:    "Number of keys per coalesced batch",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"method"},
		),
		webhooks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_webhooks_total",
				Help: "Webhook deliveries by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_signals_total",
				Help: "Trading signals emitted by type",
			},
			[]string{"type"},
		),
		publishes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_signal_publishes_total",
				Help: "Signal sink deliveries by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solgate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordRPCCall(provider, method, outcome string) {
	r.rpcCalls.WithLabelValues(provider, method, outcome).Inc()
}

func (r *Recorder) RecordRPCLatency(provider string, seconds float64) {
	r.rpcLatency.WithLabelValues(provider).Observe(seconds)
}

func (r *Recorder) RecordFailover(from, to string) {
	r.failovers.WithLabelValues(from, to).Inc()
}

func (r *Recorder) RecordCacheHit(tier string) {
	r.cacheHits.WithLabelValues(tier).Inc()
}

func (r *Recorder) RecordCacheMiss(tier string) {
	r.cacheMisses.WithLabelValues(tier).Inc()
}

func (r *Recorder) RecordBatchDispatch(method string, size int) {
	r.batchDispatch.WithLabelValues(method).Inc()
	r.batchSize.WithLabelValues(method).Observe(float64(size))
}

func (r *Recorder) RecordWebhook(source, outcome string) {
	r.webhooks.WithLabelValues(source, outcome).Inc()
}

func (r *Recorder) RecordSignal(signalType string) {
	r.signals.WithLabelValues(signalType).Inc()
}

func (r *Recorder) RecordPublish(sink, outcome string) {
	r.publishes.WithLabelValues(sink, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
