package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	observations *prometheus.CounterVec
	signals      *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	windows      prometheus.Counter
	decisions    *prometheus.CounterVec
	queueDrops   *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
	weights      *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		observations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_observations_total",
				Help: "Market observations accepted into the engine",
			},
			[]string{"token"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_signals_total",
				Help: "Signals recorded into consensus windows",
			},
			[]string{"signal_type", "origin"},
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_rejected_total",
				Help: "Inbound events rejected by validation",
			},
			[]string{"kind"},
		),
		windows: f.NewCounter(
			prometheus.CounterOpts{
				Name: "signalforge_windows_opened_total",
				Help: "Consensus windows opened",
			},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_consensus_decisions_total",
				Help: "Consensus results by decision",
			},
			[]string{"decision"},
		),
		queueDrops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_shard_queue_dropped_total",
				Help: "Events dropped from full shard queues",
			},
			[]string{"shard"},
		),
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalforge_shard_queue_depth",
				Help: "Pending events per shard",
			},
			[]string{"shard"},
		),
		weights: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalforge_source_weight",
				Help: "Current learned weight per source",
			},
			[]string{"source_id"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalforge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordObservation(token string) {
	r.observations.WithLabelValues(token).Inc()
}

func (r *Recorder) RecordSignal(signalType, origin string) {
	r.signals.WithLabelValues(signalType, origin).Inc()
}

func (r *Recorder) RecordRejected(kind string) {
	r.rejected.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordWindowOpened() {
	r.windows.Inc()
}

func (r *Recorder) RecordDecision(decision string) {
	r.decisions.WithLabelValues(decision).Inc()
}

func (r *Recorder) RecordQueueDrop(shard string) {
	r.queueDrops.WithLabelValues(shard).Inc()
}

func (r *Recorder) RecordQueueDepth(shard string, depth int) {
	r.queueDepth.WithLabelValues(shard).Set(float64(depth))
}

func (r *Recorder) RecordWeight(sourceID string, weight float64) {
	r.weights.WithLabelValues(sourceID).Set(weight)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordObservation(string) {}
func (Nop) RecordSignal(string, string) {}
func (Nop) RecordRejected(string) {}
func (Nop) RecordWindowOpened() {}
func (Nop) RecordDecision(string) {}
func (Nop) RecordQueueDrop(string) {}
func (Nop) RecordQueueDepth(string, int) {}
func (Nop) RecordWeight(string, float64) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
