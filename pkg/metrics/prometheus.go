package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	analyses    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	confidence  *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a recorder registered with reg. Tests pass their own
// registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecouncil_analyses_total",
				Help: "Completed analyses by asset and resulting signal",
			},
			[]string{"asset", "signal"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecouncil_errors_total",
				Help: "Errors encountered, by kind",
			},
			[]string{"type"},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradecouncil_last_price",
				Help: "Last observed price per asset",
			},
			[]string{"asset"},
		),
		confidence: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradecouncil_confidence",
				Help: "Confidence of the latest recommendation per asset",
			},
			[]string{"asset"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecouncil_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts one finished analysis.
func (r *Recorder) RecordAnalysis(asset string, signal string) {
	r.analyses.WithLabelValues(asset, signal).Inc()
}

// RecordError counts an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice sets the last price gauge for an asset.
func (r *Recorder) RecordLastPrice(asset string, price float64) {
	r.lastPrice.WithLabelValues(asset).Set(price)
}

// RecordLatency observes operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordConfidence sets the confidence gauge for an asset.
func (r *Recorder) RecordConfidence(asset string, confidence float64) {
	r.confidence.WithLabelValues(asset).Set(confidence)
}

// Nop is a Recorder stand-in that records nothing. Used when metrics are
// switched off in configuration.
type Nop struct{}

func (Nop) RecordAnalysis(asset string, signal string) {}

func (Nop) RecordError(kind string) {}

func (Nop) RecordLastPrice(asset string, price float64) {}

func (Nop) RecordLatency(op string, seconds float64) {}

func (Nop) RecordConfidence(asset string, confidence float64) {}
