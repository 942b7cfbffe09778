package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	viewsComputed *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
	lastClose     prometheus.Gauge
	latency       *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg. A nil reg means the
// default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		viewsComputed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbbc_views_computed_total",
				Help: "Residual value views computed, by trigger",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbbc_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"kind"},
		),
		cacheRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbbc_cache_requests_total",
				Help: "View cache lookups by result",
			},
			[]string{"result"},
		),
		lastClose: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "cbbc_last_hsi_close",
				Help: "Index close of the most recently computed view",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cbbc_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordViewComputed(source string) {
	r.viewsComputed.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCache counts a cache lookup; result is "hit", "miss" or "error".
func (r *Recorder) RecordCache(result string) {
	r.cacheRequests.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordLastClose(price float64) {
	r.lastClose.Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
