package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the extraction pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Extractions      *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	UploadBytes      prometheus.Histogram
}

// New creates the metrics and registers them on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_scanner_extractions_total",
			Help: "Receipt extraction requests by outcome",
		}, []string{"outcome", "class"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expense_scanner_provider_request_duration_seconds",
			Help:    "Latency of vision model completion calls",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider"}),
		UploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "expense_scanner_upload_bytes",
			Help:    "Size of accepted receipt uploads",
			Buckets: prometheus.ExponentialBuckets(64<<10, 2, 10),
		}),
	}
}

// ObserveExtraction counts a finished extraction. outcome is "success" or a failure kind.
func (m *Metrics) ObserveExtraction(outcome, class string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(outcome, class).Inc()
}

// ObserveProviderCall records how long a completion call took.
func (m *Metrics) ObserveProviderCall(provider string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveUpload records the size of an upload that passed intake.
func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.UploadBytes.Observe(float64(size))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
