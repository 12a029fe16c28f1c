// Package metrics exposes Prometheus metrics for the layer engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds a private registry so tests and multiple servers don't collide.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	reloadsTotal        *prometheus.CounterVec
	reloadDuration      prometheus.Histogram
	detailLookups       *prometheus.CounterVec
	styleFallbacks      *prometheus.CounterVec
	layerFeatures       *prometheus.GaugeVec
}

// New creates a fresh registry with all metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fra",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests served",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fra",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reloadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fra",
		Name:      "reloads_total",
		Help:      "Feature collection reloads by outcome",
	}, []string{"outcome"})

	reloadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fra",
		Name:      "reload_duration_seconds",
		Help:      "Duration of feature collection reloads from request to layer swap",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	detailLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fra",
		Name:      "detail_lookups_total",
		Help:      "Detail record lookups by result (hit, fetched, error)",
	}, []string{"result"})

	styleFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fra",
		Name:      "style_fallbacks_total",
		Help:      "Layers rendered with the fallback style, by category",
	}, []string{"category"})

	layerFeatures := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fra",
		Name:      "layer_features",
		Help:      "Features held by each category layer after the last load",
	}, []string{"category"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		reloadsTotal,
		reloadDuration,
		detailLookups,
		styleFallbacks,
		layerFeatures,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		reloadsTotal:        reloadsTotal,
		reloadDuration:      reloadDuration,
		detailLookups:       detailLookups,
		styleFallbacks:      styleFallbacks,
		layerFeatures:       layerFeatures,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveReload records a reload outcome: loaded, failed or superseded.
func (m *Metrics) ObserveReload(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reloadsTotal.WithLabelValues(outcome).Inc()
	m.reloadDuration.Observe(duration.Seconds())
}

// ObserveLayers replaces the per-category feature gauges.
func (m *Metrics) ObserveLayers(counts map[string]int) {
	if m == nil {
		return
	}
	m.layerFeatures.Reset()
	for c, n := range counts {
		m.layerFeatures.WithLabelValues(c).Set(float64(n))
	}
}

// IncDetailLookup counts a detail lookup by result.
func (m *Metrics) IncDetailLookup(result string) {
	if m == nil {
		return
	}
	m.detailLookups.WithLabelValues(result).Inc()
}

// IncStyleFallback counts a layer that had no style of its own.
func (m *Metrics) IncStyleFallback(category string) {
	if m == nil {
		return
	}
	m.styleFallbacks.WithLabelValues(category).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
