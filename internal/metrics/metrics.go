// Package metrics exposes Prometheus collectors for the frontier service.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the frontier collectors. A nil *Recorder is valid and records
// nothing, so tests and tools can skip metrics entirely.
type Recorder struct {
	items       *prometheus.CounterVec
	discovered  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	artifacts   *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	rateLimited prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors against reg. When reg is also a Gatherer it
// backs Handler.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_items_total",
			Help: "Items processed by pipeline stages, partitioned by disposition.",
		}, []string{"stage", "disposition"}),
		discovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_discovered_total",
			Help: "Entities inserted into the frontier by discovery.",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_transitions_total",
			Help: "Lifecycle updates applied, partitioned by requested state.",
		}, []string{"kind", "state"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_artifacts_total",
			Help: "Artifact persist attempts partitioned by result.",
		}, []string{"kind", "result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_store_errors_total",
			Help: "Infrastructure errors returned by stores.",
		}, []string{"stage"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frontier_api_rate_limited_total",
			Help: "API requests rejected by the per-client rate limit.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"method", "route"}),
	}
	for _, collector := range []prometheus.Collector{
		r.items,
		r.discovered,
		r.transitions,
		r.artifacts,
		r.storeErrors,
		r.rateLimited,
		r.httpRequests,
		r.httpDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register frontier collector: %w", err)
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	} else {
		r.gatherer = prometheus.DefaultGatherer
	}
	return r, nil
}

// ObserveItem counts one item handled by stage.
func (r *Recorder) ObserveItem(stage, disposition string) {
	if r == nil {
		return
	}
	r.items.WithLabelValues(stage, disposition).Inc()
}

// ObserveDiscovered counts newly inserted entities of kind.
func (r *Recorder) ObserveDiscovered(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.discovered.WithLabelValues(kind).Add(float64(n))
}

// ObserveTransition counts a lifecycle update.
func (r *Recorder) ObserveTransition(kind, state string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(kind, state).Inc()
}

// ObserveArtifact counts a persist attempt.
func (r *Recorder) ObserveArtifact(kind, result string) {
	if r == nil {
		return
	}
	r.artifacts.WithLabelValues(kind, result).Inc()
}

// ObserveStoreError counts an infrastructure failure seen by stage.
func (r *Recorder) ObserveStoreError(stage string) {
	if r == nil {
		return
	}
	r.storeErrors.WithLabelValues(stage).Inc()
}

// ObserveRateLimited counts an API request rejected with 429.
func (r *Recorder) ObserveRateLimited() {
	if r == nil {
		return
	}
	r.rateLimited.Inc()
}

// Handler exposes the registry the recorder was built with.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Middleware is a chi middleware that records HTTP request metrics.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r == nil {
			next.ServeHTTP(w, req)
			return
		}
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, req)

		routePattern := "unknown"
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		r.httpRequests.WithLabelValues(req.Method, strconv.Itoa(ww.status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
