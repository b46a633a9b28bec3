package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	resolverLookups *prometheus.CounterVec
	catalogQueries  prometheus.Counter
	cacheResets     prometheus.Counter
	auditWrites     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stitchline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stitchline_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	resolverLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stitchline_unit_resolver_lookups_total",
		Help: "Unit resolver lookups by outcome (direct, standardized, alias, partial, miss).",
	}, []string{"outcome"})
	catalogQueries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stitchline_unit_catalog_batch_queries_total",
		Help: "Catalog round trips issued by batch unit resolution.",
	})
	cacheResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stitchline_unit_cache_resets_total",
		Help: "Whole-cache resets of the unit detail cache (TTL expiry or manual).",
	})
	auditWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stitchline_unit_audit_writes_total",
		Help: "Unit change audit writes by storage target and result.",
	}, []string{"target", "result"})
	registry.MustRegister(requests, duration, resolverLookups, catalogQueries, cacheResets, auditWrites)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		resolverLookups: resolverLookups,
		catalogQueries:  catalogQueries,
		cacheResets:     cacheResets,
		auditWrites:     auditWrites,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveResolverLookup counts one resolver lookup by outcome.
func (m *Metrics) ObserveResolverLookup(outcome string) {
	if m == nil {
		return
	}
	m.resolverLookups.WithLabelValues(outcome).Inc()
}

// ObserveCatalogBatchQuery counts one batched catalog round trip.
func (m *Metrics) ObserveCatalogBatchQuery() {
	if m == nil {
		return
	}
	m.catalogQueries.Inc()
}

// ObserveCacheReset counts one whole-cache reset of the unit detail cache.
func (m *Metrics) ObserveCacheReset() {
	if m == nil {
		return
	}
	m.cacheResets.Inc()
}

// ObserveAuditWrite counts one audit write against the target that served it.
func (m *Metrics) ObserveAuditWrite(target, result string) {
	if m == nil {
		return
	}
	m.auditWrites.WithLabelValues(target, result).Inc()
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
