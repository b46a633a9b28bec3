package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveResolverLookup("direct")
	metrics.ObserveCatalogBatchQuery()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "stitchline_unit_resolver_lookups_total") {
		t.Fatalf("expected body to contain resolver lookup metric, got: %s", body)
	}
	if !strings.Contains(body, "stitchline_unit_catalog_batch_queries_total") {
		t.Fatalf("expected body to contain catalog query metric, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/units", nil)
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "stitchline_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveResolverLookup("miss")
	m.ObserveCatalogBatchQuery()
	m.ObserveCacheReset()
	m.ObserveAuditWrite("primary", "ok")
	if m.Middleware(nil) != nil {
		t.Fatalf("nil metrics middleware should pass handler through")
	}
}
