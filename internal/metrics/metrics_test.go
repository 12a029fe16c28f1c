package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveReload("loaded", time.Second)
	m.IncDetailLookup("hit")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/layers", http.StatusOK, 5*time.Millisecond)
	m.ObserveReload("loaded", 200*time.Millisecond)
	m.ObserveReload("superseded", 10*time.Millisecond)
	m.IncDetailLookup("hit")
	m.IncStyleFallback("wetland")
	m.ObserveLayers(map[string]int{"IFR": 3})

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		`fra_http_requests_total{method="GET",path="/api/v1/layers",status="200"} 1`,
		`fra_reloads_total{outcome="loaded"} 1`,
		`fra_reloads_total{outcome="superseded"} 1`,
		`fra_reload_duration_seconds_count 2`,
		`fra_detail_lookups_total{result="hit"} 1`,
		`fra_style_fallbacks_total{category="wetland"} 1`,
		`fra_layer_features{category="IFR"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body=%s", want, body)
		}
	}
}
