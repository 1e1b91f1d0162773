package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/mukhalis/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrument_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Instrument)
	r.Get("/api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/things/{id}", "GET", "418"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/"+id, nil))
	}
	after := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/things/{id}", "GET", "418"))

	if after-before != 2 {
		t.Errorf("expected 2 requests counted under the route pattern, got %v", after-before)
	}
}

func TestHandler_ServesRegistry(t *testing.T) {
	metrics.PushDeliveries.WithLabelValues("sent").Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mukhalis_push_deliveries_total") {
		t.Error("expected push counter in exposition output")
	}
}
