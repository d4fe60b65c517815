package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{path...}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
	})
	h := Middleware(mux)

	for _, p := range []string{"/abc12342", "/def45643", "/xyz78944"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /{path...}", "206"))
	if got != 3 {
		t.Errorf("requests under route pattern = %v, want 3", got)
	}
}

func TestMiddlewareUnmatched(t *testing.T) {
	h := Middleware(http.NewServeMux())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nothing", nil))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got < 1 {
		t.Errorf("unmatched requests = %v, want >= 1", got)
	}
}

func TestSessionWorkloadGauge(t *testing.T) {
	SetSessionWorkload("primary", 5)
	SetSessionWorkload("primary", 2)
	if got := testutil.ToFloat64(sessionWorkload.WithLabelValues("primary")); got != 2 {
		t.Errorf("workload = %v, want 2", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordDelivery("proxy", "ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "filetolink_deliveries_total") {
		t.Error("metrics output is missing filetolink_deliveries_total")
	}
}
