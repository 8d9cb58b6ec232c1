package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitMetrics_Idempotent(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("InitMetrics panicked: %v", r)
		}
	}()
	InitMetrics()
	InitMetrics()
}

func TestHandler_ServesNodeCounters(t *testing.T) {
	before := testutil.ToFloat64(SamplesTotal.WithLabelValues(ResultOK))
	SamplesTotal.WithLabelValues(ResultOK).Inc()
	if got := testutil.ToFloat64(SamplesTotal.WithLabelValues(ResultOK)); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "capteur_samples_total") {
		t.Fatalf("capteur_samples_total missing from exposition")
	}
}
