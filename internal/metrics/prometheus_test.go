package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics("test", reg), reg
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("", reg)
	m.RecordEvent("onAdReceived")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "owbridge_events_sent_total" {
			found = true
		}
	}
	if !found {
		t.Error("Expected owbridge_events_sent_total to be registered")
	}
}

func TestRecordCall(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordCall("initBannerAd", OutcomeSuccess, time.Millisecond)
	m.RecordCall("initBannerAd", OutcomeSuccess, time.Millisecond)
	m.RecordCall("initBannerAd", OutcomeError, time.Millisecond)

	if got := testutil.ToFloat64(m.MethodCalls.WithLabelValues("initBannerAd", OutcomeSuccess)); got != 2 {
		t.Errorf("Expected 2 successful calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.MethodCalls.WithLabelValues("initBannerAd", OutcomeError)); got != 1 {
		t.Errorf("Expected 1 failed call, got %v", got)
	}
}

func TestLiveAdsGauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.AdRegistered("banner")
	m.AdRegistered("banner")
	m.AdUnregistered("banner")

	if got := testutil.ToFloat64(m.LiveAds.WithLabelValues("banner")); got != 1 {
		t.Errorf("Expected 1 live banner, got %v", got)
	}
}

func TestSetCircuitState(t *testing.T) {
	m, _ := newTestMetrics(t)

	tests := map[string]float64{"closed": 0, "open": 1, "half-open": 2}
	for state, want := range tests {
		m.SetCircuitState(state)
		if got := testutil.ToFloat64(m.CircuitState); got != want {
			t.Errorf("state %s: expected %v, got %v", state, want, got)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordCall("x", OutcomeSuccess, 0)
	m.RecordDropped("x")
	m.RecordEvent("x")
	m.AdRegistered("banner")
	m.RecordAuction("banner", "ok", 0)
	m.RecordTrackerPing("win", true)
}

func TestHandlerFor(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordDropped("POBBannerView")

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_dropped_calls_total{route="POBBannerView"} 1`) {
		t.Errorf("Dropped call counter missing from exposition:\n%s", rec.Body.String())
	}
}
