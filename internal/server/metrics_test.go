package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewServerMetrics_Registers verifies that all instruments register
// against the provided registry under the fitbot namespace.
func TestNewServerMetrics_Registers(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	// Touch each vector so it appears in the gather output.
	m.askRequestsTotal.WithLabelValues("answered").Inc()
	m.askDurationSeconds.WithLabelValues("answered").Observe(0.5)
	m.askTokensTotal.Add(42)
	m.askInFlight.Inc()
	m.httpRequestsTotal.WithLabelValues("POST", "ask", "200").Inc()
	m.httpDurationSeconds.WithLabelValues("POST", "ask").Observe(0.1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	got := make(map[string]bool, len(families))
	for _, f := range families {
		got[f.GetName()] = true
	}

	for _, want := range []string{
		"fitbot_ask_requests_total",
		"fitbot_ask_duration_seconds",
		"fitbot_ask_tokens_total",
		"fitbot_ask_in_flight",
		"fitbot_http_requests_total",
		"fitbot_http_duration_seconds",
	} {
		if !got[want] {
			t.Errorf("metric %q not registered; got %v", want, got)
		}
	}

	if v := testutil.ToFloat64(m.askTokensTotal); v != 42 {
		t.Errorf("fitbot_ask_tokens_total: expected 42, got %v", v)
	}
}

// TestInstrument_RecordsRequests verifies the instrument middleware counts
// requests with the handler's final status code.
func TestInstrument_RecordsRequests(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer()
	s.metrics = newServerMetrics(reg)

	h := s.instrument("browse", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/browse", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	count := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues("POST", "browse", "400"))
	if count != 3 {
		t.Errorf("fitbot_http_requests_total{code=400}: expected 3, got %v", count)
	}
}

// TestHandleAsk_RecordsOutcomeMetrics verifies handleAsk increments the ask
// counters labelled by the pipeline outcome.
func TestHandleAsk_RecordsOutcomeMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	reg := prometheus.NewRegistry()
	s.metrics = newServerMetrics(reg)

	body := `{"question":"When do I enter covers?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	count := testutil.ToFloat64(s.metrics.askRequestsTotal.WithLabelValues("answered"))
	if count != 1 {
		t.Errorf("fitbot_ask_requests_total{outcome=answered}: expected 1, got %v", count)
	}
}
