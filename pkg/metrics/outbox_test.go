package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutboxMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncPublished("order_confirmed")
	m.IncPublished("order_confirmed")
	m.IncRetried("payment_completed")
	m.IncDeadLettered("payment_failed", "max_attempts")
	m.SetBacklog(7)

	if got := testutil.ToFloat64(m.published.WithLabelValues("order_confirmed")); got != 2 {
		t.Fatalf("expected 2 published, got %f", got)
	}
	if got := testutil.ToFloat64(m.retried.WithLabelValues("payment_completed")); got != 1 {
		t.Fatalf("expected 1 retry, got %f", got)
	}
	if got := testutil.ToFloat64(m.deadLettered.WithLabelValues("payment_failed", "max_attempts")); got != 1 {
		t.Fatalf("expected 1 dead letter, got %f", got)
	}
	if got := testutil.ToFloat64(m.backlog); got != 7 {
		t.Fatalf("expected backlog 7, got %f", got)
	}
}

func TestNilOutboxMetricsIsSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncPublished("x")
	m.SetBacklog(1)
	NewOutboxMetrics(nil).IncDeadLettered("x", "y")
}

func TestWorkerServerServesMetricsAndLiveness(t *testing.T) {
	reg := NewProcessRegistry()
	NewOutboxMetrics(reg).SetBacklog(3)
	srv := NewServer(":0", reg)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dukapay_outbox_backlog 3") {
		t.Fatalf("unexpected metrics response %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected live 200, got %d", rec.Code)
	}
}
