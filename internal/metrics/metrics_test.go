package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestExchangeFinished(t *testing.T) {
	m := New()
	m.StreamStarted()
	m.ExchangeFinished("claude", OutcomeCompleted, 10, 20, time.Second)

	body := scrape(t, m)
	assert.Contains(t, body, `chatapp_relay_exchanges_total{model="claude",outcome="completed"} 1`)
	assert.Contains(t, body, `chatapp_relay_tokens_total{direction="input",model="claude"} 10`)
	assert.Contains(t, body, `chatapp_relay_tokens_total{direction="output",model="claude"} 20`)
	assert.Contains(t, body, `chatapp_relay_active_streams 0`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Millisecond)
		m.StreamStarted()
		m.ExchangeFinished("x", OutcomeFailed, 0, 0, 0)
	})
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/conversations", 200, 5*time.Millisecond)

	assert.Contains(t, scrape(t, m), `chatapp_http_requests_total{method="GET",route="/api/conversations",status="200"} 1`)
}
