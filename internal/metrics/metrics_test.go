package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ClientsConnected.Set(3)
	m.LobbiesOpen.Set(1)
	m.MessagesTotal.WithLabelValues("heartbeat").Inc()
	m.EvictionsTotal.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "matchpoint_clients_connected 3")
	assert.Contains(t, body, "matchpoint_lobbies_open 1")
	assert.Contains(t, body, `matchpoint_messages_total{tag="heartbeat"} 1`)
	assert.Contains(t, body, "matchpoint_evictions_total 1")
}

func TestIndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.ClientsConnected.Set(5)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "matchpoint_clients_connected 0")
}
