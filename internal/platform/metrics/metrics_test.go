package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_HandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.Actions.WithLabelValues("getStats", "OK").Inc()
	m.RealtimeSubscribers.Set(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Actions.WithLabelValues("getStats", "OK")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `luggage_actions_total{action="getStats",code="OK"} 1`)
	assert.Contains(t, string(body), "luggage_realtime_subscribers 3")
}
