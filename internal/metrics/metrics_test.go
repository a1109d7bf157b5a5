package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.EventsForwardedTotal.Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.EventsForwardedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.EventsForwardedTotal))
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.NotificationsTotal.WithLabelValues("page", "failed").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `invtriage_notifications_total{channel="page",status="failed"} 1`))
}
