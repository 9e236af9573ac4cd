package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordOperation(t *testing.T) {
	c := NewCollector("test")

	c.RecordOperation("schedule", "ok", 3*time.Millisecond)
	c.RecordOperation("schedule", "conflict", time.Millisecond)
	c.RecordOperation("schedule", "conflict", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("schedule", "ok", "test")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("schedule", "conflict", "test")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("a")
	b := NewCollector("b")

	a.RecordReminder(true)
	b.RecordReminder(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.remindersTotal.WithLabelValues("sent", "a")))
	assert.Equal(t, 0.0, testutil.ToFloat64(a.remindersTotal.WithLabelValues("failed", "a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.remindersTotal.WithLabelValues("failed", "b")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordHTTPRequest(http.MethodGet, "/appointments/{id}", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/appointments/{id}",service="test",status_code="200"} 1`)
}
