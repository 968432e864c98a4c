package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	FetchTotal.WithLabelValues("ok").Inc()
	JobRuns.WithLabelValues("weekly_agenda", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `ecocal_fetch_total{result="ok"}`)
	assert.Contains(t, body, `ecocal_job_runs_total{job="weekly_agenda",result="ok"}`)
	assert.Contains(t, body, "go_goroutines")
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Delivery.WithLabelValues("message", "error"))
	Delivery.WithLabelValues("message", "error").Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(Delivery.WithLabelValues("message", "error")), 0.0001)
}
