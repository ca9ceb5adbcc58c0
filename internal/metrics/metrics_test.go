package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RunLifecycle(t *testing.T) {
	r := NewRegistry()

	done := r.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveRuns))
	done(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ActiveRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("success")))

	r.RunStarted()(errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.RunDuration))

	r.RecordRun(1000, 12, 7, 0.8)
	r.RecordRun(500, 10, 5, 0.9)
	assert.Equal(t, 1500.0, testutil.ToFloat64(r.TrialsTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.FrontierPoints))
	assert.Equal(t, 0.9, testutil.ToFloat64(r.TangencySharpe))
}

func TestRegistry_FetchAndStatistics(t *testing.T) {
	r := NewRegistry()

	r.RecordFetch("BOVA11.SA", nil)
	r.RecordFetch("BOVA11.SA", errors.New("timeout"))
	r.RecordFetch("BOVA11.SA", nil)
	r.RecordStatistics("cache", 96)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.FetchesTotal.WithLabelValues("BOVA11.SA", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FetchesTotal.WithLabelValues("BOVA11.SA", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StatisticsBuilds.WithLabelValues("cache")))
	assert.Equal(t, 96.0, testutil.ToFloat64(r.StatisticsPeriods))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.RecordRun(10, 2, 1, 0.5)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "frontier_trials_total 10")
	assert.Contains(t, string(body), "go_goroutines")
}
