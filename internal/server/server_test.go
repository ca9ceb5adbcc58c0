package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/metrics"
	"github.com/aristath/frontier/internal/modules/analysis"
	analysishandlers "github.com/aristath/frontier/internal/modules/analysis/handlers"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/scheduler"
	testingpkg "github.com/aristath/frontier/internal/testing"
)

type staticJobs int

func (j staticJobs) Entries() int { return int(j) }

func (j staticJobs) Status() []scheduler.JobStatus {
	return []scheduler.JobStatus{{Name: "refresh_and_run", Schedule: "0 0 6 1 * *", Runs: 1}}
}

func newTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()

	dataDir := t.TempDir()
	db, _ := testingpkg.NewTestDB(t, "history")

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	assets, err := domain.NewAssetSet(testingpkg.NewAssetFixtures()...)
	require.NoError(t, err)

	log := zerolog.Nop()
	service, err := analysis.NewService(analysis.Settings{
		Assets:          assets,
		FixedIncome:     "CDI",
		Allocation:      map[string]float64{"EQ": 0.3, "RE": 0.2, "CDI": 0.5},
		StartDate:       start,
		RiskFreeRate:    0.05,
		FixedIncomeRate: 0.05,
		PeriodsPerYear:  12,
		Simulations:     100,
		Workers:         1,
		Seed:            3,
	}, analysis.Dependencies{
		Source:  testingpkg.NewMockPriceSource(testingpkg.NewPriceFixtures(start)),
		History: history.NewRepository(db.Conn(), log),
	}, log)
	require.NoError(t, err)

	renderer := charts.NewRenderer(0, 0, log)
	srv := New(Config{
		Log:      log,
		DB:       db,
		Metrics:  metrics.NewRegistry(),
		Analysis: analysishandlers.NewHandler(service, renderer, log),
		Jobs:     staticJobs(3),
		DataDir:  dataDir,
		Port:     0,
		DevMode:  true,
	})
	return srv, db
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Database)
}

func TestServer_HealthReportsClosedDatabase(t *testing.T) {
	srv, db := newTestServer(t)
	require.NoError(t, db.Close())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.NotEmpty(t, body.Error)
}

func TestServer_SystemStats(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.DatabaseOK)
	assert.Equal(t, 3, body.ScheduledJobs)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "refresh_and_run", body.Jobs[0].Name)
	assert.Positive(t, body.NumCPU)
	assert.Positive(t, body.Goroutines)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "frontier_trials_total")
}

func TestServer_MountsAnalysisRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/statistics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body analysishandlers.StatisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"EQ", "RE", "CDI"}, body.Labels)
	assert.Equal(t, 12, body.Periods)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frontier/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
