package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/runs"
)

type staticSource map[string][]domain.PricePoint

func (s staticSource) MonthlyCloses(ctx context.Context, symbol string, start time.Time) ([]domain.PricePoint, error) {
	prices, ok := s[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return prices, nil
}

func series(start float64, moves ...float64) []domain.PricePoint {
	points := []domain.PricePoint{{Period: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), Close: start}}
	price := start
	for i, m := range moves {
		price *= m
		points = append(points, domain.PricePoint{Period: time.Date(2021, time.Month(i+2), 1, 0, 0, 0, 0, time.UTC), Close: price})
	}
	return points
}

func setupTestRouter(t *testing.T, source staticSource) chi.Router {
	t.Helper()

	db, err := database.New(database.Config{Path: "file:handlers_test?mode=memory", Name: "history"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	assets, err := domain.NewAssetSet(
		domain.Asset{Label: "EQ", Source: "EQ.SA"},
		domain.Asset{Label: "RE", Source: "RE.SA"},
		domain.Asset{Label: "CDI"},
	)
	require.NoError(t, err)

	log := zerolog.Nop()
	service, err := analysis.NewService(analysis.Settings{
		Assets:          assets,
		FixedIncome:     "CDI",
		Allocation:      map[string]float64{"EQ": 0.4, "RE": 0.1, "CDI": 0.5},
		StartDate:       time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		RiskFreeRate:    0.10,
		FixedIncomeRate: 0.10,
		PeriodsPerYear:  12,
		Simulations:     300,
		Workers:         2,
		Seed:            11,
	}, analysis.Dependencies{
		Source: source,
		Runs:   runs.NewRepository(db.Conn(), log),
	}, log)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		NewHandler(service, charts.NewRenderer(400, 300, log), log).RegisterRoutes(r)
	})
	return router
}

func defaultSource() staticSource {
	return staticSource{
		"EQ.SA": series(20, 1.04, 0.95, 1.06, 1.02, 0.97, 1.05, 1.01, 0.98),
		"RE.SA": series(10, 1.01, 1.00, 0.99, 1.02, 1.01, 0.98, 1.02, 1.00),
	}
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRoutes(t *testing.T) {
	assert.NotPanics(t, func() {
		setupTestRouter(t, defaultSource())
	})
}

func TestHandleGetStatistics(t *testing.T) {
	router := setupTestRouter(t, defaultSource())

	rec := doRequest(router, http.MethodGet, "/api/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"EQ", "RE", "CDI"}, resp.Labels)
	assert.Equal(t, 8, resp.Periods)
	assert.Len(t, resp.Covariance, 3)
	assert.NotNil(t, resp.Correlations)
}

func TestHandleGetStatistics_InsufficientData(t *testing.T) {
	router := setupTestRouter(t, staticSource{
		"EQ.SA": series(20, 1.01),
		"RE.SA": series(10, 1.02),
	})

	rec := doRequest(router, http.MethodGet, "/api/statistics", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleEvaluate(t *testing.T) {
	router := setupTestRouter(t, defaultSource())

	t.Run("configured allocation", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/api/portfolio/evaluate", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["text"], "Sharpe ratio:")
		assert.Equal(t, 0.5, resp["allocation"].(map[string]interface{})["CDI"])
		assert.Contains(t, resp, "metrics")
		assert.Contains(t, resp, "bands")
	})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"explicit", `{"weights":{"EQ":0.2,"CDI":0.8}}`, http.StatusOK},
		{"bad sum", `{"weights":{"EQ":0.2,"CDI":0.7}}`, http.StatusBadRequest},
		{"unknown asset", `{"weights":{"GOLD":1}}`, http.StatusBadRequest},
		{"malformed", `{"weights":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/api/portfolio/evaluate", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestFrontierRuns(t *testing.T) {
	router := setupTestRouter(t, defaultSource())

	rec := doRequest(router, http.MethodGet, "/api/frontier/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/frontier/runs", `{"simulations":250,"seed":5,"rule":"all"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Summary runs.Summary `json:"summary"`
		Labels  []string     `json:"labels"`
		Result  struct {
			Frontier []json.RawMessage `json:"frontier"`
			Envelope []json.RawMessage `json:"envelope"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 250, created.Summary.Simulations)
	assert.Equal(t, uint64(5), created.Summary.Seed)
	// The "all" rule keeps the whole envelope
	assert.Equal(t, len(created.Result.Frontier), len(created.Result.Envelope))

	rec = doRequest(router, http.MethodGet, "/api/frontier/runs/"+created.Summary.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/frontier/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/frontier/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Summary.ID)

	rec = doRequest(router, http.MethodGet, "/api/frontier/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Summary.ID)

	rec = doRequest(router, http.MethodGet, "/api/frontier/latest/chart.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = doRequest(router, http.MethodGet, "/api/frontier/latest/envelope.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"return", "risk", "sharpe", "EQ", "RE", "CDI"}, rows[0][:6])
	assert.Len(t, rows, len(created.Result.Envelope)+1)
}

func TestHandleCreateRun_BadRequests(t *testing.T) {
	router := setupTestRouter(t, defaultSource())

	tests := []struct {
		name string
		body string
	}{
		{"unknown rule", `{"rule":"best"}`},
		{"negative simulations", `{"simulations":-1}`},
		{"pinned over one", `{"pinned":{"EQ":0.7,"RE":0.6}}`},
		{"pinned unknown asset", `{"pinned":{"GOLD":0.1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/api/frontier/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestHandleStream(t *testing.T) {
	server := httptest.NewServer(setupTestRouter(t, defaultSource()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/frontier/stream?n=600&seed=9"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var progress []StreamMessage
	var summary StreamMessage
	for {
		var msg StreamMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if msg.Type == "progress" {
			progress = append(progress, msg)
			continue
		}
		summary = msg
		break
	}

	require.Equal(t, "summary", summary.Type, summary.Error)
	require.NotNil(t, summary.Summary)
	assert.Equal(t, 600, summary.Summary.Simulations)
	require.Len(t, progress, 3)
	assert.Equal(t, 600, progress[2].Done)
	assert.Equal(t, 600, progress[2].Total)
}

func TestHandleStream_BadQuery(t *testing.T) {
	router := setupTestRouter(t, defaultSource())

	for _, q := range []string{"n=abc", "seed=-1", "rule=nope", "threshold=x"} {
		rec := doRequest(router, http.MethodGet, "/api/frontier/stream?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrWeightSum, http.StatusBadRequest},
		{domain.ErrNegativeWeight, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrDimensionMismatch), http.StatusBadRequest},
		{domain.ErrConstraintViolation, http.StatusBadRequest},
		{domain.ErrUnknownAsset, http.StatusBadRequest},
		{fmt.Errorf("load: %w", domain.ErrInsufficientData), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}
