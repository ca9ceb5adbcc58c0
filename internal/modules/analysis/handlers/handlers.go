// Package handlers provides HTTP handlers for portfolio analysis and frontier runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/export"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/frontier"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/modules/statistics"
)

// Handler handles analysis HTTP requests
type Handler struct {
	service  *analysis.Service
	renderer *charts.Renderer
	log      zerolog.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(
	service *analysis.Service,
	renderer *charts.Renderer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		renderer: renderer,
		log:      log.With().Str("handler", "analysis").Logger(),
	}
}

// StatisticsResponse is the body of GET /api/statistics
type StatisticsResponse struct {
	Labels       []string                     `json:"labels"`
	Mean         []float64                    `json:"mean"`
	Covariance   [][]float64                  `json:"covariance"`
	Periods      int                          `json:"periods"`
	Correlations []statistics.CorrelationPair `json:"high_correlations"`
}

// HandleGetStatistics handles GET /api/statistics
func (h *Handler) HandleGetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to build statistics")
		return
	}

	correlations := stats.Correlations(statistics.HighCorrelationThreshold)
	if correlations == nil {
		correlations = []statistics.CorrelationPair{}
	}

	h.writeJSON(w, http.StatusOK, StatisticsResponse{
		Labels:       stats.Labels(),
		Mean:         stats.Mean(),
		Covariance:   stats.Covariance(),
		Periods:      stats.Periods(),
		Correlations: correlations,
	})
}

// EvaluateRequest is the body of POST /api/portfolio/evaluate
type EvaluateRequest struct {
	Weights map[string]float64 `json:"weights"` // Configured allocation when omitted
}

// EvaluateResponse is the analysis of one allocation
type EvaluateResponse struct {
	*analysis.Report
	Allocation map[string]float64 `json:"allocation"`
	Text       string             `json:"text"`
}

// HandleEvaluate handles POST /api/portfolio/evaluate
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	report, err := h.service.AnalyzeAllocation(r.Context(), req.Weights)
	if err != nil {
		h.writeError(w, err, "Failed to evaluate portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, EvaluateResponse{
		Report:     report,
		Allocation: report.Weights.Map(report.Labels),
		Text:       report.String(),
	})
}

// RunRequest is the body of POST /api/frontier/runs
type RunRequest struct {
	Simulations int                `json:"simulations"`
	Workers     int                `json:"workers"`
	Seed        uint64             `json:"seed"`
	Pinned      map[string]float64 `json:"pinned"`
	Rule        string             `json:"rule"`
	Threshold   *float64           `json:"threshold"`
	Export      bool               `json:"export"`
}

func (req RunRequest) options() (analysis.RunOptions, error) {
	opts := analysis.RunOptions{
		Simulations: req.Simulations,
		Workers:     req.Workers,
		Seed:        req.Seed,
		Pinned:      req.Pinned,
		Export:      req.Export,
	}
	if req.Simulations < 0 {
		return opts, fmt.Errorf("simulations must not be negative")
	}
	if req.Rule != "" {
		threshold := 1.0
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		accept, err := frontier.ParseAcceptance(req.Rule, threshold)
		if err != nil {
			return opts, err
		}
		opts.Accept = accept
	}
	return opts, nil
}

// HandleCreateRun handles POST /api/frontier/runs
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	opts, err := req.options()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.service.RunFrontier(r.Context(), opts, nil)
	if err != nil {
		h.writeError(w, err, "Failed to run frontier simulation")
		return
	}

	h.writeJSON(w, http.StatusCreated, run)
}

// HandleListRuns handles GET /api/frontier/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	list, err := h.service.Runs(limit)
	if err != nil {
		h.writeError(w, err, "Failed to list runs")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	})
}

// HandleGetRun handles GET /api/frontier/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	summary, err := h.service.GetRun(id)
	if errors.Is(err, runs.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, err, "Failed to get run")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetLatest handles GET /api/frontier/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// HandleGetLatestChart handles GET /api/frontier/latest/chart.png
func (h *Handler) HandleGetLatestChart(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := h.renderer.Frontier(w, run.Result); err != nil {
		h.log.Error().Err(err).Msg("Failed to render frontier chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
	}
}

// HandleGetLatestEnvelope handles GET /api/frontier/latest/envelope.csv
func (h *Handler) HandleGetLatestEnvelope(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+export.UpperFrontierFile+"\"")
	if err := export.WriteTable(w, run.Labels, run.Result.Envelope); err != nil {
		h.log.Error().Err(err).Msg("Failed to write envelope table")
	}
}

func (h *Handler) latest(w http.ResponseWriter) (*analysis.Run, bool) {
	run, err := h.service.Latest()
	if errors.Is(err, analysis.ErrNoRun) {
		http.Error(w, "No frontier run available", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.writeError(w, err, "Failed to get latest run")
		return nil, false
	}
	return run, true
}

// StreamMessage is sent over the frontier stream WebSocket
type StreamMessage struct {
	Type    string        `json:"type"` // progress, summary or error
	Done    int           `json:"done,omitempty"`
	Total   int           `json:"total,omitempty"`
	Summary *runs.Summary `json:"summary,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// HandleStream handles GET /api/frontier/stream. It upgrades to a WebSocket, runs a
// frontier simulation with the query parameters and streams progress then the summary.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	req, err := parseRunQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts, err := req.options()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	// Client disconnects cancel the run
	ctx := conn.CloseRead(r.Context())

	send := func(msg StreamMessage) error {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return wsjson.Write(writeCtx, conn, msg)
	}

	run, err := h.service.RunFrontier(ctx, opts, func(done, total int) {
		if err := send(StreamMessage{Type: "progress", Done: done, Total: total}); err != nil {
			h.log.Debug().Err(err).Msg("Failed to send progress")
		}
	})
	if err != nil {
		_ = send(StreamMessage{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "run failed")
		return
	}

	if err := send(StreamMessage{Type: "summary", Summary: &run.Summary}); err != nil {
		h.log.Debug().Err(err).Msg("Failed to send summary")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func parseRunQuery(r *http.Request) (RunRequest, error) {
	q := r.URL.Query()
	var req RunRequest

	if v := q.Get("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid n: %w", err)
		}
		req.Simulations = n
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid seed: %w", err)
		}
		req.Seed = seed
	}
	if v := q.Get("workers"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid workers: %w", err)
		}
		req.Workers = workers
	}
	req.Rule = q.Get("rule")
	if v := q.Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid threshold: %w", err)
		}
		req.Threshold = &threshold
	}
	return req, nil
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrWeightSum),
		errors.Is(err, domain.ErrNegativeWeight),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrConstraintViolation),
		errors.Is(err, domain.ErrUnknownAsset):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, status)
		return
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
