// Package runs persists summaries of completed frontier runs.
package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/evaluation"
	"github.com/aristath/frontier/internal/modules/frontier"
)

// ErrNotFound is returned when no run matches the requested ID
var ErrNotFound = errors.New("run not found")

// Portfolio is a selected portfolio of a run, with weights keyed by label
type Portfolio struct {
	Weights map[string]float64 `json:"weights"`
	evaluation.Metrics
}

// Summary is the stored outcome of one frontier run
type Summary struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Simulations      int       `json:"simulations"`
	Seed             uint64    `json:"seed"`
	RiskFreeRate     float64   `json:"risk_free_rate"`
	FrontierPoints   int       `json:"frontier_points"`
	AcceptablePoints int       `json:"acceptable_points"`
	Tangency         Portfolio `json:"tangency"`
	MinRisk          Portfolio `json:"min_risk"`
	DurationMs       int64     `json:"duration_ms"`
}

// NewSummary describes result under a fresh run ID
func NewSummary(labels []string, cfg frontier.Config, riskFreeRate float64, result *frontier.Result, duration time.Duration) Summary {
	return Summary{
		ID:               uuid.New().String(),
		CreatedAt:        time.Now().UTC(),
		Simulations:      len(result.Sample),
		Seed:             cfg.Seed,
		RiskFreeRate:     riskFreeRate,
		FrontierPoints:   len(result.Frontier),
		AcceptablePoints: len(result.Envelope),
		Tangency:         Portfolio{Weights: result.Tangency.Weights.Map(labels), Metrics: result.Tangency.Metrics},
		MinRisk:          Portfolio{Weights: result.MinRisk.Weights.Map(labels), Metrics: result.MinRisk.Metrics},
		DurationMs:       duration.Milliseconds(),
	}
}

// Repository handles frontier run persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new runs repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

const selectColumns = `
	SELECT id, created_at, simulations, seed, risk_free_rate, frontier_points, acceptable_points,
	       tangency_return, tangency_risk, tangency_sharpe, tangency_weights,
	       min_risk_return, min_risk_risk, min_risk_sharpe, min_risk_weights, duration_ms
	FROM frontier_runs
`

// Save stores a run summary
func (r *Repository) Save(s Summary) error {
	tangencyWeights, err := json.Marshal(s.Tangency.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal tangency weights: %w", err)
	}
	minRiskWeights, err := json.Marshal(s.MinRisk.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal min-risk weights: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO frontier_runs (
			id, created_at, simulations, seed, risk_free_rate, frontier_points, acceptable_points,
			tangency_return, tangency_risk, tangency_sharpe, tangency_weights,
			min_risk_return, min_risk_risk, min_risk_sharpe, min_risk_weights, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.CreatedAt.UnixMilli(), s.Simulations, int64(s.Seed), s.RiskFreeRate,
		s.FrontierPoints, s.AcceptablePoints,
		s.Tangency.Return, s.Tangency.Risk, s.Tangency.Sharpe, string(tangencyWeights),
		s.MinRisk.Return, s.MinRisk.Risk, s.MinRisk.Sharpe, string(minRiskWeights),
		s.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", s.ID, err)
	}

	r.log.Info().Str("run_id", s.ID).Int("frontier_points", s.FrontierPoints).Msg("Run saved")
	return nil
}

// Get returns the run with the given ID
func (r *Repository) Get(id string) (*Summary, error) {
	row := r.db.QueryRow(selectColumns+" WHERE id = ?", id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return s, nil
}

// List returns the most recent runs, newest first
func (r *Repository) List(limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(selectColumns+" ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return summaries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*Summary, error) {
	var (
		s                   Summary
		createdAt, seed     int64
		tangencyW, minRiskW string
	)
	err := row.Scan(
		&s.ID, &createdAt, &s.Simulations, &seed, &s.RiskFreeRate, &s.FrontierPoints, &s.AcceptablePoints,
		&s.Tangency.Return, &s.Tangency.Risk, &s.Tangency.Sharpe, &tangencyW,
		&s.MinRisk.Return, &s.MinRisk.Risk, &s.MinRisk.Sharpe, &minRiskW,
		&s.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.Seed = uint64(seed)
	if err := json.Unmarshal([]byte(tangencyW), &s.Tangency.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tangency weights: %w", err)
	}
	if err := json.Unmarshal([]byte(minRiskW), &s.MinRisk.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal min-risk weights: %w", err)
	}
	return &s, nil
}
