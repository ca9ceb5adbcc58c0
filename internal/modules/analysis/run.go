package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/export"
	"github.com/aristath/frontier/internal/modules/frontier"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/modules/sampling"
	"github.com/aristath/frontier/internal/utils"
)

// ErrNoRun is returned when no frontier run has completed yet
var ErrNoRun = errors.New("no frontier run available")

// RunOptions override the configured run settings. Zero values keep the defaults.
type RunOptions struct {
	Simulations int
	Workers     int
	Seed        uint64
	Pinned      map[string]float64
	Accept      frontier.Acceptance
	// Export writes the CSV tables and charts (and uploads them when configured)
	Export bool
}

// Run is a completed frontier run
type Run struct {
	Summary runs.Summary     `json:"summary"`
	Labels  []string         `json:"labels"`
	Result  *frontier.Result `json:"result"`
	Files   []string         `json:"files,omitempty"`
}

// String renders the tangency and minimum-risk portfolios as printable text
func (r *Run) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Simulated portfolios: %d\n", len(r.Result.Sample))
	fmt.Fprintf(&b, "Upper frontier: %d portfolios, %d acceptable\n", len(r.Result.Frontier), len(r.Result.Envelope))
	if len(r.Result.Envelope) == 0 {
		b.WriteString("Warning: no portfolio passed the acceptability filter\n")
	}
	for _, p := range []struct {
		title string
		rec   frontier.Record
	}{
		{"Tangency portfolio (max Sharpe)", r.Result.Tangency},
		{"Minimum risk portfolio", r.Result.MinRisk},
	} {
		fmt.Fprintf(&b, "\n%s:\n", p.title)
		fmt.Fprintf(&b, "Expected annual return: %.2f%%\n", p.rec.Metrics.Return*100)
		fmt.Fprintf(&b, "Annual risk (volatility): %.2f%%\n", p.rec.Metrics.Risk*100)
		fmt.Fprintf(&b, "Sharpe ratio: %.2f\n", p.rec.Metrics.Sharpe)
		b.WriteString("Weights:\n")
		writeWeights(&b, r.Labels, p.rec.Weights)
		b.WriteString("Confidence intervals:\n")
		writeBands(&b, p.rec.Bands)
	}
	fmt.Fprintf(&b, "\nCapital market line: return = %.2f%% + %.4f x risk\n", r.Result.CML.RiskFreeRate*100, r.Result.CML.Slope)
	return b.String()
}

// RunFrontier samples the constrained allocation space, extracts the frontier and
// selects the tangency and minimum-risk portfolios. The run becomes the latest run.
func (s *Service) RunFrontier(ctx context.Context, opts RunOptions, progress frontier.Progress) (run *Run, err error) {
	if s.deps.Metrics != nil {
		done := s.deps.Metrics.RunStarted()
		defer func() { done(err) }()
	}
	elapsed := utils.OperationTimer("frontier_run", s.log)

	pinned := opts.Pinned
	if pinned == nil {
		pinned = s.settings.Pinned
	}
	// Constraint errors surface before any price is loaded
	sampler, err := sampling.NewSampler(s.settings.Assets, pinned)
	if err != nil {
		return nil, err
	}

	ev, err := s.evaluator(ctx)
	if err != nil {
		return nil, err
	}

	cfg := frontier.Config{
		Simulations: firstPositive(opts.Simulations, s.settings.Simulations, frontier.DefaultSimulations),
		Workers:     firstPositive(opts.Workers, s.settings.Workers),
		Seed:        opts.Seed,
		Accept:      opts.Accept,
	}
	if cfg.Seed == 0 {
		cfg.Seed = s.settings.Seed
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if cfg.Accept == nil {
		cfg.Accept = s.settings.Accept
	}

	result, err := frontier.NewSimulator(ev, sampler, s.log).Run(ctx, cfg, progress)
	if err != nil {
		return nil, err
	}

	labels := s.Labels()
	run = &Run{
		Summary: runs.NewSummary(labels, cfg, s.settings.RiskFreeRate, result, elapsed()),
		Labels:  labels,
		Result:  result,
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordRun(len(result.Sample), len(result.Frontier), len(result.Envelope), result.Tangency.Metrics.Sharpe)
	}
	if s.deps.Runs != nil {
		if err := s.deps.Runs.Save(run.Summary); err != nil {
			s.log.Error().Err(err).Str("run_id", run.Summary.ID).Msg("Failed to save run summary")
		}
	}
	if opts.Export {
		files, err := s.export(ctx, run)
		if err != nil {
			return nil, err
		}
		run.Files = files
	}

	s.mu.Lock()
	s.latest = run
	s.mu.Unlock()

	s.log.Info().
		Str("run_id", run.Summary.ID).
		Uint64("seed", cfg.Seed).
		Int("frontier_points", len(result.Frontier)).
		Int("acceptable_points", len(result.Envelope)).
		Msg("Frontier run stored")
	return run, nil
}

func (s *Service) export(ctx context.Context, run *Run) ([]string, error) {
	if s.deps.ExportDir == "" {
		return nil, fmt.Errorf("no export directory configured")
	}
	dir := filepath.Join(s.deps.ExportDir, run.Summary.ID)

	files, err := export.NewWriter(dir, s.log).WriteRun(run.Labels, run.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to export run: %w", err)
	}
	if s.deps.Charts != nil {
		images, err := s.deps.Charts.WriteFiles(dir, run.Labels, run.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to render charts: %w", err)
		}
		files = append(files, images...)
	}
	if s.deps.Uploader != nil {
		if err := s.deps.Uploader.Upload(ctx, run.Summary.ID, files); err != nil {
			s.log.Error().Err(err).Str("run_id", run.Summary.ID).Msg("Failed to upload exports")
		}
	}
	return files, nil
}

// Latest returns the most recent completed run
func (s *Service) Latest() (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoRun
	}
	return s.latest, nil
}

// Runs returns stored run summaries, newest first
func (s *Service) Runs(limit int) ([]runs.Summary, error) {
	if s.deps.Runs == nil {
		return []runs.Summary{}, nil
	}
	return s.deps.Runs.List(limit)
}

// GetRun returns a stored run summary
func (s *Service) GetRun(id string) (*runs.Summary, error) {
	if s.deps.Runs == nil {
		return nil, runs.ErrNotFound
	}
	return s.deps.Runs.Get(id)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
