package frontier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/frontier/internal/modules/evaluation"
	"github.com/aristath/frontier/internal/modules/sampling"
)

const (
	// DefaultSimulations is the default number of Monte Carlo trials
	DefaultSimulations = 10000
	// chunkSize is the number of trials a worker runs between progress reports
	chunkSize = 250
)

// Config controls a Monte Carlo run
type Config struct {
	Simulations int
	Workers     int
	// Seed makes runs reproducible. Trial i always draws from PCG(Seed, i), so the
	// sample does not depend on the worker count.
	Seed uint64
	// Accept is the acceptability filter applied to the envelope (DefaultAcceptance if nil)
	Accept Acceptance
}

// Progress is called with the number of completed trials. Calls are serialized.
type Progress func(done, total int)

// Simulator runs Monte Carlo trials against one evaluator and sampler
type Simulator struct {
	evaluator *evaluation.Evaluator
	sampler   *sampling.Sampler
	log       zerolog.Logger
}

// NewSimulator creates a new frontier simulator
func NewSimulator(evaluator *evaluation.Evaluator, sampler *sampling.Sampler, log zerolog.Logger) *Simulator {
	return &Simulator{
		evaluator: evaluator,
		sampler:   sampler,
		log:       log.With().Str("component", "frontier").Logger(),
	}
}

// Sample runs cfg.Simulations independent trials and returns them in trial order
func (s *Simulator) Sample(ctx context.Context, cfg Config, progress Progress) ([]Record, error) {
	total := cfg.Simulations
	if total <= 0 {
		total = DefaultSimulations
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	records := make([]Record, total)

	var (
		mu   sync.Mutex
		done int
	)
	report := func(n int) {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done += n
		progress(done, total)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)

		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				w := s.sampler.Sample(rand.NewPCG(cfg.Seed, uint64(i)))
				m, err := s.evaluator.EvaluateTrusted(w)
				if err != nil {
					return fmt.Errorf("trial %d: %w", i, err)
				}
				records[i] = newRecord(i, w, m)
			}
			report(end - start)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// Run samples, extracts the upper envelope, filters it and selects the extremes
func (s *Simulator) Run(ctx context.Context, cfg Config, progress Progress) (*Result, error) {
	started := time.Now()

	sample, err := s.Sample(ctx, cfg, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to run simulations: %w", err)
	}

	accept := cfg.Accept
	if accept == nil {
		accept = DefaultAcceptance
	}

	frontier := UpperEnvelope(sample)
	envelope := Filter(frontier, accept)

	tangency, _ := MaxSharpe(sample)
	minRisk, _ := MinRisk(sample)

	result := &Result{
		Sample:   sample,
		Frontier: frontier,
		Envelope: envelope,
		Tangency: tangency,
		MinRisk:  minRisk,
		CML:      NewCapitalMarketLine(s.evaluator.RiskFreeRate(), tangency),
	}

	if len(envelope) == 0 {
		s.log.Warn().
			Int("frontier_points", len(frontier)).
			Msg("No portfolio on the frontier passed the acceptability filter")
	}

	s.log.Info().
		Int("simulations", len(sample)).
		Int("frontier_points", len(frontier)).
		Int("acceptable_points", len(envelope)).
		Float64("tangency_sharpe", tangency.Metrics.Sharpe).
		Float64("min_risk", minRisk.Metrics.Risk).
		Dur("duration", time.Since(started)).
		Msg("Frontier run completed")

	return result, nil
}
