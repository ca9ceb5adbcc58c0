package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/modules/frontier"
)

// PriceRefresher refreshes stored prices
type PriceRefresher interface {
	RefreshPrices(ctx context.Context) (int, error)
}

// FrontierRunner runs a frontier simulation
type FrontierRunner interface {
	RunFrontier(ctx context.Context, opts analysis.RunOptions, progress frontier.Progress) (*analysis.Run, error)
}

// RefreshPricesJob fetches the latest monthly closes for every asset
type RefreshPricesJob struct {
	refresher PriceRefresher
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefreshPricesJob creates a new RefreshPricesJob
func NewRefreshPricesJob(refresher PriceRefresher, timeout time.Duration, log zerolog.Logger) *RefreshPricesJob {
	return &RefreshPricesJob{
		refresher: refresher,
		timeout:   timeout,
		log:       log.With().Str("job", "refresh_prices").Logger(),
	}
}

// Name returns the job name
func (j *RefreshPricesJob) Name() string {
	return "refresh_prices"
}

// Run executes the refresh
func (j *RefreshPricesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.refresher.RefreshPrices(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh prices: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no symbol could be refreshed")
	}
	j.log.Info().Int("symbols", n).Msg("Prices refreshed")
	return nil
}

// FrontierRunJob runs the configured frontier simulation
type FrontierRunJob struct {
	runner  FrontierRunner
	export  bool
	timeout time.Duration
	log     zerolog.Logger
}

// NewFrontierRunJob creates a new FrontierRunJob
func NewFrontierRunJob(runner FrontierRunner, export bool, timeout time.Duration, log zerolog.Logger) *FrontierRunJob {
	return &FrontierRunJob{
		runner:  runner,
		export:  export,
		timeout: timeout,
		log:     log.With().Str("job", "frontier_run").Logger(),
	}
}

// Name returns the job name
func (j *FrontierRunJob) Name() string {
	return "frontier_run"
}

// Run executes the frontier run
func (j *FrontierRunJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	run, err := j.runner.RunFrontier(ctx, analysis.RunOptions{Export: j.export}, nil)
	if err != nil {
		return fmt.Errorf("frontier run failed: %w", err)
	}

	j.log.Info().
		Str("run_id", run.Summary.ID).
		Float64("tangency_sharpe", run.Summary.Tangency.Sharpe).
		Int("files", len(run.Files)).
		Msg("Scheduled frontier run completed")
	return nil
}

// DatabaseHealthJob checks integrity and checkpoints the WAL of a database
type DatabaseHealthJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewDatabaseHealthJob creates a new DatabaseHealthJob
func NewDatabaseHealthJob(db *database.DB, log zerolog.Logger) *DatabaseHealthJob {
	return &DatabaseHealthJob{
		db:  db,
		log: log.With().Str("job", "database_health").Logger(),
	}
}

// Name returns the job name
func (j *DatabaseHealthJob) Name() string {
	return "database_health"
}

// Run executes the health check
func (j *DatabaseHealthJob) Run() error {
	if j.db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		return err
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, log, checkpointed int
	err := j.db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &log, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("Failed to checkpoint WAL")
		return nil
	}

	j.log.Debug().
		Str("database", j.db.Name()).
		Int("busy", busy).
		Int("log", log).
		Int("checkpointed", checkpointed).
		Msg("Database healthy")
	return nil
}

// CompositeJob runs its steps in order. A failing step is logged and the
// remaining steps still run; the errors are joined.
type CompositeJob struct {
	name  string
	steps []Job
	log   zerolog.Logger
}

// NewCompositeJob creates a job that runs steps sequentially
func NewCompositeJob(name string, log zerolog.Logger, steps ...Job) *CompositeJob {
	return &CompositeJob{
		name:  name,
		steps: steps,
		log:   log.With().Str("job", name).Logger(),
	}
}

// Name returns the job name
func (j *CompositeJob) Name() string {
	return j.name
}

// Run executes every step
func (j *CompositeJob) Run() error {
	var errs []error
	for _, step := range j.steps {
		if err := step.Run(); err != nil {
			j.log.Warn().Err(err).Str("step", step.Name()).Msg("Step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.Name(), err))
		}
	}
	return errors.Join(errs...)
}
