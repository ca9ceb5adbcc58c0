// Package analysis orchestrates price retrieval, return statistics, single-allocation
// analysis and frontier runs for the configured portfolio.
package analysis

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/metrics"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/evaluation"
	"github.com/aristath/frontier/internal/modules/frontier"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/modules/statistics"
	"github.com/aristath/frontier/internal/utils"
)

// DefaultStatisticsTTL bounds how long cached statistics are reused
const DefaultStatisticsTTL = 24 * time.Hour

// Settings is the portfolio and model configuration of the service
type Settings struct {
	Assets          domain.AssetSet
	FixedIncome     string
	Allocation      map[string]float64
	Pinned          map[string]float64
	StartDate       time.Time
	RiskFreeRate    float64 // Annual
	FixedIncomeRate float64 // Annual
	PeriodsPerYear  int
	Simulations     int
	Workers         int
	Seed            uint64
	Accept          frontier.Acceptance
	StatisticsTTL   time.Duration
}

// SettingsFromConfig derives service settings from the application config
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	assets, err := cfg.Portfolio.AssetSet()
	if err != nil {
		return Settings{}, fmt.Errorf("invalid portfolio: %w", err)
	}
	return Settings{
		Assets:          assets,
		FixedIncome:     cfg.Portfolio.FixedIncome,
		Allocation:      cfg.Portfolio.Allocation,
		Pinned:          cfg.Portfolio.Pinned,
		StartDate:       cfg.StartDate,
		RiskFreeRate:    cfg.RiskFreeRate,
		FixedIncomeRate: cfg.FixedIncomeRate,
		PeriodsPerYear:  cfg.PeriodsPerYear,
		Simulations:     cfg.Simulations,
		Workers:         cfg.Workers,
		Seed:            cfg.Seed,
		Accept:          cfg.Acceptance(),
		StatisticsTTL:   DefaultStatisticsTTL,
	}, nil
}

// Dependencies are the collaborators of the service. Only Source or History is
// required; the rest are skipped when nil or empty.
type Dependencies struct {
	Source    PriceSource
	History   *history.Repository
	Runs      *runs.Repository
	Metrics   *metrics.Registry
	Charts    *charts.Renderer
	Uploader  Uploader
	ExportDir string
}

// Service runs analyses for one portfolio
type Service struct {
	settings Settings
	deps     Dependencies
	builder  *statistics.Builder
	log      zerolog.Logger

	mu     sync.RWMutex
	latest *Run
}

// NewService creates a new analysis service
func NewService(settings Settings, deps Dependencies, log zerolog.Logger) (*Service, error) {
	if deps.Source == nil && deps.History == nil {
		return nil, fmt.Errorf("a price source or a history repository is required")
	}
	if settings.Assets.Len() == 0 {
		return nil, fmt.Errorf("portfolio has no assets")
	}
	if settings.PeriodsPerYear <= 0 {
		settings.PeriodsPerYear = evaluation.MonthlyPeriods
	}
	if settings.Accept == nil {
		settings.Accept = frontier.DefaultAcceptance
	}

	return &Service{
		settings: settings,
		deps:     deps,
		builder:  statistics.NewBuilder(log),
		log:      log.With().Str("service", "analysis").Logger(),
	}, nil
}

// Settings returns the service settings
func (s *Service) Settings() Settings {
	return s.settings
}

// Labels returns the asset labels in portfolio order
func (s *Service) Labels() []string {
	return s.settings.Assets.Labels()
}

// RefreshPrices fetches every sourced asset and stores the closes. It returns the
// number of symbols refreshed; failures are logged and skipped.
func (s *Service) RefreshPrices(ctx context.Context) (int, error) {
	if s.deps.Source == nil {
		return 0, fmt.Errorf("no price source configured")
	}

	refreshed := 0
	for _, asset := range s.settings.Assets.Assets() {
		if asset.Source == "" || asset.Label == s.settings.FixedIncome {
			continue
		}
		if _, err := s.fetch(ctx, asset); err != nil {
			if ctx.Err() != nil {
				return refreshed, ctx.Err()
			}
			s.log.Warn().Err(err).Str("symbol", asset.Source).Msg("Failed to refresh prices")
			continue
		}
		refreshed++
	}

	s.log.Info().Int("refreshed", refreshed).Msg("Price refresh completed")
	return refreshed, nil
}

func (s *Service) fetch(ctx context.Context, asset domain.Asset) ([]domain.PricePoint, error) {
	prices, err := s.deps.Source.MonthlyCloses(ctx, asset.Source, s.settings.StartDate)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordFetch(asset.Source, err)
	}
	if err != nil {
		return nil, err
	}
	if s.deps.History != nil {
		if err := s.deps.History.UpsertPrices(asset.Source, prices); err != nil {
			s.log.Warn().Err(err).Str("symbol", asset.Source).Msg("Failed to store prices")
		}
	}
	return prices, nil
}

// loadPrices fetches fresh closes, falling back to stored history when the source fails
func (s *Service) loadPrices(ctx context.Context, asset domain.Asset) ([]domain.PricePoint, error) {
	var fetchErr error
	if s.deps.Source != nil {
		prices, err := s.fetch(ctx, asset)
		if err == nil {
			return prices, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fetchErr = err
		s.log.Warn().Err(err).Str("symbol", asset.Source).Msg("Fetch failed, using stored prices")
	}

	if s.deps.History == nil {
		return nil, fetchErr
	}
	prices, err := s.deps.History.GetPrices(asset.Source, s.settings.StartDate)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, fmt.Errorf("%w: no stored prices for %s", domain.ErrInsufficientData, asset.Source)
	}
	return prices, nil
}

// Statistics loads prices for every sourced asset and builds the return statistics
func (s *Service) Statistics(ctx context.Context) (*statistics.Statistics, error) {
	var (
		observed []string
		keyParts []string
	)
	series := make(map[string][]domain.PricePoint)
	for _, asset := range s.settings.Assets.Assets() {
		if asset.Label == s.settings.FixedIncome {
			continue
		}
		prices, err := s.loadPrices(ctx, asset)
		if err != nil {
			return nil, fmt.Errorf("failed to load prices for %s: %w", asset.Label, err)
		}
		series[asset.Label] = prices
		observed = append(observed, asset.Label)
		keyParts = append(keyParts, asset.Label+"="+asset.Source)
	}
	keyParts = append(keyParts, "fixed="+s.settings.FixedIncome)

	prices := statistics.AlignPrices(observed, series).Since(s.settings.StartDate).DropMissing()
	rate := statistics.PeriodicRate(s.settings.FixedIncomeRate, s.settings.PeriodsPerYear)

	var key string
	if s.deps.History != nil && len(prices.Periods) > 0 {
		last := prices.Periods[len(prices.Periods)-1]
		key = history.StatisticsKey(keyParts, s.settings.StartDate, last, rate)
		cached, ok, err := s.deps.History.LoadStatistics(key, s.settings.StatisticsTTL)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to read statistics cache")
		} else if ok && slices.Equal(cached.Labels(), s.Labels()) {
			s.recordStatistics("cache", cached.Periods())
			return cached, nil
		}
	}

	stop := utils.OperationTimer("statistics_build", s.log)
	stats, err := s.builder.Build(statistics.Input{
		Assets:       s.settings.Assets,
		Prices:       prices,
		FixedIncome:  s.settings.FixedIncome,
		PeriodicRate: rate,
	})
	stop()
	if err != nil {
		return nil, err
	}
	s.recordStatistics("computed", stats.Periods())

	if key != "" {
		if err := s.deps.History.SaveStatistics(key, stats); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache statistics")
		}
	}

	if pairs := stats.Correlations(statistics.HighCorrelationThreshold); len(pairs) > 0 {
		s.log.Info().Int("high_correlations", len(pairs)).Msg("Identified high correlation pairs")
	}
	return stats, nil
}

func (s *Service) recordStatistics(source string, periods int) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordStatistics(source, periods)
	}
}

// evaluator builds statistics and wraps them in an evaluator
func (s *Service) evaluator(ctx context.Context) (*evaluation.Evaluator, error) {
	stats, err := s.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return evaluation.NewEvaluator(stats, s.settings.RiskFreeRate, s.settings.PeriodsPerYear)
}

// AnalyzeAllocation evaluates an explicit allocation (the configured one when nil).
// The allocation is validated before any price is loaded.
func (s *Service) AnalyzeAllocation(ctx context.Context, allocation map[string]float64) (*Report, error) {
	if allocation == nil {
		allocation = s.settings.Allocation
	}
	weights, err := s.settings.Assets.Weights(allocation)
	if err != nil {
		return nil, err
	}
	if err := weights.Validate(s.settings.Assets.Len()); err != nil {
		return nil, err
	}

	ev, err := s.evaluator(ctx)
	if err != nil {
		return nil, err
	}
	m, err := ev.Evaluate(weights)
	if err != nil {
		return nil, err
	}

	return &Report{
		Labels:       s.Labels(),
		Weights:      weights,
		Metrics:      m,
		Bands:        m.Bands(),
		RiskFreeRate: s.settings.RiskFreeRate,
		Periods:      ev.Statistics().Periods(),
	}, nil
}
