package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/analysis"
)

type options struct {
	source    analysis.PriceSource
	offline   bool
	exportDir string
}

// Option customizes wiring
type Option func(*options)

// WithPriceSource replaces the Yahoo client as the price source
func WithPriceSource(source analysis.PriceSource) Option {
	return func(o *options) { o.source = source }
}

// Offline wires no price source; analyses run on stored history only
func Offline() Option {
	return func(o *options) { o.offline = true }
}

// WithExportDir overrides the directory run exports are written to
func WithExportDir(dir string) Option {
	return func(o *options) { o.exportDir = dir }
}

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(ctx, container, cfg, log, o); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}
