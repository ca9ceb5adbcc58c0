// Package main is the frontier command-line tool. It fetches monthly prices,
// evaluates an allocation and runs the Monte Carlo efficient-frontier search.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/di"
	"github.com/aristath/frontier/pkg/logger"
)

var (
	dataDir       string
	portfolioPath string
	logLevel      string
	offline       bool
)

// rootCmd is the base command for the frontier CLI
var rootCmd = &cobra.Command{
	Use:   "frontier",
	Short: "Markowitz portfolio analysis with a Monte Carlo efficient frontier",
	Long: `frontier builds return statistics from monthly closes, evaluates a fixed
allocation with confidence bands and samples the constrained allocation space
to extract the upper efficient frontier, the tangency portfolio and the
minimum-risk portfolio.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (defaults to FRONTIER_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&portfolioPath, "portfolio", "", "YAML portfolio file (defaults to PORTFOLIO_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use stored prices only")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flags on top of the environment configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		cfg.DataDir = abs
	}
	if portfolioPath != "" {
		p, err := config.LoadPortfolio(portfolioPath)
		if err != nil {
			return nil, err
		}
		cfg.Portfolio = p
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// session is a wired container for one command invocation
type session struct {
	ctx       context.Context
	container *di.Container
	log       zerolog.Logger
	stop      context.CancelFunc
}

// Close releases the session's resources
func (s *session) Close() {
	s.stop()
	if err := s.container.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close database")
	}
}

// setup loads configuration and wires the container. Logs go to stderr so
// reports on stdout stay clean.
func setup(cmd *cobra.Command, opts ...di.Option) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)

	if offline {
		opts = append(opts, di.Offline())
	}
	container, err := di.Wire(ctx, cfg, log, opts...)
	if err != nil {
		stop()
		return nil, err
	}

	return &session{ctx: ctx, container: container, log: log, stop: stop}, nil
}
