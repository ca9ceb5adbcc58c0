package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/export"
	"github.com/aristath/frontier/internal/metrics"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/reliability"
)

// Directories under the data dir
const (
	ExportDirName = "exports"
	BackupDirName = "backups"
)

// InitializeRepositories creates the repositories on top of the databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.HistoryDB == nil {
		return fmt.Errorf("history database not initialized")
	}
	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn(), log)
	container.RunsRepo = runs.NewRepository(container.HistoryDB.Conn(), log)
	return nil
}

// InitializeServices creates clients and the analysis service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger, opts options) error {
	container.Metrics = metrics.NewRegistry()

	switch {
	case opts.offline:
		log.Info().Msg("Offline mode, using stored prices only")
	case opts.source != nil:
		container.PriceSource = opts.source
	default:
		container.YahooClient = yahoo.NewClient(log, yahoo.WithObserver(container.Metrics.RecordFetch))
		container.PriceSource = container.YahooClient
	}

	container.Renderer = charts.NewRenderer(0, 0, log)

	if cfg.ExportS3Bucket != "" {
		uploader, err := export.NewS3Uploader(ctx, cfg.ExportS3Bucket, cfg.ExportS3Prefix, log)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 uploader: %w", err)
		}
		container.Uploader = uploader
		log.Info().Str("bucket", cfg.ExportS3Bucket).Msg("S3 export enabled")
	}

	settings, err := analysis.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}

	exportDir := opts.exportDir
	if exportDir == "" {
		exportDir = filepath.Join(cfg.DataDir, ExportDirName)
	}

	deps := analysis.Dependencies{
		Source:    container.PriceSource,
		History:   container.HistoryRepo,
		Runs:      container.RunsRepo,
		Metrics:   container.Metrics,
		Charts:    container.Renderer,
		ExportDir: exportDir,
	}
	// A typed nil would defeat the service's nil check
	if container.Uploader != nil {
		deps.Uploader = container.Uploader
	}

	service, err := analysis.NewService(settings, deps, log)
	if err != nil {
		return fmt.Errorf("failed to create analysis service: %w", err)
	}
	container.AnalysisService = service

	var backupUploader reliability.Uploader
	if container.Uploader != nil {
		backupUploader = container.Uploader
	}
	container.BackupService = reliability.NewBackupService(
		container.HistoryDB,
		filepath.Join(cfg.DataDir, BackupDirName),
		backupUploader,
		log,
	)
	return nil
}
