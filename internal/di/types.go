// Package di wires databases, repositories, clients and services into a container.
package di

import (
	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/export"
	"github.com/aristath/frontier/internal/metrics"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	HistoryDB *database.DB

	HistoryRepo *history.Repository
	RunsRepo    *runs.Repository

	Metrics     *metrics.Registry
	YahooClient *yahoo.Client
	PriceSource analysis.PriceSource
	Renderer    *charts.Renderer
	Uploader    *export.S3Uploader // nil when no bucket is configured

	AnalysisService *analysis.Service
	BackupService   *reliability.BackupService
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c == nil || c.HistoryDB == nil {
		return nil
	}
	return c.HistoryDB.Close()
}

// JobInstances holds the registered background jobs for manual triggering
type JobInstances struct {
	RefreshPrices  scheduler.Job
	FrontierRun    scheduler.Job
	RefreshAndRun  scheduler.Job
	DatabaseHealth scheduler.Job
	Backup         scheduler.Job
}
