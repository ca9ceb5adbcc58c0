package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/scheduler"
)

const (
	refreshTimeout     = 5 * time.Minute
	frontierRunTimeout = 30 * time.Minute
	databaseSchedule   = "@daily"
)

// RegisterJobs creates the background jobs and registers them with sched.
// Returns JobInstances for manual triggering.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.AnalysisService == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		RefreshPrices:  scheduler.NewRefreshPricesJob(container.AnalysisService, refreshTimeout, log),
		FrontierRun:    scheduler.NewFrontierRunJob(container.AnalysisService, true, frontierRunTimeout, log),
		DatabaseHealth: scheduler.NewDatabaseHealthJob(container.HistoryDB, log),
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.BackupRetentionDays, log)
	}
	instances.RefreshAndRun = scheduler.NewCompositeJob("refresh_and_run", log,
		instances.RefreshPrices,
		instances.FrontierRun,
	)

	if sched == nil {
		return instances, nil
	}

	if err := sched.AddJob(cfg.RefreshSchedule, instances.RefreshAndRun); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", instances.RefreshAndRun.Name(), err)
	}
	if err := sched.AddJob(databaseSchedule, instances.DatabaseHealth); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", instances.DatabaseHealth.Name(), err)
	}
	if instances.Backup != nil && cfg.BackupSchedule != "" {
		if err := sched.AddJob(cfg.BackupSchedule, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.Backup.Name(), err)
		}
	}

	return instances, nil
}
