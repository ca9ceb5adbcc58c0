package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/scheduler"
)

// JobMonitor reports registered background jobs and their last outcomes
type JobMonitor interface {
	Entries() int
	Status() []scheduler.JobStatus
}

// SystemHandlers serves host and process diagnostics
type SystemHandlers struct {
	db      *database.DB
	jobs    JobMonitor
	dataDir string
	started time.Time
	log     zerolog.Logger
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(db *database.DB, jobs JobMonitor, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:      db,
		jobs:    jobs,
		dataDir: dataDir,
		started: time.Now(),
		log:     log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatsResponse is the body of GET /api/system/stats
type SystemStatsResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
	NumCPU        int     `json:"num_cpu"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	DataDirMB     float64 `json:"data_dir_mb"`
	DatabaseMB    float64 `json:"database_mb"`
	DatabaseOK    bool    `json:"database_ok"`
	ScheduledJobs int     `json:"scheduled_jobs"`

	Jobs []scheduler.JobStatus `json:"jobs,omitempty"`
}

// HandleSystemStats returns host load, data directory usage and job counts
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	response := SystemStatsResponse{
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		UptimeSeconds: time.Since(h.started).Seconds(),
	}

	if h.dataDir != "" {
		response.DataDirMB = h.getDirSize(h.dataDir)
	}

	if h.db != nil {
		if info, err := os.Stat(h.db.Path()); err == nil {
			response.DatabaseMB = float64(info.Size()) / 1024 / 1024
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Database health check failed")
		} else {
			response.DatabaseOK = true
		}
	}

	if h.jobs != nil {
		response.ScheduledJobs = h.jobs.Entries()
		response.Jobs = h.jobs.Status()
	}

	h.writeJSON(w, response)
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats samples CPU over 100ms and reads memory usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
