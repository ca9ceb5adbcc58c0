package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/scheduler"
	testingpkg "github.com/aristath/frontier/internal/testing"
)

// fixtureSource serves a year of closes for every sourced asset of the default portfolio
func fixtureSource() *testingpkg.MockPriceSource {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := testingpkg.NewPriceFixtures(start)
	return testingpkg.NewMockPriceSource(map[string][]domain.PricePoint{
		"XFIX11.SA": prices["RE.SA"],
		"BOVA11.SA": prices["EQ.SA"],
		"IVVB11.SA": testingpkg.MonthlySeries(start, 300, 1.02, 1.01, 0.99, 1.03, 1.00, 1.02, 0.97, 1.04, 1.01, 1.00, 1.02, 1.01),
		"HASH11.SA": testingpkg.MonthlySeries(start, 40, 1.20, 0.85, 1.10, 0.90, 1.25, 0.95, 1.05, 0.80, 1.30, 1.10, 0.90, 1.15),
	})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:         t.TempDir(),
		StartDate:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		RiskFreeRate:    0.10,
		FixedIncomeRate: 0.10,
		PeriodsPerYear:  12,
		Simulations:     50,
		Workers:         1,
		AcceptRule:      "return_over_risk",
		AcceptThreshold: 1.0,
		RefreshSchedule: "0 0 6 1 * *",
		Portfolio:       config.DefaultPortfolio(),

		BackupSchedule:      "0 0 3 * * *",
		BackupRetentionDays: 30,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(context.Background(), cfg, zerolog.Nop(), WithPriceSource(fixtureSource()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.HistoryRepo)
	assert.NotNil(t, container.RunsRepo)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Renderer)
	assert.NotNil(t, container.AnalysisService)
	assert.NotNil(t, container.BackupService)
	assert.Nil(t, container.YahooClient)
	assert.Nil(t, container.Uploader)
	assert.Equal(t, filepath.Join(cfg.DataDir, HistoryDBFile), container.HistoryDB.Path())

	n, err := container.AnalysisService.RefreshPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestWire_DefaultsToYahoo(t *testing.T) {
	container, err := Wire(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	require.NotNil(t, container.YahooClient)
	assert.Equal(t, container.YahooClient, container.PriceSource)
}

func TestRegisterJobs(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(context.Background(), cfg, zerolog.Nop(), WithPriceSource(fixtureSource()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	sched := scheduler.New(zerolog.Nop())
	jobs, err := RegisterJobs(container, cfg, sched, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 3, sched.Entries())
	assert.Equal(t, "refresh_and_run", jobs.RefreshAndRun.Name())
	assert.NoError(t, jobs.DatabaseHealth.Run())
	require.NotNil(t, jobs.Backup)
	assert.NoError(t, jobs.Backup.Run())

	backups, err := container.BackupService.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRegisterJobs_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(context.Background(), cfg, zerolog.Nop(), WithPriceSource(fixtureSource()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	cfg.RefreshSchedule = "not a schedule"
	_, err = RegisterJobs(container, cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)

	_, err = RegisterJobs(nil, cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_Offline(t *testing.T) {
	container, err := Wire(context.Background(), testConfig(t), zerolog.Nop(), Offline())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Nil(t, container.PriceSource)
	assert.Nil(t, container.YahooClient)

	_, err = container.AnalysisService.RefreshPrices(context.Background())
	assert.Error(t, err)
}

func TestWire_ExportDir(t *testing.T) {
	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "out")

	container, err := Wire(context.Background(), cfg, zerolog.Nop(), WithPriceSource(fixtureSource()), WithExportDir(out))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	run, err := container.AnalysisService.RunFrontier(context.Background(), analysis.RunOptions{Export: true, Seed: 1}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, run.Files)
	for _, f := range run.Files {
		assert.Equal(t, filepath.Join(out, run.Summary.ID), filepath.Dir(f))
	}
}
