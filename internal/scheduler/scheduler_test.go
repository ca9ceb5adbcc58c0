package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/modules/frontier"
	"github.com/aristath/frontier/internal/modules/runs"
)

type countingJob struct {
	runs chan struct{}
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs <- struct{}{}
	return j.err
}

type fakeRefresher struct {
	n   int
	err error
}

func (f *fakeRefresher) RefreshPrices(ctx context.Context) (int, error) {
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected a deadline")
	}
	return f.n, f.err
}

type fakeRunner struct {
	opts  analysis.RunOptions
	calls int
	err   error
}

func (f *fakeRunner) RunFrontier(ctx context.Context, opts analysis.RunOptions, progress frontier.Progress) (*analysis.Run, error) {
	f.opts = opts
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Run{Summary: runs.Summary{ID: "run-1"}}, nil
}

func TestScheduler_AddJobAndRun(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{runs: make(chan struct{}, 4), err: errors.New("job errors are logged")}

	require.NoError(t, s.AddJob("@every 1s", job))
	assert.Equal(t, 1, s.Entries())

	s.Start()
	defer s.Stop()

	select {
	case <-job.runs:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("not a schedule", &countingJob{runs: make(chan struct{}, 1)}))
	// Five-field expressions are rejected: the seconds field is required
	assert.Error(t, s.AddJob("0 6 1 * *", &countingJob{runs: make(chan struct{}, 1)}))
	assert.NoError(t, s.AddJob("0 0 6 1 * *", &countingJob{runs: make(chan struct{}, 1)}))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{runs: make(chan struct{}, 1)}

	require.NoError(t, s.RunNow(job))
	assert.Len(t, job.runs, 1)
}

func TestScheduler_Status(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{runs: make(chan struct{}, 2)}
	require.NoError(t, s.AddJob("0 0 3 * * *", job))

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "counting", status[0].Name)
	assert.Equal(t, "0 0 3 * * *", status[0].Schedule)
	assert.Zero(t, status[0].Runs)

	job.err = errors.New("disk full")
	assert.Error(t, s.RunNow(job))
	job.err = nil
	require.NoError(t, s.RunNow(job))

	status = s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 2, status[0].Runs)
	assert.Equal(t, 1, status[0].Failures)
	assert.Empty(t, status[0].LastError)
	assert.False(t, status[0].LastRun.IsZero())
}

func TestRefreshPricesJob(t *testing.T) {
	tests := []struct {
		name      string
		refresher *fakeRefresher
		wantErr   bool
	}{
		{"refreshed", &fakeRefresher{n: 3}, false},
		{"nothing refreshed", &fakeRefresher{n: 0}, true},
		{"refresh error", &fakeRefresher{err: errors.New("no source")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewRefreshPricesJob(tt.refresher, time.Minute, zerolog.Nop())
			assert.Equal(t, "refresh_prices", job.Name())
			err := job.Run()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFrontierRunJob(t *testing.T) {
	runner := &fakeRunner{}
	job := NewFrontierRunJob(runner, true, time.Minute, zerolog.Nop())

	assert.Equal(t, "frontier_run", job.Name())
	require.NoError(t, job.Run())
	assert.True(t, runner.opts.Export)

	runner.err = errors.New("boom")
	assert.ErrorContains(t, job.Run(), "boom")
}

func TestDatabaseHealthJob(t *testing.T) {
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "history.db"), Name: "history"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	job := NewDatabaseHealthJob(db, zerolog.Nop())
	assert.Equal(t, "database_health", job.Name())
	assert.NoError(t, job.Run())

	assert.NoError(t, NewDatabaseHealthJob(nil, zerolog.Nop()).Run())
}

func TestCompositeJob_RunsEveryStep(t *testing.T) {
	refresher := &fakeRefresher{n: 0}
	runner := &fakeRunner{}
	job := NewCompositeJob("refresh_and_run", zerolog.Nop(),
		NewRefreshPricesJob(refresher, time.Minute, zerolog.Nop()),
		NewFrontierRunJob(runner, false, time.Minute, zerolog.Nop()),
	)

	assert.Equal(t, "refresh_and_run", job.Name())

	// The refresh step fails but the run still happens on stored history
	err := job.Run()
	require.Error(t, err)
	assert.ErrorContains(t, err, "refresh_prices")
	assert.Equal(t, 1, runner.calls)

	refresher.n = 2
	assert.NoError(t, job.Run())
}
