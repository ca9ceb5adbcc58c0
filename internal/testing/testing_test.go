package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestDB(t *testing.T) {
	db, cleanup := NewTestDB(t, "history")

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'monthly_prices'").Scan(&count))
	assert.Equal(t, 1, count)

	cleanup()
	cleanup()
}

func TestMonthlySeries(t *testing.T) {
	points := MonthlySeries(time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC), 100, 1.1, 0.5)

	require.Len(t, points, 3)
	assert.Equal(t, time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), points[0].Period)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), points[2].Period)
	assert.InDelta(t, 110.0, points[1].Close, 1e-9)
	assert.InDelta(t, 55.0, points[2].Close, 1e-9)
}

func TestMockPriceSource(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	source := NewMockPriceSource(NewPriceFixtures(start))
	ctx := context.Background()

	points, err := source.MonthlyCloses(ctx, "EQ.SA", start.AddDate(0, 6, 0))
	require.NoError(t, err)
	assert.Len(t, points, 7)
	assert.Equal(t, 1, source.Calls("EQ.SA"))

	_, err = source.MonthlyCloses(ctx, "XX.SA", start)
	assert.Error(t, err)

	boom := errors.New("boom")
	source.SetError("RE.SA", boom)
	_, err = source.MonthlyCloses(ctx, "RE.SA", start)
	assert.ErrorIs(t, err, boom)

	source.SetError("RE.SA", nil)
	_, err = source.MonthlyCloses(ctx, "RE.SA", start)
	assert.NoError(t, err)
}

func TestMockUploader(t *testing.T) {
	uploader := NewMockUploader(nil)
	require.NoError(t, uploader.Upload(context.Background(), "run-1", []string{"a.csv", "b.png"}))
	assert.Equal(t, []string{"a.csv", "b.png"}, uploader.Files("run-1"))
	assert.Empty(t, uploader.Files("run-2"))
}
