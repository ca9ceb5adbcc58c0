package frontier

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/evaluation"
	"github.com/aristath/frontier/internal/modules/sampling"
	"github.com/aristath/frontier/internal/modules/statistics"
)

func fiveAssets(t *testing.T) (domain.AssetSet, *evaluation.Evaluator) {
	t.Helper()
	assets, err := domain.NewAssetSet(
		domain.Asset{Label: "IFIX", Source: "XFIX11.SA"},
		domain.Asset{Label: "IBOV", Source: "BOVA11.SA"},
		domain.Asset{Label: "IVVB11", Source: "IVVB11.SA"},
		domain.Asset{Label: "BTC", Source: "HASH11.SA"},
		domain.Asset{Label: "SELIC"},
	)
	require.NoError(t, err)

	stats, err := statistics.New(
		assets.Labels(),
		[]float64{0.008, 0.010, 0.013, 0.040, 0.0117},
		[][]float64{
			{0.0009, 0.0005, 0.0002, 0.0010, 0},
			{0.0005, 0.0040, 0.0015, 0.0030, 0},
			{0.0002, 0.0015, 0.0030, 0.0020, 0},
			{0.0010, 0.0030, 0.0020, 0.0400, 0},
			{0, 0, 0, 0, 0},
		},
		100,
	)
	require.NoError(t, err)

	ev, err := evaluation.NewEvaluator(stats, 0.15, evaluation.MonthlyPeriods)
	require.NoError(t, err)
	return assets, ev
}

func TestRun_FrontierProperties(t *testing.T) {
	assets, ev := fiveAssets(t)
	sampler, err := sampling.NewSampler(assets, nil)
	require.NoError(t, err)

	sim := NewSimulator(ev, sampler, zerolog.Nop())
	result, err := sim.Run(context.Background(), Config{Simulations: 2000, Workers: 4, Seed: 11}, nil)
	require.NoError(t, err)

	require.Len(t, result.Sample, 2000)
	for i, r := range result.Sample {
		assert.Equal(t, i, r.Trial)
	}
	require.NotEmpty(t, result.Frontier)

	// Monotonicity: return strictly increases with risk along the envelope
	for i := 1; i < len(result.Frontier); i++ {
		prev, cur := result.Frontier[i-1].Metrics, result.Frontier[i].Metrics
		assert.GreaterOrEqual(t, cur.Risk, prev.Risk)
		assert.Greater(t, cur.Return, prev.Return)
	}

	// Soundness: nothing in the sample beats an envelope point at equal or lower risk
	for _, e := range result.Frontier {
		for _, r := range result.Sample {
			if r.Metrics.Risk <= e.Metrics.Risk {
				assert.LessOrEqual(t, r.Metrics.Return, e.Metrics.Return)
			}
		}
	}

	for _, r := range result.Envelope {
		assert.GreaterOrEqual(t, r.Metrics.Return-r.Metrics.Risk, 0.0)
	}

	best, _ := MaxSharpe(result.Sample)
	assert.Equal(t, best.Trial, result.Tangency.Trial)
	safest, _ := MinRisk(result.Sample)
	assert.Equal(t, safest.Trial, result.MinRisk.Trial)
	assert.InDelta(t, result.Tangency.Metrics.Sharpe, result.CML.Slope, 1e-12)
}

func TestSample_IndependentOfWorkerCount(t *testing.T) {
	assets, ev := fiveAssets(t)
	sampler, err := sampling.NewSampler(assets, map[string]float64{"BTC": 0.05})
	require.NoError(t, err)
	sim := NewSimulator(ev, sampler, zerolog.Nop())

	one, err := sim.Sample(context.Background(), Config{Simulations: 600, Workers: 1, Seed: 3}, nil)
	require.NoError(t, err)
	many, err := sim.Sample(context.Background(), Config{Simulations: 600, Workers: 8, Seed: 3}, nil)
	require.NoError(t, err)

	assert.Equal(t, one, many)
	for _, r := range one {
		assert.Equal(t, 0.05, r.Weights[3])
		assert.InDelta(t, 1.0, r.Weights.Sum(), 1e-9)
	}
}

func TestRun_SingleTrialSingleFreeAsset(t *testing.T) {
	assets, ev := fiveAssets(t)
	pinned := map[string]float64{"IFIX": 0.1, "IBOV": 0.2, "IVVB11": 0.2, "BTC": 0.1}
	sampler, err := sampling.NewSampler(assets, pinned)
	require.NoError(t, err)
	sim := NewSimulator(ev, sampler, zerolog.Nop())

	for _, accept := range []Acceptance{AcceptAll, RiskAtMost(0)} {
		result, err := sim.Run(context.Background(), Config{Simulations: 1, Seed: 1, Accept: accept}, nil)
		require.NoError(t, err)

		require.Len(t, result.Sample, 1)
		require.Len(t, result.Frontier, 1)
		assert.InDelta(t, 0.4, result.Sample[0].Weights[4], 1e-12)

		if accept(result.Sample[0]) {
			assert.Len(t, result.Envelope, 1)
		} else {
			assert.Empty(t, result.Envelope)
		}
	}
}

func TestSample_ReportsProgress(t *testing.T) {
	assets, ev := fiveAssets(t)
	sampler, err := sampling.NewSampler(assets, nil)
	require.NoError(t, err)
	sim := NewSimulator(ev, sampler, zerolog.Nop())

	var last, calls int
	_, err = sim.Sample(context.Background(), Config{Simulations: 1000, Workers: 3}, func(done, total int) {
		calls++
		assert.Greater(t, done, last)
		assert.Equal(t, 1000, total)
		last = done
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, last)
	assert.Equal(t, 4, calls)
}

func TestSample_Cancelled(t *testing.T) {
	assets, ev := fiveAssets(t)
	sampler, err := sampling.NewSampler(assets, nil)
	require.NoError(t, err)
	sim := NewSimulator(ev, sampler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sim.Sample(ctx, Config{Simulations: 1000}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
