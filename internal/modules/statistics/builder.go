package statistics

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/frontier/internal/domain"
)

// MinReturnPeriods is the fewest return observations a sample covariance (N-1) can use
const MinReturnPeriods = 2

// Input is everything Build needs
type Input struct {
	Assets domain.AssetSet
	Prices TimeSeriesData // Observed assets only, keyed by asset label
	// FixedIncome is the label of the constant-return asset (empty for none)
	FixedIncome string
	// PeriodicRate is the constant return of FixedIncome in every period
	PeriodicRate float64
}

// Builder builds mean/covariance statistics from price tables
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a new statistics builder
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{
		log: log.With().Str("component", "statistics").Logger(),
	}
}

// Build drops incomplete periods, converts prices to returns, appends the constant
// fixed-income column and computes the sample mean and sample covariance (N-1).
func (b *Builder) Build(in Input) (*Statistics, error) {
	labels := in.Assets.Labels()
	if len(labels) == 0 {
		return nil, fmt.Errorf("no assets provided")
	}

	observed := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == in.FixedIncome {
			continue
		}
		if _, ok := in.Prices.Data[label]; !ok {
			return nil, fmt.Errorf("no price series for asset %s", label)
		}
		observed = append(observed, label)
	}

	prices := TimeSeriesData{Periods: in.Prices.Periods, Labels: observed, Data: in.Prices.Data}
	clean := prices.DropMissing()
	dropped := len(prices.Periods) - len(clean.Periods)
	if dropped > 0 {
		b.log.Debug().
			Int("dropped_periods", dropped).
			Int("remaining_periods", len(clean.Periods)).
			Msg("Dropped periods with missing or invalid prices")
	}

	returns := calculateReturns(clean)
	rows := len(clean.Periods) - 1
	if rows < MinReturnPeriods {
		return nil, fmt.Errorf("%w: %d return periods after dropping missing prices (need at least %d)",
			domain.ErrInsufficientData, max(rows, 0), MinReturnPeriods)
	}

	n := len(labels)
	data := mat.NewDense(rows, n, nil)
	for j, label := range labels {
		for t := 0; t < rows; t++ {
			if label == in.FixedIncome {
				data.Set(t, j, in.PeriodicRate)
			} else {
				data.Set(t, j, returns[label][t])
			}
		}
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	mean := make([]float64, n)
	for j := 0; j < n; j++ {
		col := mat.Col(nil, j, data)
		if isConstant(col) {
			// Exact zeros: centering a constant column can leave rounding residue
			mean[j] = col[0]
			for k := 0; k < n; k++ {
				cov.SetSym(j, k, 0)
			}
			continue
		}
		mean[j] = stat.Mean(col, nil)
	}

	b.log.Info().
		Int("assets", n).
		Int("periods", rows).
		Msg("Built return statistics")

	return &Statistics{
		labels:  labels,
		mean:    mat.NewVecDense(n, mean),
		cov:     &cov,
		periods: rows,
	}, nil
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
