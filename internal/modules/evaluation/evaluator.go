// Package evaluation scores weight vectors against return statistics:
// annualized return, annualized volatility and Sharpe ratio.
package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/statistics"
)

const (
	// MinRisk is the floor applied to annual risk before it is used as a Sharpe denominator
	MinRisk = 1e-6
	// MonthlyPeriods is the periods-per-year constant for monthly data
	MonthlyPeriods = 12
)

// Metrics is the annualized outcome of one allocation
type Metrics struct {
	Return float64 `json:"return"`
	Risk   float64 `json:"risk"`
	Sharpe float64 `json:"sharpe"`
}

// Evaluator evaluates weight vectors against fixed statistics.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	stats          *statistics.Statistics
	riskFreeRate   float64
	periodsPerYear int
}

// NewEvaluator creates an evaluator for the given statistics and annual risk-free rate
func NewEvaluator(stats *statistics.Statistics, riskFreeRate float64, periodsPerYear int) (*Evaluator, error) {
	if stats == nil {
		return nil, fmt.Errorf("statistics required")
	}
	if periodsPerYear <= 0 {
		return nil, fmt.Errorf("periods per year must be positive, got %d", periodsPerYear)
	}
	return &Evaluator{
		stats:          stats,
		riskFreeRate:   riskFreeRate,
		periodsPerYear: periodsPerYear,
	}, nil
}

// Statistics returns the statistics the evaluator scores against
func (e *Evaluator) Statistics() *statistics.Statistics {
	return e.stats
}

// RiskFreeRate returns the annual risk-free rate
func (e *Evaluator) RiskFreeRate() float64 {
	return e.riskFreeRate
}

// Evaluate validates w and computes its annualized metrics:
//
//	return = P·(w·μ)
//	risk   = max(sqrt(P·wᵗΣw), MinRisk)
//	sharpe = (return − r_f) / risk
func (e *Evaluator) Evaluate(w domain.WeightVector) (Metrics, error) {
	if err := w.Validate(e.stats.Len()); err != nil {
		return Metrics{}, err
	}
	return e.evaluate(w), nil
}

// evaluate skips validation; callers guarantee w is well formed
func (e *Evaluator) evaluate(w domain.WeightVector) Metrics {
	p := float64(e.periodsPerYear)
	wv := mat.NewVecDense(len(w), w)

	annualReturn := p * mat.Dot(wv, e.stats.MeanVector())

	variance := mat.Inner(wv, e.stats.CovarianceMatrix(), wv)
	risk := math.Sqrt(math.Max(p*variance, 0))
	risk = math.Max(risk, MinRisk)

	return Metrics{
		Return: annualReturn,
		Risk:   risk,
		Sharpe: (annualReturn - e.riskFreeRate) / risk,
	}
}

// EvaluateTrusted evaluates a vector produced by the sampler, only checking its length
func (e *Evaluator) EvaluateTrusted(w domain.WeightVector) (Metrics, error) {
	if len(w) != e.stats.Len() {
		return Metrics{}, fmt.Errorf("%w: got %d weights for %d assets", domain.ErrDimensionMismatch, len(w), e.stats.Len())
	}
	return e.evaluate(w), nil
}
