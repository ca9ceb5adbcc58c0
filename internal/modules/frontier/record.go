// Package frontier approximates the efficient frontier by Monte Carlo sampling of
// constrained allocations and reduces the sample to its upper Pareto envelope.
package frontier

import (
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/evaluation"
)

// Record is one Monte Carlo trial
type Record struct {
	Trial   int                        `json:"trial"`
	Weights domain.WeightVector        `json:"weights"`
	Metrics evaluation.Metrics         `json:"metrics"`
	Bands   evaluation.ConfidenceBands `json:"bands"`
}

func newRecord(trial int, w domain.WeightVector, m evaluation.Metrics) Record {
	return Record{
		Trial:   trial,
		Weights: w,
		Metrics: m,
		Bands:   m.Bands(),
	}
}

// CapitalMarketLine runs from the risk-free asset at zero risk through the tangency portfolio
type CapitalMarketLine struct {
	RiskFreeRate   float64 `json:"risk_free_rate"`
	TangencyRisk   float64 `json:"tangency_risk"`
	TangencyReturn float64 `json:"tangency_return"`
	Slope          float64 `json:"slope"`
}

// NewCapitalMarketLine anchors the line at (0, riskFreeRate) and passes through tangency
func NewCapitalMarketLine(riskFreeRate float64, tangency Record) CapitalMarketLine {
	return CapitalMarketLine{
		RiskFreeRate:   riskFreeRate,
		TangencyRisk:   tangency.Metrics.Risk,
		TangencyReturn: tangency.Metrics.Return,
		Slope:          (tangency.Metrics.Return - riskFreeRate) / tangency.Metrics.Risk,
	}
}

// At returns the line's expected return for the given risk
func (l CapitalMarketLine) At(risk float64) float64 {
	return l.RiskFreeRate + l.Slope*risk
}

// Result is the outcome of one frontier run
type Result struct {
	Sample   []Record          `json:"-"`        // Every trial, in sampling order
	Frontier []Record          `json:"frontier"` // Upper envelope before the acceptability filter
	Envelope []Record          `json:"envelope"` // Upper envelope after the acceptability filter
	Tangency Record            `json:"tangency"`
	MinRisk  Record            `json:"min_risk"`
	CML      CapitalMarketLine `json:"cml"`
}
