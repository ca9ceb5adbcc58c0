package analysis

import (
	"fmt"
	"strings"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/evaluation"
)

// Report is the analysis of one explicit allocation
type Report struct {
	Labels       []string                   `json:"labels"`
	Weights      domain.WeightVector        `json:"weights"`
	Metrics      evaluation.Metrics         `json:"metrics"`
	Bands        evaluation.ConfidenceBands `json:"bands"`
	RiskFreeRate float64                    `json:"risk_free_rate"`
	Periods      int                        `json:"periods"`
}

var bandNames = map[string]string{"68": "68%", "95": "95%", "997": "99.7%"}

// String renders the report as printable text
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("Manual allocation analysis:\n")
	fmt.Fprintf(&b, "Expected annual return: %.2f%%\n", r.Metrics.Return*100)
	fmt.Fprintf(&b, "Annual risk (volatility): %.2f%%\n", r.Metrics.Risk*100)
	fmt.Fprintf(&b, "Sharpe ratio: %.2f\n", r.Metrics.Sharpe)
	b.WriteString("Weights:\n")
	writeWeights(&b, r.Labels, r.Weights)
	b.WriteString("Confidence intervals:\n")
	writeBands(&b, r.Bands)
	return b.String()
}

func writeWeights(b *strings.Builder, labels []string, weights domain.WeightVector) {
	for i, label := range labels {
		if i < len(weights) {
			fmt.Fprintf(b, "  %s: %.2f%%\n", label, weights[i]*100)
		}
	}
}

func writeBands(b *strings.Builder, bands evaluation.ConfidenceBands) {
	for _, band := range bands {
		fmt.Fprintf(b, "  %s: %.2f%% to %.2f%%\n", bandNames[band.Label], band.Lower*100, band.Upper*100)
	}
}
