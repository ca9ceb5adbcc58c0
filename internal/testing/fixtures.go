package testing

import (
	"time"

	"github.com/aristath/frontier/internal/domain"
)

// MonthlySeries builds month-start closes beginning at start. Each move is the
// ratio of a close to the previous one.
func MonthlySeries(start time.Time, first float64, moves ...float64) []domain.PricePoint {
	period := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, 0, len(moves)+1)
	points = append(points, domain.PricePoint{Period: period, Close: first})

	price := first
	for _, m := range moves {
		price *= m
		period = period.AddDate(0, 1, 0)
		points = append(points, domain.PricePoint{Period: period, Close: price})
	}
	return points
}

// NewAssetFixtures returns an equity, a real estate fund and a fixed income
// asset, in that order
func NewAssetFixtures() []domain.Asset {
	return []domain.Asset{
		{Label: "EQ", Source: "EQ.SA"},
		{Label: "RE", Source: "RE.SA"},
		{Label: "CDI"},
	}
}

// NewPriceFixtures returns a year of closes for the sourced assets of
// NewAssetFixtures, keyed by source symbol
func NewPriceFixtures(start time.Time) map[string][]domain.PricePoint {
	return map[string][]domain.PricePoint{
		"EQ.SA": MonthlySeries(start, 100, 1.04, 0.97, 1.06, 0.95, 1.03, 1.02, 0.98, 1.05, 1.01, 0.96, 1.04, 1.02),
		"RE.SA": MonthlySeries(start, 50, 1.01, 1.00, 1.02, 0.99, 1.01, 1.00, 1.02, 0.99, 1.01, 1.01, 1.00, 1.02),
	}
}
