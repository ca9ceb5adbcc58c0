package statistics

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/frontier/internal/domain"
)

// TimeSeriesData holds per-asset values aligned to a shared list of periods.
// Missing observations are NaN.
type TimeSeriesData struct {
	Periods []time.Time
	Labels  []string
	Data    map[string][]float64
}

// PeriodStart normalizes t to the first day of its month in UTC
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AlignPrices joins per-asset price series on their period.
// The result covers the union of all periods, with NaN where an asset has no observation.
func AlignPrices(labels []string, series map[string][]domain.PricePoint) TimeSeriesData {
	byLabel := make(map[string]map[time.Time]float64, len(labels))
	periodSet := make(map[time.Time]bool)

	for _, label := range labels {
		points := make(map[time.Time]float64, len(series[label]))
		for _, p := range series[label] {
			period := PeriodStart(p.Period)
			points[period] = p.Close
			periodSet[period] = true
		}
		byLabel[label] = points
	}

	periods := make([]time.Time, 0, len(periodSet))
	for p := range periodSet {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	data := make(map[string][]float64, len(labels))
	for _, label := range labels {
		values := make([]float64, len(periods))
		for i, p := range periods {
			if v, ok := byLabel[label][p]; ok {
				values[i] = v
			} else {
				values[i] = math.NaN()
			}
		}
		data[label] = values
	}

	return TimeSeriesData{
		Periods: periods,
		Labels:  append([]string(nil), labels...),
		Data:    data,
	}
}

// DropMissing removes every period in which any asset has a missing (NaN) value
// or a close that cannot start a return: non-positive or infinite
func (d TimeSeriesData) DropMissing() TimeSeriesData {
	keep := make([]int, 0, len(d.Periods))
	for i := range d.Periods {
		complete := true
		for _, label := range d.Labels {
			values := d.Data[label]
			if i >= len(values) || !usableClose(values[i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	out := TimeSeriesData{
		Periods: make([]time.Time, len(keep)),
		Labels:  append([]string(nil), d.Labels...),
		Data:    make(map[string][]float64, len(d.Labels)),
	}
	for k, i := range keep {
		out.Periods[k] = d.Periods[i]
	}
	for _, label := range d.Labels {
		values := make([]float64, len(keep))
		for k, i := range keep {
			values[k] = d.Data[label][i]
		}
		out.Data[label] = values
	}
	return out
}

func usableClose(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Since drops every period before start
func (d TimeSeriesData) Since(start time.Time) TimeSeriesData {
	first := sort.Search(len(d.Periods), func(i int) bool { return !d.Periods[i].Before(start) })

	out := TimeSeriesData{
		Periods: append([]time.Time(nil), d.Periods[first:]...),
		Labels:  append([]string(nil), d.Labels...),
		Data:    make(map[string][]float64, len(d.Labels)),
	}
	for _, label := range d.Labels {
		values := d.Data[label]
		if first < len(values) {
			out.Data[label] = append([]float64(nil), values[first:]...)
		} else {
			out.Data[label] = []float64{}
		}
	}
	return out
}

// calculateReturns calculates period-over-period percentage changes.
// The result has one row fewer than the input; prices must already have
// passed DropMissing.
func calculateReturns(data TimeSeriesData) map[string][]float64 {
	returns := make(map[string][]float64, len(data.Labels))

	for _, label := range data.Labels {
		prices := data.Data[label]
		if len(prices) < 2 {
			returns[label] = []float64{}
			continue
		}

		periodReturns := make([]float64, len(prices)-1)
		for i := 1; i < len(prices); i++ {
			periodReturns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
		returns[label] = periodReturns
	}

	return returns
}
