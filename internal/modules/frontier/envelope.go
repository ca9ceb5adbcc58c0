package frontier

import (
	"cmp"
	"math"
	"slices"
)

// UpperEnvelope returns the records that make up the upper-left Pareto frontier over
// (risk, return). Records are ordered by risk, then return, and a record is kept only
// if its return strictly exceeds every previously kept return.
func UpperEnvelope(records []Record) []Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		if c := cmp.Compare(a.Metrics.Risk, b.Metrics.Risk); c != 0 {
			return c
		}
		return cmp.Compare(a.Metrics.Return, b.Metrics.Return)
	})

	envelope := make([]Record, 0)
	best := math.Inf(-1)
	for _, r := range sorted {
		if r.Metrics.Return > best {
			envelope = append(envelope, r)
			best = r.Metrics.Return
		}
	}
	return envelope
}

// Filter keeps the records accepted by accept, preserving order
func Filter(records []Record, accept Acceptance) []Record {
	if accept == nil {
		return slices.Clone(records)
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if accept(r) {
			out = append(out, r)
		}
	}
	return out
}

// MaxSharpe returns the record with the highest Sharpe ratio; the first one wins ties
func MaxSharpe(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	best := records[0]
	for _, r := range records[1:] {
		if r.Metrics.Sharpe > best.Metrics.Sharpe {
			best = r
		}
	}
	return best, true
}

// MinRisk returns the record with the lowest risk; the first one wins ties
func MinRisk(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	best := records[0]
	for _, r := range records[1:] {
		if r.Metrics.Risk < best.Metrics.Risk {
			best = r
		}
	}
	return best, true
}
