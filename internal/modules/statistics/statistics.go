// Package statistics turns periodic price observations into the mean vector and
// covariance matrix used to evaluate portfolios.
package statistics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// HighCorrelationThreshold is the correlation magnitude reported as "high"
const HighCorrelationThreshold = 0.80

// Statistics is the read-only mean vector and covariance matrix of a return table,
// aligned to asset order.
type Statistics struct {
	labels  []string
	mean    *mat.VecDense
	cov     *mat.SymDense
	periods int
}

// CorrelationPair represents a pair of assets with their correlation
type CorrelationPair struct {
	Asset1      string  `json:"asset1"`
	Asset2      string  `json:"asset2"`
	Correlation float64 `json:"correlation"`
}

// New builds Statistics from plain slices. cov must be square, symmetric and sized like mean.
func New(labels []string, mean []float64, cov [][]float64, periods int) (*Statistics, error) {
	n := len(labels)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	if len(mean) != n {
		return nil, fmt.Errorf("mean vector size %d doesn't match asset count %d", len(mean), n)
	}
	if len(cov) != n {
		return nil, fmt.Errorf("covariance matrix size %d doesn't match asset count %d", len(cov), n)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(cov[i]), n)
		}
		for j := i; j < n; j++ {
			if cov[i][j] != cov[j][i] {
				return nil, fmt.Errorf("covariance matrix is not symmetric at (%d,%d)", i, j)
			}
			sym.SetSym(i, j, cov[i][j])
		}
	}

	return &Statistics{
		labels:  append([]string(nil), labels...),
		mean:    mat.NewVecDense(n, append([]float64(nil), mean...)),
		cov:     sym,
		periods: periods,
	}, nil
}

// Len returns the number of assets
func (s *Statistics) Len() int {
	return len(s.labels)
}

// Labels returns the asset labels in order
func (s *Statistics) Labels() []string {
	return append([]string(nil), s.labels...)
}

// Periods returns the number of return observations the statistics were computed from
func (s *Statistics) Periods() int {
	return s.periods
}

// Mean returns a copy of the mean return vector
func (s *Statistics) Mean() []float64 {
	out := make([]float64, s.mean.Len())
	for i := range out {
		out[i] = s.mean.AtVec(i)
	}
	return out
}

// Covariance returns a copy of the covariance matrix
func (s *Statistics) Covariance() [][]float64 {
	n := s.Len()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = s.cov.At(i, j)
		}
	}
	return out
}

// MeanVector exposes the mean vector for matrix arithmetic
func (s *Statistics) MeanVector() mat.Vector {
	return s.mean
}

// CovarianceMatrix exposes the covariance matrix for matrix arithmetic
func (s *Statistics) CovarianceMatrix() mat.Symmetric {
	return s.cov
}

// Correlations lists asset pairs whose correlation magnitude is at least threshold.
// Zero-variance assets have no defined correlation and are skipped.
func (s *Statistics) Correlations(threshold float64) []CorrelationPair {
	n := s.Len()
	correlations := make([]CorrelationPair, 0)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			vi, vj := s.cov.At(i, i), s.cov.At(j, j)
			if vi <= 0 || vj <= 0 {
				continue
			}
			correlation := s.cov.At(i, j) / math.Sqrt(vi*vj)
			if math.Abs(correlation) >= threshold {
				correlations = append(correlations, CorrelationPair{
					Asset1:      s.labels[i],
					Asset2:      s.labels[j],
					Correlation: correlation,
				})
			}
		}
	}

	return correlations
}

// Snapshot is the serializable form of Statistics
type Snapshot struct {
	Labels     []string    `msgpack:"labels" json:"labels"`
	Mean       []float64   `msgpack:"mean" json:"mean"`
	Covariance [][]float64 `msgpack:"covariance" json:"covariance"`
	Periods    int         `msgpack:"periods" json:"periods"`
}

// Snapshot returns a serializable copy
func (s *Statistics) Snapshot() Snapshot {
	return Snapshot{
		Labels:     s.Labels(),
		Mean:       s.Mean(),
		Covariance: s.Covariance(),
		Periods:    s.periods,
	}
}

// FromSnapshot rebuilds Statistics from a snapshot
func FromSnapshot(snap Snapshot) (*Statistics, error) {
	return New(snap.Labels, snap.Mean, snap.Covariance, snap.Periods)
}

// PeriodicRate converts an annual rate into the equivalent compounded rate per period
func PeriodicRate(annual float64, periodsPerYear int) float64 {
	return math.Pow(1+annual, 1/float64(periodsPerYear)) - 1
}
