// Package sampling draws random weight vectors that respect pinned allocations.
package sampling

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/frontier/internal/domain"
)

// pinnedTolerance allows for rounding in user-supplied pinned weights
const pinnedTolerance = 1e-9

// Sampler generates weight vectors where pinned assets keep their fixed weight and the
// remaining share is split across free assets by normalized uniform draws.
// A Sampler is immutable; randomness comes from the source passed to Sample.
type Sampler struct {
	pinned   []float64 // Fixed weight per asset position, 0 for free assets
	free     []int     // Positions of free assets, in asset order
	leftover float64   // 1 - sum of pinned weights
}

// NewSampler builds a sampler from a label-keyed pinned mapping.
// A weight of 0 (or a missing label) marks the asset as free.
func NewSampler(assets domain.AssetSet, pinned map[string]float64) (*Sampler, error) {
	weights, err := assets.Weights(pinned)
	if err != nil {
		return nil, err
	}

	s := &Sampler{pinned: make([]float64, len(weights))}
	total := 0.0
	for i, w := range weights {
		switch {
		case w < 0:
			return nil, fmt.Errorf("%w: negative pinned weight %.6f for %s", domain.ErrConstraintViolation, w, assets.Labels()[i])
		case w == 0:
			s.free = append(s.free, i)
		default:
			s.pinned[i] = w
			total += w
		}
	}

	if total > 1+pinnedTolerance {
		return nil, fmt.Errorf("%w: pinned weights sum to %.6f (max 1.0)", domain.ErrConstraintViolation, total)
	}
	if len(s.free) == 0 && total < 1-pinnedTolerance {
		return nil, fmt.Errorf("%w: every asset is pinned but weights sum to %.6f", domain.ErrConstraintViolation, total)
	}

	s.leftover = max(1-total, 0)
	return s, nil
}

// FreeCount returns the number of assets whose weight is sampled
func (s *Sampler) FreeCount() int {
	return len(s.free)
}

// Leftover returns the share distributed across free assets
func (s *Sampler) Leftover() float64 {
	return s.leftover
}

// Sample draws one weight vector using src
func (s *Sampler) Sample(src rand.Source) domain.WeightVector {
	shares := s.drawShares(src)

	w := make(domain.WeightVector, len(s.pinned))
	copy(w, s.pinned)
	for cursor, pos := range s.free {
		w[pos] = shares[cursor]
	}
	return w
}

// drawShares returns one share per free asset, summing to the leftover
func (s *Sampler) drawShares(src rand.Source) []float64 {
	shares := make([]float64, len(s.free))
	if len(shares) == 0 {
		return shares
	}

	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	for {
		for i := range shares {
			shares[i] = u.Rand()
		}
		// An all-zero draw cannot be normalized
		if sum := floats.Sum(shares); sum > 0 {
			for i := range shares {
				shares[i] = shares[i] / sum * s.leftover
			}
			return shares
		}
	}
}
