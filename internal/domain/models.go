// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
	"time"
)

// WeightTolerance is the allowed distance of a weight vector's sum from 1.0
const WeightTolerance = 1e-6

// Asset is one entry of an AssetSet
type Asset struct {
	Label  string `json:"label" yaml:"label"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"` // Data-source key (empty for the constant-return asset)
}

// AssetSet is an ordered set of assets. Weight vectors are positional and follow this order.
type AssetSet struct {
	assets []Asset
	index  map[string]int
}

// NewAssetSet builds an AssetSet, rejecting empty and duplicated labels
func NewAssetSet(assets ...Asset) (AssetSet, error) {
	set := AssetSet{
		assets: make([]Asset, 0, len(assets)),
		index:  make(map[string]int, len(assets)),
	}
	for _, a := range assets {
		if a.Label == "" {
			return AssetSet{}, fmt.Errorf("asset with empty label")
		}
		if _, ok := set.index[a.Label]; ok {
			return AssetSet{}, fmt.Errorf("%w: %s", ErrDuplicateAsset, a.Label)
		}
		set.index[a.Label] = len(set.assets)
		set.assets = append(set.assets, a)
	}
	return set, nil
}

// Len returns the number of assets
func (s AssetSet) Len() int {
	return len(s.assets)
}

// Labels returns the asset labels in order
func (s AssetSet) Labels() []string {
	labels := make([]string, len(s.assets))
	for i, a := range s.assets {
		labels[i] = a.Label
	}
	return labels
}

// Assets returns a copy of the assets in order
func (s AssetSet) Assets() []Asset {
	out := make([]Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

// Index returns the position of label, or false if it is not part of the set
func (s AssetSet) Index(label string) (int, bool) {
	i, ok := s.index[label]
	return i, ok
}

// Weights converts a label-keyed allocation into a WeightVector in set order.
// Labels missing from the mapping get weight 0.
func (s AssetSet) Weights(allocation map[string]float64) (WeightVector, error) {
	w := make(WeightVector, len(s.assets))
	for label, v := range allocation {
		i, ok := s.index[label]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, label)
		}
		w[i] = v
	}
	return w, nil
}

// WeightVector holds one fraction per asset, aligned to AssetSet order
type WeightVector []float64

// Sum returns the total of all weights
func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Validate checks length against the asset count, that every weight is
// non-negative and that the weights sum to 1.0
func (w WeightVector) Validate(assetCount int) error {
	if len(w) != assetCount {
		return fmt.Errorf("%w: got %d weights for %d assets", ErrDimensionMismatch, len(w), assetCount)
	}
	for i, v := range w {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: weight %d is %v", ErrNegativeWeight, i, v)
		}
	}
	sum := w.Sum()
	if math.IsNaN(sum) || math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("%w: sum is %.6f, must be 1.0", ErrWeightSum, sum)
	}
	return nil
}

// Map returns the weights keyed by asset label
func (w WeightVector) Map(labels []string) map[string]float64 {
	out := make(map[string]float64, len(labels))
	for i, label := range labels {
		if i < len(w) {
			out[label] = w[i]
		}
	}
	return out
}

// PricePoint is one periodic adjusted close
type PricePoint struct {
	Period time.Time `json:"period"`
	Close  float64   `json:"close"`
}
