package main

import (
	"fmt"
	"strconv"

	"github.com/aristath/frontier/internal/utils"
)

// parseWeights parses "A=0.4,B=0.6" into a label to weight map. An empty string
// yields a nil map.
func parseWeights(s string) (map[string]float64, error) {
	pairs, err := utils.ParsePairs(s)
	if err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	if pairs == nil {
		return nil, nil
	}

	weights := make(map[string]float64, len(pairs))
	for label, value := range pairs {
		w, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %s: %w", label, err)
		}
		weights[label] = w
	}
	return weights, nil
}
