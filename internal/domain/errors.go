package domain

import "errors"

var (
	// ErrWeightSum is returned when an explicit allocation does not sum to 1.0
	ErrWeightSum = errors.New("weights must sum to 1.0")
	// ErrNegativeWeight is returned when an allocation holds a negative or NaN weight
	ErrNegativeWeight = errors.New("weights must be non-negative")
	// ErrDimensionMismatch is returned when a weight vector length differs from the asset count
	ErrDimensionMismatch = errors.New("weight vector length does not match asset count")
	// ErrInsufficientData is returned when no usable periods remain after missing-value removal
	ErrInsufficientData = errors.New("insufficient data")
	// ErrConstraintViolation is returned when pinned weights cannot be completed to a valid allocation
	ErrConstraintViolation = errors.New("pinned weights violate allocation constraints")
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrDuplicateAsset      = errors.New("duplicate asset")
)
