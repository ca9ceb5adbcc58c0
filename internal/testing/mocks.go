package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/frontier/internal/domain"
)

// MockPriceSource serves fixed closes per symbol and counts calls
type MockPriceSource struct {
	mu     sync.Mutex
	prices map[string][]domain.PricePoint
	errs   map[string]error
	calls  map[string]int
}

// NewMockPriceSource creates a price source over prices keyed by symbol
func NewMockPriceSource(prices map[string][]domain.PricePoint) *MockPriceSource {
	return &MockPriceSource{
		prices: prices,
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetError makes every fetch of symbol fail with err. A nil err clears it.
func (m *MockPriceSource) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, symbol)
		return
	}
	m.errs[symbol] = err
}

// Calls returns how many times symbol was fetched
func (m *MockPriceSource) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// MonthlyCloses returns the closes of symbol on or after start
func (m *MockPriceSource) MonthlyCloses(ctx context.Context, symbol string, start time.Time) ([]domain.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[symbol]++
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	points, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}

	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if !p.Period.Before(start) {
			out = append(out, p)
		}
	}
	return out, nil
}

// MockUploader records uploaded files per group
type MockUploader struct {
	mu    sync.Mutex
	files map[string][]string
	err   error
}

// NewMockUploader creates an uploader that fails with err when non-nil
func NewMockUploader(err error) *MockUploader {
	return &MockUploader{files: make(map[string][]string), err: err}
}

// Upload records files under group
func (m *MockUploader) Upload(ctx context.Context, group string, files []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[group] = append(m.files[group], files...)
	return m.err
}

// Files returns the files recorded under group
func (m *MockUploader) Files(group string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.files[group]...)
}
