package analysis

import (
	"context"
	"time"

	"github.com/aristath/frontier/internal/domain"
)

// PriceSource fetches monthly closes for a data-source symbol
type PriceSource interface {
	MonthlyCloses(ctx context.Context, symbol string, start time.Time) ([]domain.PricePoint, error)
}

// Uploader publishes the files exported for a run
type Uploader interface {
	Upload(ctx context.Context, runID string, files []string) error
}
