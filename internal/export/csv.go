// Package export writes frontier samples as CSV tables and optionally uploads them to S3.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/frontier"
)

const (
	// AllPortfoliosFile holds every trial in sampling order
	AllPortfoliosFile = "all_portfolios.csv"
	// UpperFrontierFile holds the filtered envelope, written only when non-empty
	UpperFrontierFile = "upper_frontier.csv"
)

// Columns returns the table header: return, risk, sharpe, one weight column per
// asset, then the min/max of each confidence band.
func Columns(labels []string) []string {
	cols := make([]string, 0, 3+len(labels)+6)
	cols = append(cols, "return", "risk", "sharpe")
	cols = append(cols, labels...)
	for _, band := range []string{"68", "95", "997"} {
		cols = append(cols, "min_"+band, "max_"+band)
	}
	return cols
}

// WriteTable writes records as CSV with the Columns header
func WriteTable(w io.Writer, labels []string, records []frontier.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(labels)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, 0, 3+len(labels)+6)
	for _, rec := range records {
		if len(rec.Weights) != len(labels) {
			return fmt.Errorf("trial %d has %d weights, expected %d", rec.Trial, len(rec.Weights), len(labels))
		}
		row = row[:0]
		row = append(row, formatFloat(rec.Metrics.Return), formatFloat(rec.Metrics.Risk), formatFloat(rec.Metrics.Sharpe))
		for _, w := range rec.Weights {
			row = append(row, formatFloat(w))
		}
		for _, b := range rec.Bands {
			row = append(row, formatFloat(b.Lower), formatFloat(b.Upper))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write trial %d: %w", rec.Trial, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Writer writes run tables into a directory
type Writer struct {
	dir string
	log zerolog.Logger
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string, log zerolog.Logger) *Writer {
	return &Writer{
		dir: dir,
		log: log.With().Str("component", "export").Logger(),
	}
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// WriteRun writes the full sample and, when non-empty, the filtered envelope.
// It returns the paths written.
func (w *Writer) WriteRun(labels []string, result *frontier.Result) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	allPath := filepath.Join(w.dir, AllPortfoliosFile)
	if err := writeFile(allPath, labels, result.Sample); err != nil {
		return nil, err
	}
	paths := []string{allPath}

	if len(result.Envelope) == 0 {
		w.log.Warn().Msg("No portfolio passed the acceptability filter, skipping upper frontier table")
		return paths, nil
	}

	envPath := filepath.Join(w.dir, UpperFrontierFile)
	if err := writeFile(envPath, labels, result.Envelope); err != nil {
		return nil, err
	}
	paths = append(paths, envPath)

	w.log.Info().
		Int("portfolios", len(result.Sample)).
		Int("envelope", len(result.Envelope)).
		Str("dir", w.dir).
		Msg("Exported frontier tables")
	return paths, nil
}

func writeFile(path string, labels []string, records []frontier.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := WriteTable(f, labels, records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
