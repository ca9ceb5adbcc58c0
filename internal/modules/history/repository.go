// Package history stores monthly closing prices and cached return statistics.
package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/statistics"
	"github.com/aristath/frontier/internal/utils"
)

const periodLayout = "2006-01-02"

// Repository provides access to the history database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}
}

// UpsertPrices inserts or replaces monthly closes for a symbol in a single transaction.
// Periods are normalized to the first day of their month.
func (r *Repository) UpsertPrices(symbol string, prices []domain.PricePoint) error {
	if len(prices) == 0 {
		return nil
	}

	done := utils.MeasureDBQuery("upsert_prices", r.log)
	now := time.Now().Unix()
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO monthly_prices (symbol, period, close, fetched_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			period := statistics.PeriodStart(p.Period).Format(periodLayout)
			if _, err := stmt.Exec(symbol, period, p.Close, now); err != nil {
				return fmt.Errorf("failed to insert price for %s at %s: %w", symbol, period, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	done(int64(len(prices)))

	r.log.Debug().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Stored monthly prices")
	return nil
}

// GetPrices returns monthly closes for a symbol since start (inclusive), ordered by period.
// A zero start returns the full history.
func (r *Repository) GetPrices(symbol string, start time.Time) ([]domain.PricePoint, error) {
	query := `
		SELECT period, close
		FROM monthly_prices
		WHERE symbol = ? AND period >= ?
		ORDER BY period ASC
	`

	from := ""
	if !start.IsZero() {
		from = statistics.PeriodStart(start).Format(periodLayout)
	}

	done := utils.MeasureDBQuery("get_prices", r.log)
	rows, err := r.db.Query(query, symbol, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.PricePoint
	for rows.Next() {
		var period string
		var p domain.PricePoint
		if err := rows.Scan(&period, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan monthly price: %w", err)
		}
		p.Period, err = time.Parse(periodLayout, period)
		if err != nil {
			return nil, fmt.Errorf("invalid period %q for %s: %w", period, symbol, err)
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly prices: %w", err)
	}
	done(int64(len(prices)))

	return prices, nil
}

// LatestPeriod returns the most recent stored period for a symbol
func (r *Repository) LatestPeriod(symbol string) (time.Time, bool, error) {
	var period sql.NullString
	err := r.db.QueryRow("SELECT MAX(period) FROM monthly_prices WHERE symbol = ?", symbol).Scan(&period)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest period: %w", err)
	}
	if !period.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(periodLayout, period.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid period %q for %s: %w", period.String, symbol, err)
	}
	return t, true, nil
}

// StatisticsKey creates a deterministic cache key for a statistics build.
// Labels are sorted so the key does not depend on asset order.
func StatisticsKey(labels []string, start, end time.Time, periodicRate float64) string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)

	combined := fmt.Sprintf("%s|%s|%s|%.12f",
		strings.Join(sorted, ","),
		start.Format(periodLayout),
		end.Format(periodLayout),
		periodicRate,
	)
	h := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(h[:16])
}

// SaveStatistics stores a msgpack-encoded statistics snapshot under key
func (r *Repository) SaveStatistics(key string, stats *statistics.Statistics) error {
	payload, err := msgpack.Marshal(stats.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO statistics_cache (cache_key, payload, created_at)
		VALUES (?, ?, ?)
	`, key, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store statistics: %w", err)
	}
	return nil
}

// LoadStatistics returns the cached statistics for key, or false if none are stored
// or the entry is older than maxAge. A non-positive maxAge disables expiry.
func (r *Repository) LoadStatistics(key string, maxAge time.Duration) (*statistics.Statistics, bool, error) {
	var payload []byte
	var createdAt int64
	err := r.db.QueryRow(
		"SELECT payload, created_at FROM statistics_cache WHERE cache_key = ?", key,
	).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query statistics cache: %w", err)
	}

	if maxAge > 0 && time.Since(time.Unix(createdAt, 0)) > maxAge {
		return nil, false, nil
	}

	var snap statistics.Snapshot
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached statistics, ignoring")
		return nil, false, nil
	}

	stats, err := statistics.FromSnapshot(snap)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Cached statistics are invalid, ignoring")
		return nil, false, nil
	}
	return stats, true, nil
}
