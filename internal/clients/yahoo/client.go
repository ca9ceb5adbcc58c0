// Package yahoo fetches monthly adjusted closes from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/statistics"
)

const (
	// DefaultBaseURL is the Yahoo Finance chart endpoint host
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	userAgent      = "Mozilla/5.0 (compatible; frontier/1.0)"
)

// ErrNoData is returned when Yahoo has no usable closes for a symbol
var ErrNoData = errors.New("no price data")

// Observer receives the outcome of each fetch
type Observer func(symbol string, err error)

// Client is a rate-limited Yahoo Finance chart client behind a circuit breaker
type Client struct {
	client   *http.Client
	baseURL  string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	observer Observer
	log      zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another host (used by tests)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit overrides the default of 2 requests per second
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithObserver registers a callback for fetch outcomes
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: DefaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		log:     log.With().Str("client", "yahoo").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	st := gobreaker.Settings{Name: "yahoo"}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.IsSuccessful = func(err error) bool {
		// A symbol without data is not a sign of an unhealthy upstream
		return err == nil || errors.Is(err, ErrNoData)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)

	return c
}

// MonthlyCloses returns the monthly adjusted closes of symbol from start until now,
// oldest first. Periods are the first day of each month in UTC.
func (c *Client) MonthlyCloses(ctx context.Context, symbol string, start time.Time) ([]domain.PricePoint, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, symbol, start, time.Now())
	})
	if c.observer != nil {
		c.observer(symbol, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", symbol, err)
	}
	return out.([]domain.PricePoint), nil
}

func (c *Client) fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))
	params.Set("interval", "1mo")
	params.Set("events", "div,splits")
	params.Set("includeAdjustedClose", "true")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("yahoo API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if e := chart.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", ErrNoData, e.Description)
		}
		return nil, fmt.Errorf("yahoo API error %s: %s", e.Code, e.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo API returned status %d", resp.StatusCode)
	}

	prices := parseCloses(chart)
	if len(prices) == 0 {
		return nil, ErrNoData
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("periods", len(prices)).
		Msg("Fetched monthly closes")
	return prices, nil
}

// parseCloses prefers adjusted closes and skips null bars. When Yahoo returns
// more than one bar for a month (the running current month), the last one wins.
func parseCloses(chart chartResponse) []domain.PricePoint {
	if len(chart.Chart.Result) == 0 {
		return nil
	}
	result := chart.Chart.Result[0]

	var closes []*float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) > 0 {
		closes = result.Indicators.AdjClose[0].AdjClose
	} else if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	var prices []domain.PricePoint
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		period := statistics.PeriodStart(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
		if n := len(prices); n > 0 && prices[n-1].Period.Equal(period) {
			prices[n-1].Close = *closes[i]
			continue
		}
		prices = append(prices, domain.PricePoint{Period: period, Close: *closes[i]})
	}
	return prices
}
