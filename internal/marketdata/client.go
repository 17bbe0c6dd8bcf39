// Package marketdata fetches daily price history from a chart JSON API
// and enriches it with the indicator columns the screening funnel and
// the position risk machine consume.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/config"
	"github.com/wonny/vantage/backend/pkg/httputil"
	"github.com/wonny/vantage/backend/pkg/logger"
	"github.com/wonny/vantage/backend/pkg/redis"
)

// Client fetches enriched daily series. Safe for concurrent use; the
// provider quota is enforced by a process-local token bucket, and a
// shared redis cache short-circuits repeated fetches within a run.
type Client struct {
	http    *httputil.Client
	baseURL string
	limiter *rate.Limiter
	cache   *redis.Cache
	ttl     time.Duration
	logger  *logger.Logger
}

var _ contracts.MarketDataProvider = (*Client)(nil)

// NewClient creates a market data client from config
func NewClient(cfg *config.Config, rdb *redis.Client, log *logger.Logger) *Client {
	rps := cfg.MarketData.RequestsPerSec
	if rps <= 0 {
		rps = 8
	}
	return &Client{
		http:    httputil.NewWithTimeout(log, 20*time.Second),
		baseURL: cfg.MarketData.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		cache:   redis.NewCache(rdb, "vantage:series"),
		ttl:     cfg.MarketData.CacheTTL,
		logger:  log,
	}
}

// chartResponse is the chart API payload shape
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchEnriched retrieves lookbackDays of daily bars for ticker and
// computes the indicator columns. A per-ticker failure is returned to
// the caller and never aborts sibling fetches.
func (c *Client) FetchEnriched(ctx context.Context, ticker string, lookbackDays int) (*contracts.EnrichedSeries, error) {
	cacheKey := fmt.Sprintf("%s:%d:%s", ticker, lookbackDays, time.Now().Format("2006-01-02"))

	var cached contracts.EnrichedSeries
	if hit, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	bars, err := c.fetchBars(ctx, ticker, lookbackDays)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned for %s", ticker)
	}

	series := Enrich(ticker, bars)

	if err := c.cache.Set(ctx, cacheKey, series, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Series cache write failed")
	}

	return series, nil
}

// fetchBars calls the chart endpoint and converts the columnar payload
// into bars, dropping rows with missing values (halts, holidays).
func (c *Client) fetchBars(ctx context.Context, ticker string, lookbackDays int) ([]contracts.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	// Calendar buffer over trading days for weekends and holidays
	rangeDays := lookbackDays * 3 / 2
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%dd",
		c.baseURL, url.PathEscape(ticker), rangeDays)

	resp, err := c.http.GetWithHeaders(ctx, u, map[string]string{
		"User-Agent": "Mozilla/5.0",
	})
	if err != nil {
		return nil, fmt.Errorf("chart fetch for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chart read for %s: %w", ticker, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("chart status %d for %s", resp.StatusCode, ticker)
	}

	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("chart decode for %s: %w", ticker, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error for %s: %s", ticker, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart empty result for %s", ticker)
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]contracts.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil ||
			quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil {
			continue
		}
		var vol int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		bars = append(bars, contracts.Bar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: vol,
		})
	}

	if len(bars) > lookbackDays {
		bars = bars[len(bars)-lookbackDays:]
	}

	return bars, nil
}
