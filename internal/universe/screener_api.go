// Package universe provides the coarse ticker universe used by Stage1:
// a primary JSON screener API, an HTML scrape fallback, and a built-in
// default list so a transient provider outage never empties the funnel.
package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/httputil"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// ScreenerAPI queries the JSON screener endpoint.
type ScreenerAPI struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

var _ contracts.UniverseProvider = (*ScreenerAPI)(nil)

// NewScreenerAPI creates the primary JSON universe provider
func NewScreenerAPI(baseURL string, http *httputil.Client, log *logger.Logger) *ScreenerAPI {
	return &ScreenerAPI{
		http:    http,
		baseURL: baseURL,
		logger:  log,
	}
}

// Name implements contracts.UniverseProvider
func (s *ScreenerAPI) Name() string { return "screener_api" }

// screenerResponse is the screener payload shape
type screenerResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				AvgDailyVolume3M   int64   `json:"averageDailyVolume3Month"`
				Exchange           string  `json:"exchange"`
			} `json:"quotes"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"finance"`
}

// Query implements contracts.UniverseProvider. Criteria that the API
// cannot express server-side are applied client-side on the response.
func (s *ScreenerAPI) Query(ctx context.Context, criteria contracts.UniverseCriteria) ([]string, error) {
	count := criteria.Limit
	if count <= 0 {
		count = 250
	}

	u := fmt.Sprintf("%s?scrIds=most_actives&count=%d", s.baseURL, count)

	resp, err := s.http.GetWithHeaders(ctx, u, map[string]string{
		"User-Agent": "Mozilla/5.0",
		"Accept":     "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("screener request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("screener read: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("screener status %d", resp.StatusCode)
	}

	var payload screenerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("screener decode: %w", err)
	}
	if payload.Finance.Error != nil {
		return nil, fmt.Errorf("screener api error: %s", payload.Finance.Error.Description)
	}
	if len(payload.Finance.Result) == 0 {
		return nil, fmt.Errorf("screener empty result")
	}

	exchangeOK := exchangeFilter(criteria.Exchanges)

	tickers := make([]string, 0, count)
	for _, q := range payload.Finance.Result[0].Quotes {
		if q.Symbol == "" || !validSymbol(q.Symbol) {
			continue
		}
		if criteria.MinPrice > 0 && q.RegularMarketPrice < criteria.MinPrice {
			continue
		}
		if criteria.MinAvgVolume > 0 && q.AvgDailyVolume3M < criteria.MinAvgVolume {
			continue
		}
		if !exchangeOK(q.Exchange) {
			continue
		}
		tickers = append(tickers, q.Symbol)
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("screener returned no matching tickers")
	}

	return tickers, nil
}

// exchangeFilter builds a membership check; empty list accepts all.
func exchangeFilter(exchanges []string) func(string) bool {
	if len(exchanges) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(exchanges))
	for _, e := range exchanges {
		set[e] = true
	}
	return func(e string) bool { return set[e] }
}

// validSymbol drops units, warrants and other non-common-stock symbols
func validSymbol(symbol string) bool {
	if _, err := url.PathUnescape(symbol); err != nil {
		return false
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && r != '.' && r != '-' {
			return false
		}
	}
	return len(symbol) >= 1 && len(symbol) <= 6
}
