package universe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/httputil"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// HTMLScraper is the secondary universe provider: it scrapes a public
// screener results table when the JSON API is unavailable.
type HTMLScraper struct {
	http    *httputil.Client
	pageURL string
	logger  *logger.Logger
}

var _ contracts.UniverseProvider = (*HTMLScraper)(nil)

// NewHTMLScraper creates the HTML fallback provider
func NewHTMLScraper(pageURL string, http *httputil.Client, log *logger.Logger) *HTMLScraper {
	return &HTMLScraper{
		http:    http,
		pageURL: pageURL,
		logger:  log,
	}
}

// Name implements contracts.UniverseProvider
func (h *HTMLScraper) Name() string { return "html_scrape" }

// Query implements contracts.UniverseProvider. The page renders one
// row per stock with the symbol in the first cell and price/volume in
// later cells; rows that fail to parse are skipped.
func (h *HTMLScraper) Query(ctx context.Context, criteria contracts.UniverseCriteria) ([]string, error) {
	resp, err := h.http.GetWithHeaders(ctx, h.pageURL, map[string]string{
		"User-Agent": "Mozilla/5.0",
	})
	if err != nil {
		return nil, fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("scrape status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scrape parse: %w", err)
	}

	tickers := make([]string, 0, 200)
	doc.Find("table tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if criteria.Limit > 0 && len(tickers) >= criteria.Limit {
			return false
		}

		cells := row.Find("td")
		if cells.Length() < 3 {
			return true
		}

		symbol := strings.TrimSpace(cells.Eq(0).Text())
		if symbol == "" || !validSymbol(symbol) {
			return true
		}

		if criteria.MinPrice > 0 {
			price := parseNumber(cells.Eq(2).Text())
			if price > 0 && price < criteria.MinPrice {
				return true
			}
		}

		tickers = append(tickers, symbol)
		return true
	})

	if len(tickers) == 0 {
		return nil, fmt.Errorf("scrape found no tickers")
	}

	h.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"url":     h.pageURL,
	}).Info("Universe scraped from HTML fallback")

	return tickers, nil
}

// parseNumber strips currency/thousands formatting before parsing
func parseNumber(text string) float64 {
	clean := strings.NewReplacer("$", "", ",", "", "%", "").Replace(strings.TrimSpace(text))
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}
