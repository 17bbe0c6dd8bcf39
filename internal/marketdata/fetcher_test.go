package marketdata

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// fakeProvider counts per-ticker fetches and fails configured tickers.
type fakeProvider struct {
	mu      sync.Mutex
	calls   map[string]int
	failing map[string]bool
	delay   time.Duration
}

func newFakeProvider(failing ...string) *fakeProvider {
	f := &fakeProvider{
		calls:   make(map[string]int),
		failing: make(map[string]bool),
	}
	for _, t := range failing {
		f.failing[t] = true
	}
	return f
}

func (f *fakeProvider) FetchEnriched(ctx context.Context, ticker string, lookbackDays int) (*contracts.EnrichedSeries, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls[ticker]++
	failing := f.failing[ticker]
	f.mu.Unlock()

	if failing {
		return nil, fmt.Errorf("provider down for %s", ticker)
	}

	bars := []contracts.Bar{
		{Date: time.Now().UTC(), Open: 10, High: 11, Low: 9, Close: 10, Volume: 1000},
	}
	return Enrich(ticker, bars), nil
}

func (f *fakeProvider) callCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

func TestBatchFetcher_ToleratesFailures(t *testing.T) {
	provider := newFakeProvider("BBB")
	fetcher := NewBatchFetcher(provider, 4, logger.NewNop())

	series, skipped := fetcher.FetchAll(context.Background(), []string{"AAA", "BBB", "CCC"}, 100, nil)

	assert.Len(t, series, 2)
	assert.Contains(t, series, "AAA")
	assert.Contains(t, series, "CCC")
	assert.Equal(t, contracts.SkipFetchFailed, skipped["BBB"])
}

func TestBatchFetcher_SingleFetchPerTicker(t *testing.T) {
	provider := newFakeProvider()
	fetcher := NewBatchFetcher(provider, 8, logger.NewNop())

	tickers := []string{"AAA", "BBB", "CCC", "DDD"}
	series, _ := fetcher.FetchAll(context.Background(), tickers, 100, nil)

	require.Len(t, series, 4)
	for _, tk := range tickers {
		assert.Equal(t, 1, provider.callCount(tk), "ticker %s fetched more than once", tk)
	}
}

func TestBatchFetcher_ProgressReporting(t *testing.T) {
	provider := newFakeProvider()
	fetcher := NewBatchFetcher(provider, 2, logger.NewNop())

	var reports atomic.Int32
	var lastDone atomic.Int32
	fetcher.FetchAll(context.Background(), []string{"AAA", "BBB", "CCC"}, 100, func(done, total int, ticker string) {
		reports.Add(1)
		lastDone.Store(int32(done))
		assert.Equal(t, 3, total)
	})

	assert.Equal(t, int32(3), reports.Load())
	assert.Equal(t, int32(3), lastDone.Load())
}

func TestBatchFetcher_CancellationStopsNewWork(t *testing.T) {
	provider := newFakeProvider()
	provider.delay = 20 * time.Millisecond
	fetcher := NewBatchFetcher(provider, 1, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	tickers := make([]string, 50)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	series, _ := fetcher.FetchAll(ctx, tickers, 100, nil)

	// Partial results are preserved, but the full universe was not
	// fetched: cancellation stopped the feed.
	assert.NotEmpty(t, series)
	assert.Less(t, len(series), len(tickers))
}

func TestEnrich_IndicatorColumnsParallel(t *testing.T) {
	bars := make([]contracts.Bar, 60)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = contracts.Bar{
			Date: base.AddDate(0, 0, i), Open: price, High: price + 2,
			Low: price - 2, Close: price, Volume: 500_000,
		}
	}

	series := Enrich("TEST", bars)

	require.Equal(t, len(bars), len(series.Indicators))
	last := series.LastIndicators()
	assert.NotZero(t, last.SMA10)
	assert.NotZero(t, last.SMA50)
	assert.NotZero(t, last.RSI14)
	assert.NotZero(t, last.ATR14)
	assert.NotZero(t, last.BBMid)
	assert.Zero(t, last.SMA200, "only 60 bars, 200-day window unavailable")
	assert.InDelta(t, 161.0, series.High52W, 1e-9)
	assert.InDelta(t, 98.0, series.Low52W, 1e-9)
}
