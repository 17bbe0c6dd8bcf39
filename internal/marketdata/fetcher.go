package marketdata

import (
	"context"
	"sync"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// BatchFetcher retrieves enriched series for a ticker list across a
// bounded worker pool. Individual failures are recorded as skip
// reasons and never abort the batch; the result map may be smaller
// than the input list.
type BatchFetcher struct {
	provider contracts.MarketDataProvider
	workers  int
	logger   *logger.Logger
}

// NewBatchFetcher creates a batch fetcher with the given pool size
func NewBatchFetcher(provider contracts.MarketDataProvider, workers int, log *logger.Logger) *BatchFetcher {
	if workers < 1 {
		workers = 1
	}
	return &BatchFetcher{
		provider: provider,
		workers:  workers,
		logger:   log,
	}
}

// FetchAll fans the ticker list out over the pool. The report callback
// (optional) receives completion counts for progress tracking. When
// ctx is cancelled, in-flight tickers finish but no new ticker starts;
// everything fetched so far is returned.
func (f *BatchFetcher) FetchAll(
	ctx context.Context,
	tickers []string,
	lookbackDays int,
	report func(done, total int, ticker string),
) (map[string]*contracts.EnrichedSeries, map[string]contracts.SkipReason) {
	series := make(map[string]*contracts.EnrichedSeries, len(tickers))
	skipped := make(map[string]contracts.SkipReason)

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan string)
	done := 0
	total := len(tickers)

	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				s, err := f.provider.FetchEnriched(ctx, ticker, lookbackDays)

				mu.Lock()
				if err != nil {
					skipped[ticker] = contracts.SkipFetchFailed
					f.logger.WithFields(map[string]interface{}{
						"ticker": ticker,
						"error":  err.Error(),
					}).Warn("Ticker fetch failed, skipping")
				} else {
					series[ticker] = s
				}
				done++
				d := done
				mu.Unlock()

				if report != nil {
					report(d, total, ticker)
				}
			}
		}()
	}

	// Feed the pool, but stop handing out new tickers once cancelled.
feed:
	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- ticker:
		}
	}
	close(jobs)
	wg.Wait()

	return series, skipped
}
