package universe

import (
	"context"
	"fmt"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// FallbackChain tries providers in order and returns the first
// non-empty answer. The built-in default universe is the terminal
// member, so a transient outage never yields zero candidates.
type FallbackChain struct {
	providers []contracts.UniverseProvider
	logger    *logger.Logger
}

var _ contracts.UniverseProvider = (*FallbackChain)(nil)

// NewFallbackChain creates a chain over the given providers, in
// priority order, with the default universe appended last.
func NewFallbackChain(log *logger.Logger, providers ...contracts.UniverseProvider) *FallbackChain {
	chain := make([]contracts.UniverseProvider, 0, len(providers)+1)
	chain = append(chain, providers...)
	chain = append(chain, DefaultUniverse{})
	return &FallbackChain{
		providers: chain,
		logger:    log,
	}
}

// Name implements contracts.UniverseProvider
func (f *FallbackChain) Name() string { return "fallback_chain" }

// Query implements contracts.UniverseProvider
func (f *FallbackChain) Query(ctx context.Context, criteria contracts.UniverseCriteria) ([]string, error) {
	var lastErr error

	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tickers, err := p.Query(ctx, criteria)
		if err != nil {
			lastErr = err
			f.logger.WithFields(map[string]interface{}{
				"provider": p.Name(),
				"error":    err.Error(),
			}).Warn("Universe provider failed, falling back")
			continue
		}
		if len(tickers) == 0 {
			continue
		}

		return dedupe(tickers), nil
	}

	return nil, fmt.Errorf("all universe providers failed: %w", lastErr)
}

// dedupe removes duplicate symbols preserving first-seen order
func dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// DefaultUniverse is the hard-coded terminal provider: a liquid
// large/mid-cap set that keeps the funnel alive through outages.
type DefaultUniverse struct{}

var _ contracts.UniverseProvider = DefaultUniverse{}

// Name implements contracts.UniverseProvider
func (DefaultUniverse) Name() string { return "default_universe" }

// Query implements contracts.UniverseProvider
func (DefaultUniverse) Query(ctx context.Context, criteria contracts.UniverseCriteria) ([]string, error) {
	tickers := []string{
		"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "AVGO",
		"AMD", "NFLX", "CRM", "ORCL", "ADBE", "COST", "LLY", "V", "MA",
		"JPM", "UNH", "HD", "PANW", "CRWD", "NOW", "SHOP", "UBER", "ABNB",
		"SMCI", "ANET", "MU", "DELL", "PLTR", "COIN", "SQ", "DKNG", "CELH",
	}
	if criteria.Limit > 0 && criteria.Limit < len(tickers) {
		tickers = tickers[:criteria.Limit]
	}
	return tickers, nil
}
