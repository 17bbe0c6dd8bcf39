// Package regime classifies the market environment from a benchmark
// index series. The snapshot is taken once per combined scan and
// shared by both strategies.
package regime

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// Assessor derives the regime from the benchmark's position relative
// to its 50- and 200-day averages.
type Assessor struct {
	provider  contracts.MarketDataProvider
	benchmark string
	logger    *logger.Logger
}

// NewAssessor creates a regime assessor for the given benchmark index
func NewAssessor(provider contracts.MarketDataProvider, benchmark string, log *logger.Logger) *Assessor {
	return &Assessor{
		provider:  provider,
		benchmark: benchmark,
		logger:    log,
	}
}

// Assess fetches the benchmark series and classifies the regime:
// BULL when close > SMA50 > SMA200, BEAR when close < SMA200, NEUTRAL
// otherwise. Falls back to NEUTRAL when the benchmark cannot be
// fetched, so a provider outage never blocks a strategy by itself.
func (a *Assessor) Assess(ctx context.Context) contracts.RegimeSnapshot {
	snapshot := contracts.RegimeSnapshot{
		State:      contracts.RegimeNeutral,
		Benchmark:  a.benchmark,
		AssessedAt: time.Now().UTC(),
	}

	series, err := a.provider.FetchEnriched(ctx, a.benchmark, 300)
	if err != nil {
		a.logger.WithError(err).Warn("Benchmark fetch failed, regime defaults to NEUTRAL")
		return snapshot
	}
	if series.Len() == 0 {
		return snapshot
	}

	last := series.LastBar()
	ind := series.LastIndicators()

	snapshot.Close = last.Close
	snapshot.SMA50 = ind.SMA50
	snapshot.SMA200 = ind.SMA200
	snapshot.State = Classify(last.Close, ind.SMA50, ind.SMA200)

	a.logger.WithFields(map[string]interface{}{
		"benchmark": a.benchmark,
		"close":     last.Close,
		"sma50":     ind.SMA50,
		"sma200":    ind.SMA200,
		"regime":    snapshot.State,
	}).Info("Market regime assessed")

	return snapshot
}

// Classify maps price vs moving averages to a regime state. Zero
// averages (short history) classify as NEUTRAL.
func Classify(close, sma50, sma200 float64) contracts.Regime {
	if sma200 <= 0 {
		return contracts.RegimeNeutral
	}
	if close < sma200 {
		return contracts.RegimeBear
	}
	if sma50 > 0 && close > sma50 && sma50 > sma200 {
		return contracts.RegimeBull
	}
	return contracts.RegimeNeutral
}

// Describe renders a one-line summary for progress messages
func Describe(s contracts.RegimeSnapshot) string {
	return fmt.Sprintf("%s (%s close=%.2f sma50=%.2f sma200=%.2f)",
		s.State, s.Benchmark, s.Close, s.SMA50, s.SMA200)
}
