package scan

import (
	"context"
	"sync"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// GateRunner is the Stage2 hard-veto validator. Every gate must pass;
// failing any one drops the ticker with no partial credit. Pure
// filter: it decides membership, never adjusts scores.
type GateRunner struct {
	workers int
	logger  *logger.Logger
}

// NewGateRunner creates a validator with the given pool size
func NewGateRunner(workers int, log *logger.Logger) *GateRunner {
	if workers < 1 {
		workers = 1
	}
	return &GateRunner{workers: workers, logger: log}
}

// Run evaluates the gate set for each candidate across a bounded pool.
// Tickers with insufficient history are skipped, not failed. When ctx
// is cancelled, in-flight tickers finish but no new ticker starts;
// verdicts produced so far are returned.
func (g *GateRunner) Run(
	ctx context.Context,
	gates strategyconfig.GateConfig,
	candidates []contracts.Candidate,
	report func(done, total int, ticker string),
) ([]contracts.GateResult, map[string]contracts.SkipReason) {
	results := make([]contracts.GateResult, 0, len(candidates))
	skipped := make(map[string]contracts.SkipReason)

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan contracts.Candidate)
	done := 0
	total := len(candidates)

	for i := 0; i < g.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				var verdict contracts.GateResult
				short := c.Series == nil || c.Series.Len() < gates.MinHistoryDays
				if !short {
					verdict = EvaluateGates(gates, c.Series)
				}

				mu.Lock()
				if short {
					skipped[c.Ticker] = contracts.SkipShortHistory
				} else {
					results = append(results, verdict)
				}
				done++
				d := done
				mu.Unlock()

				if report != nil {
					report(d, total, c.Ticker)
				}
			}
		}()
	}

feed:
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- c:
		}
	}
	close(jobs)
	wg.Wait()

	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	g.logger.WithFields(map[string]interface{}{
		"candidates": total,
		"passed":     passed,
		"skipped":    len(skipped),
	}).Info("Stage2 gates completed")

	return results, skipped
}

// EvaluateGates applies the ordered gate list to one series. The first
// failing gate is recorded; later gates are not evaluated. Metrics are
// collected for every gate that ran, for diagnostics.
func EvaluateGates(gates strategyconfig.GateConfig, s *contracts.EnrichedSeries) contracts.GateResult {
	r := contracts.GateResult{
		Ticker:  s.Ticker,
		Metrics: make(map[string]float64),
	}

	close := s.LastBar().Close
	r.Metrics["price"] = close
	if close < gates.MinPrice {
		r.FailedGate = "min_price"
		return r
	}

	dollarVol := s.AvgDollarVolume(gates.DollarVolumeDays)
	r.Metrics["dollar_volume"] = dollarVol
	if dollarVol < gates.MinDollarVolume {
		r.FailedGate = "min_dollar_volume"
		return r
	}

	adr := s.ADR(gates.ADRWindow)
	r.Metrics["adr"] = adr
	if adr < gates.MinADR {
		r.FailedGate = "min_adr"
		return r
	}

	momentum := BestMomentum(s, gates.MomentumWindows)
	r.Metrics["momentum"] = momentum
	if momentum < gates.MinMomentum {
		r.FailedGate = "min_momentum"
		return r
	}

	if s.High52W > 0 {
		offHigh := 1 - close/s.High52W
		r.Metrics["off_52w_high"] = offHigh
		if offHigh > gates.MaxOff52WHigh {
			r.FailedGate = "max_off_52w_high"
			return r
		}
	}

	if gates.MinAbove52WLow > 0 && s.Low52W > 0 {
		aboveLow := close/s.Low52W - 1
		r.Metrics["above_52w_low"] = aboveLow
		if aboveLow < gates.MinAbove52WLow {
			r.FailedGate = "min_above_52w_low"
			return r
		}
	}

	r.Passed = true
	return r
}

// BestMomentum returns the strongest close-to-close return across the
// configured lookback windows. Windows longer than the available
// history are ignored.
func BestMomentum(s *contracts.EnrichedSeries, windows []int) float64 {
	best := 0.0
	found := false
	for _, w := range windows {
		ret, ok := s.Return(w)
		if !ok {
			continue
		}
		if !found || ret > best {
			best = ret
			found = true
		}
	}
	return best
}
