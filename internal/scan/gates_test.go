package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

func candidatesFrom(series ...*contracts.EnrichedSeries) []contracts.Candidate {
	out := make([]contracts.Candidate, 0, len(series))
	for _, s := range series {
		out = append(out, contracts.Candidate{Ticker: s.Ticker, Series: s})
	}
	return out
}

func TestGates_ADRVetoDropsTicker(t *testing.T) {
	gates := lenientGates()
	gates.MinADR = 0.05

	aaa := rampSeries("AAA", 260, 50, 100, 0.06, 1_000_000)
	bbb := rampSeries("BBB", 260, 50, 100, 0.03, 1_000_000)
	ccc := rampSeries("CCC", 260, 50, 100, 0.06, 1_000_000)

	runner := NewGateRunner(2, logger.NewNop())
	results, skipped := runner.Run(context.Background(), gates, candidatesFrom(aaa, bbb, ccc), nil)

	require.Empty(t, skipped)
	require.Len(t, results, 3)

	passed := make(map[string]bool)
	for _, r := range results {
		passed[r.Ticker] = r.Passed
		if r.Ticker == "BBB" {
			assert.Equal(t, "min_adr", r.FailedGate)
		}
	}
	assert.True(t, passed["AAA"])
	assert.False(t, passed["BBB"])
	assert.True(t, passed["CCC"])
}

func TestGates_TogglingAnySingleGateRemovesCandidate(t *testing.T) {
	s := rampSeries("XYZ", 260, 50, 100, 0.05, 1_000_000)

	base := lenientGates()
	require.True(t, EvaluateGates(base, s).Passed)

	mutations := map[string]func(*strategyconfig.GateConfig){
		"min_price":         func(g *strategyconfig.GateConfig) { g.MinPrice = 1_000 },
		"min_dollar_volume": func(g *strategyconfig.GateConfig) { g.MinDollarVolume = 1e12 },
		"min_adr":           func(g *strategyconfig.GateConfig) { g.MinADR = 0.5 },
		"min_momentum":      func(g *strategyconfig.GateConfig) { g.MinMomentum = 10 },
		"max_off_52w_high":  func(g *strategyconfig.GateConfig) { g.MaxOff52WHigh = 0 },
		"min_above_52w_low": func(g *strategyconfig.GateConfig) { g.MinAbove52WLow = 5 },
	}

	for name, mutate := range mutations {
		g := lenientGates()
		mutate(&g)
		r := EvaluateGates(g, s)
		assert.False(t, r.Passed, "gate %s should veto", name)
		assert.Equal(t, name, r.FailedGate)
	}
}

func TestGates_ShortHistorySkippedNotFailed(t *testing.T) {
	gates := lenientGates()
	gates.MinHistoryDays = 200

	short := rampSeries("NEW", 50, 10, 20, 0.05, 1_000_000)

	runner := NewGateRunner(2, logger.NewNop())
	results, skipped := runner.Run(context.Background(), gates, candidatesFrom(short), nil)

	assert.Empty(t, results)
	assert.Equal(t, contracts.SkipShortHistory, skipped["NEW"])
}

func TestGates_CancellationStopsNewWork(t *testing.T) {
	gates := lenientGates()

	series := make([]*contracts.EnrichedSeries, 50)
	for i := range series {
		series[i] = rampSeries("T"+string(rune('A'+i%26))+string(rune('A'+i/26)), 60, 10, 20, 0.05, 1_000_000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewGateRunner(2, logger.NewNop())
	results, skipped := runner.Run(ctx, gates, candidatesFrom(series...), nil)

	assert.Less(t, len(results)+len(skipped), len(series))
}

func TestBestMomentum_IgnoresUnreachableWindows(t *testing.T) {
	s := rampSeries("XYZ", 30, 50, 100, 0.05, 1_000_000)

	m := BestMomentum(s, []int{21, 500})
	ret, ok := s.Return(21)
	require.True(t, ok)
	assert.Equal(t, ret, m)
}
