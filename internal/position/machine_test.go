package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

var entryDay = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func newMachine() *Machine {
	return NewMachine(strategyconfig.DefaultSEPA().Risk, logger.NewNop())
}

// barsDaily builds consecutive daily bars from entryDay. Open equals
// the close, lows sit 1% under, so no gap or stop artifacts fire
// unless a test sets them up explicitly.
func barsDaily(closes ...float64) []contracts.Bar {
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{
			Date:   entryDay.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return bars
}

// seriesWith attaches an indicator row to the last bar only; earlier
// rows stay zero so unrelated checks stay inert.
func seriesWith(bars []contracts.Bar, lastInd contracts.IndicatorRow) *contracts.EnrichedSeries {
	inds := make([]contracts.IndicatorRow, len(bars))
	inds[len(bars)-1] = lastInd
	return &contracts.EnrichedSeries{
		Ticker:     "TEST",
		AsOf:       bars[len(bars)-1].Date,
		Bars:       bars,
		Indicators: inds,
	}
}

func openPosition(rating float64) *contracts.Position {
	return &contracts.Position{
		Ticker:          "TEST",
		Strategy:        contracts.StrategySEPA,
		EntryPrice:      100,
		EntryDate:       entryDay,
		EntryDayLow:     96,
		Shares:          100,
		RemainingShares: 100,
		Rating:          rating,
		InitialStop:     94,
		CurrentStop:     94,
		StopPhase:       contracts.PhaseDay1,
	}
}

func TestAssess_BreakevenThenTrailingBreak(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)

	// Day 2: close above entry moves the stop to break-even.
	day2 := seriesWith(barsDaily(100, 105), contracts.IndicatorRow{})
	a := m.Assess(pos, day2)
	assert.Equal(t, contracts.PhaseDay2, a.Phase)
	assert.Equal(t, 100.0, pos.CurrentStop)
	assert.Equal(t, contracts.ActionHold, a.Action)

	// Day 3: close under the trailing reference fires SELL_ALL; the
	// stop does not loosen.
	day3 := seriesWith(barsDaily(100, 105, 98), contracts.IndicatorRow{SMA10: 101})
	a = m.Assess(pos, day3)
	assert.Equal(t, contracts.PhaseDay3Plus, a.Phase)
	assert.Equal(t, 100.0, pos.CurrentStop)
	assert.Equal(t, contracts.ActionSellAll, a.Action)

	kinds := signalKinds(a)
	assert.Contains(t, kinds, contracts.TriggerTrailingBreak)
	assert.Contains(t, kinds, contracts.TriggerStopHit)
}

func TestAssess_Day1StopHit(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)

	day1 := seriesWith(barsDaily(93), contracts.IndicatorRow{})
	a := m.Assess(pos, day1)

	assert.Equal(t, contracts.PhaseDay1, a.Phase)
	assert.Equal(t, contracts.ActionStopHit, a.Action)
}

func TestAssess_Day2BelowEntryKeepsStopWithConcern(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)

	day2 := seriesWith(barsDaily(100, 97), contracts.IndicatorRow{})
	a := m.Assess(pos, day2)

	assert.Equal(t, 94.0, pos.CurrentStop, "stop must not move up to break-even on a red day 2")
	assert.NotEmpty(t, a.Concern)
	assert.Equal(t, contracts.ActionHold, a.Action)
}

func TestAssess_StopMonotonic(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)

	closes := [][]float64{
		{100, 105},           // breakeven
		{100, 105, 103},      // profitable, stop holds
		{100, 105, 103, 101}, // still above stop
	}

	prevStop := pos.CurrentStop
	for _, cs := range closes {
		m.Assess(pos, seriesWith(barsDaily(cs...), contracts.IndicatorRow{SMA10: 95}))
		assert.GreaterOrEqual(t, pos.CurrentStop, prevStop)
		prevStop = pos.CurrentStop
	}
}

func TestAssess_PartialProfitFractionByRating(t *testing.T) {
	m := newMachine()

	// Entry 100, stop 94: risk $6, 3R at $118.
	series := seriesWith(barsDaily(100, 106, 112, 118), contracts.IndicatorRow{SMA10: 110, SMA50: 100})

	highConviction := openPosition(5.5)
	a := m.Assess(highConviction, series)
	require.Equal(t, contracts.ActionTakePartial, a.Action)
	assert.Equal(t, 25, partialShares(a), "5.5-star setup sells 25%")

	lowConviction := openPosition(3.0)
	a = m.Assess(lowConviction, series)
	require.Equal(t, contracts.ActionTakePartial, a.Action)
	assert.Equal(t, 50, partialShares(a), "3.0-star setup sells 50%")
}

func TestAssess_PartialFiresOnce(t *testing.T) {
	m := newMachine()
	pos := openPosition(5.5)

	series := seriesWith(barsDaily(100, 106, 112, 118), contracts.IndicatorRow{SMA10: 110, SMA50: 100})
	a := m.Assess(pos, series)
	require.Equal(t, contracts.ActionTakePartial, a.Action)
	assert.True(t, pos.PartialTaken)

	a = m.Assess(pos, series)
	assert.Equal(t, contracts.ActionHold, a.Action, "partial trigger must not re-fire")
}

func TestAssess_ExtremeExtensionOverrides(t *testing.T) {
	m := newMachine()
	pos := openPosition(5.5)
	pos.PartialTaken = true

	// 70% above the 50-day average: past the extreme threshold.
	series := seriesWith(barsDaily(100, 120, 150, 170), contracts.IndicatorRow{SMA10: 140, SMA50: 100})
	a := m.Assess(pos, series)

	assert.Equal(t, contracts.ActionSellNow, a.Action)
	assert.Contains(t, signalKinds(a), contracts.TriggerExtreme)
}

func TestAssess_ExtendedIsConcernNotSell(t *testing.T) {
	m := newMachine()
	pos := openPosition(5.5)
	pos.PartialTaken = true

	// 45% above the 50-day average: extended but not extreme.
	series := seriesWith(barsDaily(100, 120, 145), contracts.IndicatorRow{SMA10: 130, SMA50: 100})
	a := m.Assess(pos, series)

	assert.Contains(t, signalKinds(a), contracts.TriggerExtended)
	assert.Equal(t, contracts.ActionHold, a.Action)
	assert.NotEmpty(t, a.Concern)
}

func TestAssess_GapReversalForcesSell(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)

	bars := barsDaily(100, 105, 106)
	// Gap up over the prior close, fade to a close below it.
	bars[2].Open = 108
	bars[2].High = 109
	bars[2].Close = 103
	bars[2].Low = 102

	a := m.Assess(pos, seriesWith(bars, contracts.IndicatorRow{SMA10: 95}))

	assert.Contains(t, signalKinds(a), contracts.TriggerGapReversal)
	assert.Equal(t, contracts.ActionSellNow, a.Action)
}

func TestAssess_StructureBreakForcesSell(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)
	pos.CurrentStop = 0
	pos.InitialStop = 0
	pos.EntryDayLow = 0

	// Twelve falling closes: lows stepping down, price under every
	// short average, and those averages declining.
	bars := barsDaily(100, 98, 96, 94, 92, 90, 88, 86, 84, 82, 80, 78)
	inds := make([]contracts.IndicatorRow, len(bars))
	inds[len(bars)-1] = contracts.IndicatorRow{SMA10: 88, SMA20: 91, SMA50: 95}
	inds[len(bars)-4] = contracts.IndicatorRow{SMA10: 92, SMA20: 94}
	s := &contracts.EnrichedSeries{Ticker: "TEST", Bars: bars, Indicators: inds}

	a := m.Assess(pos, s)

	assert.Contains(t, signalKinds(a), contracts.TriggerStructureBreak)
	assert.Equal(t, contracts.ActionSellNow, a.Action)
}

func TestAssess_PhaseNeverReverts(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)
	pos.StopPhase = contracts.PhaseDay3Plus

	// A single entry-day bar would map to DAY1, but the recorded phase
	// must stand.
	a := m.Assess(pos, seriesWith(barsDaily(100), contracts.IndicatorRow{SMA10: 95}))
	assert.Equal(t, contracts.PhaseDay3Plus, a.Phase)
}

func TestSeverityPrecedence(t *testing.T) {
	m := newMachine()
	pos := openPosition(4.0)

	// Stop hit and gap reversal on the same day: the harder signal
	// wins.
	bars := barsDaily(100, 105, 106)
	bars[2].Open = 108
	bars[2].Close = 93
	bars[2].Low = 92
	pos.CurrentStop = 94

	a := m.Assess(pos, seriesWith(bars, contracts.IndicatorRow{}))

	assert.Contains(t, signalKinds(a), contracts.TriggerStopHit)
	assert.Contains(t, signalKinds(a), contracts.TriggerGapReversal)
	assert.Equal(t, contracts.ActionSellNow, a.Action)
}

func signalKinds(a *contracts.Assessment) []contracts.TriggerKind {
	kinds := make([]contracts.TriggerKind, 0, len(a.Signals))
	for _, s := range a.Signals {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func partialShares(a *contracts.Assessment) int {
	for _, s := range a.Signals {
		if s.Kind == contracts.TriggerPartialProfit {
			return s.SellShares
		}
	}
	return 0
}
