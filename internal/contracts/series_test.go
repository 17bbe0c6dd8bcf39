package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seriesWithCloses(closes ...float64) *EnrichedSeries {
	s := &EnrichedSeries{Ticker: "TEST"}
	for i, c := range closes {
		s.Bars = append(s.Bars, Bar{
			Date:   day(i),
			Open:   c,
			High:   c * 1.02,
			Low:    c * 0.98,
			Close:  c,
			Volume: 1_000_000,
		})
		s.Indicators = append(s.Indicators, IndicatorRow{})
	}
	return s
}

func TestSeries_Return(t *testing.T) {
	s := seriesWithCloses(100, 110, 121)

	r, ok := s.Return(2)
	assert.True(t, ok)
	assert.InDelta(t, 0.21, r, 1e-9)

	_, ok = s.Return(3)
	assert.False(t, ok, "window longer than history")
}

func TestSeries_ADR(t *testing.T) {
	s := seriesWithCloses(100, 100, 100)
	// Every bar: high=102, low=98 -> range = 102/98 - 1
	want := 102.0/98.0 - 1
	assert.InDelta(t, want, s.ADR(3), 1e-9)
	assert.InDelta(t, want, s.ADR(10), 1e-9, "window clamped to history")
}

func TestSeries_AvgDollarVolume(t *testing.T) {
	s := seriesWithCloses(10, 20)
	assert.InDelta(t, 15_000_000, s.AvgDollarVolume(2), 1e-6)
}

func TestSeries_TradingDaysSince(t *testing.T) {
	s := seriesWithCloses(1, 2, 3, 4, 5)

	assert.Equal(t, 0, s.TradingDaysSince(day(4)), "entry day itself is day 0")
	assert.Equal(t, 2, s.TradingDaysSince(day(2)))
	assert.Equal(t, 5, s.TradingDaysSince(day(-1)))
}
