package contracts

import "time"

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// IndicatorRow holds derived indicator values for one bar.
// A zero value means the lookback window was not yet available.
type IndicatorRow struct {
	SMA10  float64 `json:"sma10"`
	SMA20  float64 `json:"sma20"`
	SMA50  float64 `json:"sma50"`
	SMA150 float64 `json:"sma150"`
	SMA200 float64 `json:"sma200"`
	EMA10  float64 `json:"ema10"`
	EMA21  float64 `json:"ema21"`
	RSI14  float64 `json:"rsi14"`
	ATR14  float64 `json:"atr14"`
	BBUp   float64 `json:"bb_up"`
	BBMid  float64 `json:"bb_mid"`
	BBLow  float64 `json:"bb_low"`
}

// EnrichedSeries is an ordered daily series with indicator columns.
// Immutable once produced for a (ticker, asOf) pair: downstream stages
// read it concurrently and must never mutate it.
type EnrichedSeries struct {
	Ticker     string         `json:"ticker"`
	AsOf       time.Time      `json:"as_of"`
	Bars       []Bar          `json:"bars"`       // oldest first
	Indicators []IndicatorRow `json:"indicators"` // parallel to Bars
	High52W    float64        `json:"high_52w"`
	Low52W     float64        `json:"low_52w"`
}

// Len returns the number of bars
func (s *EnrichedSeries) Len() int {
	return len(s.Bars)
}

// LastBar returns the most recent bar. Callers must check Len() > 0.
func (s *EnrichedSeries) LastBar() Bar {
	return s.Bars[len(s.Bars)-1]
}

// LastIndicators returns the most recent indicator row
func (s *EnrichedSeries) LastIndicators() IndicatorRow {
	return s.Indicators[len(s.Indicators)-1]
}

// BarAgo returns the bar n trading days before the last one and whether
// the series reaches back that far.
func (s *EnrichedSeries) BarAgo(n int) (Bar, bool) {
	idx := len(s.Bars) - 1 - n
	if idx < 0 {
		return Bar{}, false
	}
	return s.Bars[idx], true
}

// Return computes the close-to-close return over the last n trading days
// as a fraction (0.25 = +25%). Returns false if history is too short.
func (s *EnrichedSeries) Return(n int) (float64, bool) {
	past, ok := s.BarAgo(n)
	if !ok || past.Close <= 0 {
		return 0, false
	}
	return s.LastBar().Close/past.Close - 1, true
}

// ADR computes the average daily range over the last n bars as a
// fraction: mean of (high/low - 1).
func (s *EnrichedSeries) ADR(n int) float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	if n > len(s.Bars) {
		n = len(s.Bars)
	}

	sum := 0.0
	count := 0
	for i := len(s.Bars) - n; i < len(s.Bars); i++ {
		b := s.Bars[i]
		if b.Low > 0 {
			sum += b.High/b.Low - 1
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// AvgDollarVolume computes mean close*volume over the last n bars.
func (s *EnrichedSeries) AvgDollarVolume(n int) float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	if n > len(s.Bars) {
		n = len(s.Bars)
	}

	sum := 0.0
	for i := len(s.Bars) - n; i < len(s.Bars); i++ {
		sum += s.Bars[i].Close * float64(s.Bars[i].Volume)
	}
	return sum / float64(n)
}

// TradingDaysSince counts bars strictly after the given date. Used to
// derive a position's stop phase from elapsed trading days (day 0 is
// the entry day itself).
func (s *EnrichedSeries) TradingDaysSince(date time.Time) int {
	count := 0
	for i := len(s.Bars) - 1; i >= 0; i-- {
		if !s.Bars[i].Date.After(date) {
			break
		}
		count++
	}
	return count
}
