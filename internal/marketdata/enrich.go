package marketdata

import (
	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/indicators"
)

// Enrich computes the indicator columns for a bar series. The result
// is owned by the caller and treated as immutable from then on.
func Enrich(ticker string, bars []contracts.Bar) *contracts.EnrichedSeries {
	closes := indicators.Closes(bars)

	ema10 := indicators.EMASeries(closes, 10)
	ema21 := indicators.EMASeries(closes, 21)
	rsi14 := indicators.RSISeries(closes, 14)
	atr14 := indicators.ATRSeries(bars, 14)

	rows := make([]contracts.IndicatorRow, len(bars))
	for i := range bars {
		up, mid, low := indicators.Bollinger(closes, i, 20, 2)
		rows[i] = contracts.IndicatorRow{
			SMA10:  indicators.SMA(closes, i, 10),
			SMA20:  indicators.SMA(closes, i, 20),
			SMA50:  indicators.SMA(closes, i, 50),
			SMA150: indicators.SMA(closes, i, 150),
			SMA200: indicators.SMA(closes, i, 200),
			EMA10:  ema10[i],
			EMA21:  ema21[i],
			RSI14:  rsi14[i],
			ATR14:  atr14[i],
			BBUp:   up,
			BBMid:  mid,
			BBLow:  low,
		}
	}

	high52, low52 := indicators.Range52W(bars)

	return &contracts.EnrichedSeries{
		Ticker:     ticker,
		AsOf:       bars[len(bars)-1].Date,
		Bars:       bars,
		Indicators: rows,
		High52W:    high52,
		Low52W:     low52,
	}
}
