package scan

import (
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/marketdata"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
)

// rampSeries builds an enriched series whose closes move linearly from
// start to end over the given number of days, with a constant daily
// range and volume.
func rampSeries(ticker string, days int, start, end, adr float64, volume int64) *contracts.EnrichedSeries {
	bars := make([]contracts.Bar, days)
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		var close float64
		if days == 1 {
			close = end
		} else {
			close = start + (end-start)*float64(i)/float64(days-1)
		}
		bars[i] = contracts.Bar{
			Date:   base.AddDate(0, 0, i),
			Open:   close,
			High:   close * (1 + adr),
			Low:    close,
			Close:  close,
			Volume: volume,
		}
	}
	return marketdata.Enrich(ticker, bars)
}

// lenientGates passes any liquid series; individual tests tighten one
// threshold at a time.
func lenientGates() strategyconfig.GateConfig {
	return strategyconfig.GateConfig{
		MinPrice:         1,
		MinDollarVolume:  1,
		MinADR:           0,
		ADRWindow:        20,
		MinMomentum:      -1,
		MomentumWindows:  []int{21, 63},
		MaxOff52WHigh:    1,
		MinAbove52WLow:   0,
		MinHistoryDays:   10,
		DollarVolumeDays: 20,
	}
}
