// Package indicators provides the technical indicator math consumed by
// series enrichment: rolling averages, RSI, ATR, Bollinger Bands. All
// functions operate on slices ordered oldest first.
package indicators

import (
	"math"

	"github.com/wonny/vantage/backend/internal/contracts"
)

// SMA computes the simple moving average of the last `period` values
// ending at index i. Returns 0 when the window is not available.
func SMA(values []float64, i, period int) float64 {
	if period <= 0 || i+1 < period || i >= len(values) {
		return 0
	}
	sum := 0.0
	for j := i + 1 - period; j <= i; j++ {
		sum += values[j]
	}
	return sum / float64(period)
}

// EMASeries computes the exponential moving average for every index.
// Entries before the seed window are 0.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	// Seed with the SMA of the first window
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	k := 2.0 / float64(period+1)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// RSISeries computes the Wilder-smoothed RSI for every index.
// Entries before period changes are 0.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// ATRSeries computes the rolling mean true range for every index.
// True range of bar i uses the previous close; the first bar uses its
// own high-low span.
func ATRSeries(bars []contracts.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if period <= 0 || len(bars) == 0 {
		return out
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		tr[i] = math.Max(
			bars[i].High-bars[i].Low,
			math.Max(
				math.Abs(bars[i].High-prevClose),
				math.Abs(bars[i].Low-prevClose),
			),
		)
	}

	for i := period - 1; i < len(tr); i++ {
		out[i] = SMA(tr, i, period)
	}
	return out
}

// Bollinger computes the Bollinger Bands (middle SMA, upper, lower) at
// index i with the given period and standard deviation multiple.
func Bollinger(closes []float64, i, period int, mult float64) (upper, middle, lower float64) {
	middle = SMA(closes, i, period)
	if middle == 0 {
		return 0, 0, 0
	}

	variance := 0.0
	for j := i + 1 - period; j <= i; j++ {
		d := closes[j] - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return middle + mult*sd, middle, middle - mult*sd
}

// Range52W scans the most recent 252 bars and returns the high and low.
func Range52W(bars []contracts.Bar) (high, low float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	start := len(bars) - 252
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < len(bars); i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low
}

// Slope returns the change of v over the last n indices ending at i,
// as a fraction of the older value. Used for "is this MA rising".
func Slope(values []float64, i, n int) float64 {
	j := i - n
	if j < 0 || i >= len(values) || values[j] == 0 {
		return 0
	}
	return values[i]/values[j] - 1
}

// Closes extracts the close column from a bar slice.
func Closes(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
