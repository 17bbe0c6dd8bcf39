package scan

import (
	"fmt"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
)

// Dimension scores are bounded to this range.
const (
	dimMin = -2.0
	dimMax = 2.0
)

func clampDim(x float64) float64 {
	if x < dimMin {
		return dimMin
	}
	if x > dimMax {
		return dimMax
	}
	return x
}

// indicatorAgo returns the indicator row n bars before the last one.
func indicatorAgo(s *contracts.EnrichedSeries, n int) (contracts.IndicatorRow, bool) {
	idx := len(s.Indicators) - 1 - n
	if idx < 0 {
		return contracts.IndicatorRow{}, false
	}
	return s.Indicators[idx], true
}

// maAlignmentDim grades the short-term moving average stack. Full
// alignment (close > SMA10 > SMA20 > SMA50) scores +2, each break
// costs a point.
func maAlignmentDim(s *contracts.EnrichedSeries, _ contracts.RegimeSnapshot) contracts.DimensionScore {
	close := s.LastBar().Close
	ind := s.LastIndicators()

	hits := 0
	if close > ind.SMA10 {
		hits++
	}
	if ind.SMA10 > ind.SMA20 {
		hits++
	}
	if ind.SMA20 > ind.SMA50 {
		hits++
	}

	score := clampDim(float64(hits)*4/3 - 2) // 0..3 hits -> -2..+2
	return contracts.DimensionScore{
		Score:  score,
		Detail: fmt.Sprintf("ma stack %d/3 aligned", hits),
	}
}

// liquidityDim grades tradability by average dollar volume.
func liquidityDim(days int) DimensionFunc {
	return func(s *contracts.EnrichedSeries, _ contracts.RegimeSnapshot) contracts.DimensionScore {
		dv := s.AvgDollarVolume(days)
		var score float64
		switch {
		case dv >= 100_000_000:
			score = 2
		case dv >= 50_000_000:
			score = 1.5
		case dv >= 20_000_000:
			score = 1
		case dv >= 10_000_000:
			score = 0
		case dv >= 5_000_000:
			score = -1
		default:
			score = -2
		}
		return contracts.DimensionScore{
			Score:  score,
			Detail: fmt.Sprintf("avg dollar volume $%.1fM", dv/1e6),
		}
	}
}

// marketTimingDim passes the shared regime signal through as a score.
func marketTimingDim(s *contracts.EnrichedSeries, regime contracts.RegimeSnapshot) contracts.DimensionScore {
	var score float64
	switch regime.State {
	case contracts.RegimeBull:
		score = 2
	case contracts.RegimeBear:
		score = -2
	default:
		score = 0
	}
	return contracts.DimensionScore{
		Score:  score,
		Detail: fmt.Sprintf("market regime %s", regime.State),
	}
}

// consolidationDim grades base tightness: recent range contraction
// versus the prior period and proximity to the 20-day high. An ADR
// below the configured floor vetoes the ticker as untradable.
func consolidationDim(scoring strategyconfig.ScoringConfig, adrWindow int) DimensionFunc {
	return func(s *contracts.EnrichedSeries, _ contracts.RegimeSnapshot) contracts.DimensionScore {
		adr := s.ADR(adrWindow)
		if scoring.ADRVetoBelow > 0 && adr < scoring.ADRVetoBelow {
			return contracts.DimensionScore{
				Score:  dimMin,
				Detail: fmt.Sprintf("adr %.1f%% below %.1f%% floor", adr*100, scoring.ADRVetoBelow*100),
				IsVeto: true,
			}
		}

		recent := s.ADR(10)
		prior := s.ADR(40)

		score := 0.0
		if prior > 0 {
			contraction := recent / prior
			switch {
			case contraction <= 0.6:
				score += 1.5
			case contraction <= 0.8:
				score += 1
			case contraction <= 1.0:
				score += 0.5
			default:
				score -= 1
			}
		}

		// Reward closes holding near the top of the recent range.
		high20 := 0.0
		n := 20
		if n > s.Len() {
			n = s.Len()
		}
		for i := s.Len() - n; i < s.Len(); i++ {
			if s.Bars[i].High > high20 {
				high20 = s.Bars[i].High
			}
		}
		if high20 > 0 {
			off := 1 - s.LastBar().Close/high20
			switch {
			case off <= 0.03:
				score += 0.5
			case off >= 0.15:
				score -= 1
			}
		}

		return contracts.DimensionScore{
			Score:  clampDim(score),
			Detail: fmt.Sprintf("adr10/adr40 contraction, adr %.1f%%", adr*100),
		}
	}
}
