package scan

import (
	"fmt"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
)

// sepaDimensions builds the SEPA dimension set: trend structure,
// consolidation quality, moving-average alignment, liquidity class,
// momentum, market timing.
func sepaDimensions(cfg *strategyconfig.Config) map[string]DimensionFunc {
	return map[string]DimensionFunc{
		"trend":         trendTemplateDim,
		"consolidation": consolidationDim(cfg.Scoring, cfg.Gates.ADRWindow),
		"ma_alignment":  maAlignmentDim,
		"liquidity":     liquidityDim(cfg.Gates.DollarVolumeDays),
		"momentum":      momentumDim(cfg.Gates.MomentumWindows),
		"market_timing": marketTimingDim,
	}
}

// trendTemplateDim grades the long-term trend structure checklist:
// close > SMA50 > SMA150 > SMA200, SMA200 rising over the last month,
// and position within the 52-week range. A close under the SMA200
// vetoes the ticker outright.
func trendTemplateDim(s *contracts.EnrichedSeries, _ contracts.RegimeSnapshot) contracts.DimensionScore {
	close := s.LastBar().Close
	ind := s.LastIndicators()

	if ind.SMA200 > 0 && close < ind.SMA200 {
		return contracts.DimensionScore{
			Score:  dimMin,
			Detail: fmt.Sprintf("close %.2f under sma200 %.2f", close, ind.SMA200),
			IsVeto: true,
		}
	}

	hits := 0
	if close > ind.SMA50 {
		hits++
	}
	if ind.SMA50 > ind.SMA150 {
		hits++
	}
	if ind.SMA150 > ind.SMA200 {
		hits++
	}
	if ago, ok := indicatorAgo(s, 21); ok && ago.SMA200 > 0 && ind.SMA200 > ago.SMA200 {
		hits++
	}
	if s.High52W > 0 && close >= s.High52W*0.75 {
		hits++
	}
	if s.Low52W > 0 && close >= s.Low52W*1.30 {
		hits++
	}

	score := clampDim(float64(hits)*4/6 - 2) // 0..6 hits -> -2..+2
	return contracts.DimensionScore{
		Score:  score,
		Detail: fmt.Sprintf("trend template %d/6", hits),
	}
}

// momentumDim grades the best lookback-window return.
func momentumDim(windows []int) DimensionFunc {
	return func(s *contracts.EnrichedSeries, _ contracts.RegimeSnapshot) contracts.DimensionScore {
		m := BestMomentum(s, windows)
		var score float64
		switch {
		case m >= 1.0:
			score = 2
		case m >= 0.6:
			score = 1.5
		case m >= 0.4:
			score = 1
		case m >= 0.2:
			score = 0.5
		case m >= 0:
			score = -0.5
		default:
			score = -2
		}
		return contracts.DimensionScore{
			Score:  score,
			Detail: fmt.Sprintf("best window return %.0f%%", m*100),
		}
	}
}
