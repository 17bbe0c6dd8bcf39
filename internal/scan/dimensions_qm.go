package scan

import (
	"fmt"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
)

// qmDimensions builds the QM dimension set. QM trades shorter bursts,
// so the trend-template dimension is replaced by a momentum-burst
// dimension with its own veto floor.
func qmDimensions(cfg *strategyconfig.Config) map[string]DimensionFunc {
	return map[string]DimensionFunc{
		"momentum_burst": momentumBurstDim(cfg.Scoring, cfg.Gates.MomentumWindows),
		"consolidation":  consolidationDim(cfg.Scoring, cfg.Gates.ADRWindow),
		"ma_alignment":   maAlignmentDim,
		"liquidity":      liquidityDim(cfg.Gates.DollarVolumeDays),
		"market_timing":  marketTimingDim,
	}
}

// momentumBurstDim grades short-window momentum, weighting the most
// recent month heaviest. A best-window return under the configured
// floor vetoes the ticker.
func momentumBurstDim(scoring strategyconfig.ScoringConfig, windows []int) DimensionFunc {
	return func(s *contracts.EnrichedSeries, _ contracts.RegimeSnapshot) contracts.DimensionScore {
		best := BestMomentum(s, windows)
		if scoring.MomentumVetoBelow > 0 && best < scoring.MomentumVetoBelow {
			return contracts.DimensionScore{
				Score:  dimMin,
				Detail: fmt.Sprintf("best return %.0f%% under %.0f%% floor", best*100, scoring.MomentumVetoBelow*100),
				IsVeto: true,
			}
		}

		score := 0.0
		switch {
		case best >= 1.0:
			score = 2
		case best >= 0.7:
			score = 1.5
		case best >= 0.5:
			score = 1
		case best >= 0.3:
			score = 0.5
		default:
			score = -1
		}

		// Recent burst bonus: the last month alone doing the work.
		if ret, ok := s.Return(21); ok && ret >= 0.25 {
			score = clampDim(score + 0.5)
		}

		return contracts.DimensionScore{
			Score:  score,
			Detail: fmt.Sprintf("best window return %.0f%%", best*100),
		}
	}
}
