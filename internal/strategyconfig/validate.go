package strategyconfig

import (
	"fmt"
	"sort"
)

// Validate checks invariants the scorer and the risk machine rely on.
func Validate(cfg *Config) error {
	if cfg.Meta.Strategy == "" {
		return fmt.Errorf("meta.strategy is required")
	}

	if len(cfg.Scoring.Weights) == 0 {
		return fmt.Errorf("scoring.weights must not be empty")
	}
	for name, w := range cfg.Scoring.Weights {
		if w < 0 {
			return fmt.Errorf("scoring.weights[%s] must be >= 0", name)
		}
	}

	if cfg.Scoring.MaxRating <= 0 {
		return fmt.Errorf("scoring.max_rating must be > 0")
	}
	if !(cfg.Scoring.StrongBuyMin >= cfg.Scoring.BuyMin && cfg.Scoring.BuyMin >= cfg.Scoring.WatchMin) {
		return fmt.Errorf("rating ladder must satisfy strong_buy_min >= buy_min >= watch_min")
	}

	if len(cfg.Gates.MomentumWindows) == 0 {
		return fmt.Errorf("gates.momentum_windows must not be empty")
	}

	if !sort.SliceIsSorted(cfg.Sizing, func(i, j int) bool {
		return cfg.Sizing[i].MinRating > cfg.Sizing[j].MinRating
	}) {
		return fmt.Errorf("sizing tiers must be ordered descending by min_rating")
	}
	for _, tier := range cfg.Sizing {
		if tier.MinPct > tier.MaxPct {
			return fmt.Errorf("sizing tier min_pct %.1f exceeds max_pct %.1f", tier.MinPct, tier.MaxPct)
		}
	}

	if !sort.SliceIsSorted(cfg.Risk.PartialSell, func(i, j int) bool {
		return cfg.Risk.PartialSell[i].MinRating > cfg.Risk.PartialSell[j].MinRating
	}) {
		return fmt.Errorf("risk.partial_sell tiers must be ordered descending by min_rating")
	}
	for _, tier := range cfg.Risk.PartialSell {
		if tier.Fraction <= 0 || tier.Fraction > 1 {
			return fmt.Errorf("risk.partial_sell fraction %.2f out of (0,1]", tier.Fraction)
		}
	}

	if cfg.Risk.ExtremeAboveMA < cfg.Risk.ExtendedAboveMA {
		return fmt.Errorf("risk.extreme_above_ma must be >= risk.extended_above_ma")
	}

	return nil
}
