// Package strategyconfig holds the empirical tuning constants of each
// screening strategy: gate thresholds, dimension weights, the rating
// ladder and the sizing table. These are business parameters loaded
// from YAML, never derived at runtime.
package strategyconfig

import "github.com/wonny/vantage/backend/internal/contracts"

// Config is one strategy's full tuning set.
type Config struct {
	Meta    Meta          `yaml:"meta" json:"meta"`
	Stage1  Stage1Config  `yaml:"stage1" json:"stage1"`
	Gates   GateConfig    `yaml:"gates" json:"gates"`
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`
	Sizing  []SizingTier  `yaml:"sizing" json:"sizing"`
	Risk    RiskConfig    `yaml:"risk" json:"risk"`
}

// Meta identifies the strategy and config revision
type Meta struct {
	Strategy    contracts.Strategy `yaml:"strategy" json:"strategy"`
	Version     string             `yaml:"version" json:"version"`
	BlockInBear bool               `yaml:"block_in_bear" json:"block_in_bear"`
}

// Stage1Config holds the coarse universe criteria
type Stage1Config struct {
	MinPrice     float64  `yaml:"min_price" json:"min_price"`
	MinAvgVolume int64    `yaml:"min_avg_volume" json:"min_avg_volume"`
	Exchanges    []string `yaml:"exchanges" json:"exchanges"`
	Limit        int      `yaml:"limit" json:"limit"`
}

// GateConfig holds the Stage2 hard-veto thresholds. Every gate must
// pass; failing any one drops the ticker.
type GateConfig struct {
	MinPrice         float64 `yaml:"min_price" json:"min_price"`
	MinDollarVolume  float64 `yaml:"min_dollar_volume" json:"min_dollar_volume"`
	MinADR           float64 `yaml:"min_adr" json:"min_adr"` // fraction, e.g. 0.035
	ADRWindow        int     `yaml:"adr_window" json:"adr_window"`
	MinMomentum      float64 `yaml:"min_momentum" json:"min_momentum"`           // best of momentum windows
	MomentumWindows  []int   `yaml:"momentum_windows" json:"momentum_windows"`   // trading days
	MaxOff52WHigh    float64 `yaml:"max_off_52w_high" json:"max_off_52w_high"`   // fraction below high
	MinAbove52WLow   float64 `yaml:"min_above_52w_low" json:"min_above_52w_low"` // 0 disables
	MinHistoryDays   int     `yaml:"min_history_days" json:"min_history_days"`
	DollarVolumeDays int     `yaml:"dollar_volume_days" json:"dollar_volume_days"`
}

// ScoringConfig holds the Stage3 aggregation parameters
type ScoringConfig struct {
	Base              float64            `yaml:"base" json:"base"`
	Scale             float64            `yaml:"scale" json:"scale"`
	MaxRating         float64            `yaml:"max_rating" json:"max_rating"`
	Weights           map[string]float64 `yaml:"weights" json:"weights"`
	StrongBuyMin      float64            `yaml:"strong_buy_min" json:"strong_buy_min"`
	BuyMin            float64            `yaml:"buy_min" json:"buy_min"`
	WatchMin          float64            `yaml:"watch_min" json:"watch_min"`
	ADRVetoBelow      float64            `yaml:"adr_veto_below" json:"adr_veto_below"`           // consolidation veto
	MomentumVetoBelow float64            `yaml:"momentum_veto_below" json:"momentum_veto_below"` // 0 disables
}

// SizingTier maps a minimum rating to a position size range
type SizingTier struct {
	MinRating float64 `yaml:"min_rating" json:"min_rating"`
	MinPct    float64 `yaml:"min_pct" json:"min_pct"`
	MaxPct    float64 `yaml:"max_pct" json:"max_pct"`
}

// RiskConfig holds the position protocol parameters
type RiskConfig struct {
	Day1StopBuffer    float64           `yaml:"day1_stop_buffer" json:"day1_stop_buffer"` // fraction under entry-day low
	PartialRMultiple  float64           `yaml:"partial_r_multiple" json:"partial_r_multiple"`
	ExtendedAboveMA   float64           `yaml:"extended_above_ma" json:"extended_above_ma"` // fraction over SMA50
	ExtremeAboveMA    float64           `yaml:"extreme_above_ma" json:"extreme_above_ma"`
	StructureMinFails int               `yaml:"structure_min_fails" json:"structure_min_fails"`
	PartialSell       []PartialSellTier `yaml:"partial_sell" json:"partial_sell"`
}

// PartialSellTier maps a minimum entry rating to the fraction sold at
// the first R-multiple trigger. Higher conviction sells less.
type PartialSellTier struct {
	MinRating float64 `yaml:"min_rating" json:"min_rating"`
	Fraction  float64 `yaml:"fraction" json:"fraction"`
}

// SizeForRating returns the position size range for a rating, using
// the first tier whose MinRating the rating meets. Tiers must be
// ordered descending by MinRating.
func (c *Config) SizeForRating(rating float64) (minPct, maxPct float64) {
	for _, tier := range c.Sizing {
		if rating >= tier.MinRating {
			return tier.MinPct, tier.MaxPct
		}
	}
	return 0, 0
}

// PartialSellFraction returns the first R-multiple sell fraction for
// an entry rating. Tiers must be ordered descending by MinRating.
func (r *RiskConfig) PartialSellFraction(rating float64) float64 {
	for _, tier := range r.PartialSell {
		if rating >= tier.MinRating {
			return tier.Fraction
		}
	}
	if len(r.PartialSell) == 0 {
		return 0.5
	}
	return r.PartialSell[len(r.PartialSell)-1].Fraction
}

// DefaultSEPA returns the SEPA strategy defaults
func DefaultSEPA() *Config {
	return &Config{
		Meta: Meta{
			Strategy:    contracts.StrategySEPA,
			Version:     "1.0.0",
			BlockInBear: false,
		},
		Stage1: Stage1Config{
			MinPrice:     10.0,
			MinAvgVolume: 300_000,
			Limit:        250,
		},
		Gates: GateConfig{
			MinPrice:         10.0,
			MinDollarVolume:  5_000_000,
			MinADR:           0.035,
			ADRWindow:        20,
			MinMomentum:      0.20,
			MomentumWindows:  []int{21, 63, 126}, // ~1M, 3M, 6M
			MaxOff52WHigh:    0.25,
			MinAbove52WLow:   0.30,
			MinHistoryDays:   200,
			DollarVolumeDays: 50,
		},
		Scoring: ScoringConfig{
			Base:      3.0,
			Scale:     1.25,
			MaxRating: 5.5,
			Weights: map[string]float64{
				"trend":         0.25,
				"consolidation": 0.20,
				"ma_alignment":  0.15,
				"liquidity":     0.10,
				"momentum":      0.20,
				"market_timing": 0.10,
			},
			StrongBuyMin: 5.0,
			BuyMin:       4.0,
			WatchMin:     3.0,
			ADRVetoBelow: 0.04,
		},
		Sizing: []SizingTier{
			{MinRating: 5.0, MinPct: 20, MaxPct: 25},
			{MinRating: 4.0, MinPct: 15, MaxPct: 20},
			{MinRating: 3.0, MinPct: 10, MaxPct: 15},
		},
		Risk: defaultRisk(),
	}
}

// DefaultQM returns the QM strategy defaults
func DefaultQM() *Config {
	return &Config{
		Meta: Meta{
			Strategy:    contracts.StrategyQM,
			Version:     "1.0.0",
			BlockInBear: true,
		},
		Stage1: Stage1Config{
			MinPrice:     5.0,
			MinAvgVolume: 500_000,
			Limit:        250,
		},
		Gates: GateConfig{
			MinPrice:         5.0,
			MinDollarVolume:  3_000_000,
			MinADR:           0.04,
			ADRWindow:        20,
			MinMomentum:      0.30,
			MomentumWindows:  []int{21, 63, 126},
			MaxOff52WHigh:    0.20,
			MinHistoryDays:   130,
			DollarVolumeDays: 50,
		},
		Scoring: ScoringConfig{
			Base:      3.0,
			Scale:     1.25,
			MaxRating: 5.5,
			Weights: map[string]float64{
				"momentum_burst": 0.30,
				"consolidation":  0.25,
				"ma_alignment":   0.20,
				"liquidity":      0.10,
				"market_timing":  0.15,
			},
			StrongBuyMin:      5.0,
			BuyMin:            4.0,
			WatchMin:          3.0,
			MomentumVetoBelow: 0.30,
		},
		Sizing: []SizingTier{
			{MinRating: 5.0, MinPct: 15, MaxPct: 20},
			{MinRating: 4.0, MinPct: 10, MaxPct: 15},
			{MinRating: 3.0, MinPct: 5, MaxPct: 10},
		},
		Risk: defaultRisk(),
	}
}

func defaultRisk() RiskConfig {
	return RiskConfig{
		Day1StopBuffer:    0.02,
		PartialRMultiple:  3.0,
		ExtendedAboveMA:   0.40,
		ExtremeAboveMA:    0.60,
		StructureMinFails: 5,
		PartialSell: []PartialSellTier{
			{MinRating: 5.0, Fraction: 0.25},
			{MinRating: 4.0, Fraction: 0.33},
			{MinRating: 0.0, Fraction: 0.50},
		},
	}
}
