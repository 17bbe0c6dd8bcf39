package contracts

import "time"

// Strategy identifies a screening methodology.
type Strategy string

const (
	StrategySEPA Strategy = "SEPA"
	StrategyQM   Strategy = "QM"
)

// SkipReason explains why a ticker was dropped from a stage without
// being treated as a pipeline failure.
type SkipReason string

const (
	SkipFetchFailed      SkipReason = "fetch_failed"
	SkipShortHistory     SkipReason = "short_history"
	SkipGateFailed       SkipReason = "gate_failed"
	SkipComputationError SkipReason = "computation_error"
)

// Stage1Metrics carries the coarse filter values observed for a ticker.
type Stage1Metrics struct {
	Price     float64 `json:"price"`
	AvgVolume int64   `json:"avg_volume"`
	Source    string  `json:"source"` // provider that produced the ticker
}

// Candidate is a ticker with its enriched series, created by
// Stage1/BatchFetch and consumed by Stage2.
type Candidate struct {
	Ticker string          `json:"ticker"`
	Series *EnrichedSeries `json:"-"`
	Stage1 Stage1Metrics   `json:"stage1"`
}

// GateResult is the Stage2 verdict for one ticker. A ticker with
// Passed=false never reaches Stage3.
type GateResult struct {
	Ticker     string             `json:"ticker"`
	Passed     bool               `json:"passed"`
	FailedGate string             `json:"failed_gate,omitempty"` // first gate that vetoed
	Metrics    map[string]float64 `json:"metrics"`
}

// DimensionScore is one Stage3 scoring dimension for one ticker.
// Score is bounded to [-2, +2]. IsVeto forces the aggregate rating to
// the minimum tier regardless of the other dimensions.
type DimensionScore struct {
	Score  float64 `json:"score"`
	Detail string  `json:"detail"`
	IsVeto bool    `json:"is_veto"`
}

// Recommendation is the buy/watch/pass verdict derived from the rating.
type Recommendation string

const (
	RecStrongBuy Recommendation = "STRONG_BUY"
	RecBuy       Recommendation = "BUY"
	RecWatch     Recommendation = "WATCH"
	RecPass      Recommendation = "PASS"
)

// TradePlan is the pure-arithmetic entry plan attached to a scored
// candidate: current price, risk-based initial stop and sizing range.
type TradePlan struct {
	Entry          float64 `json:"entry"`
	InitialStop    float64 `json:"initial_stop"`
	RiskPerShare   float64 `json:"risk_per_share"`
	RiskPercent    float64 `json:"risk_percent"`
	PositionMinPct float64 `json:"position_min_pct"` // of portfolio
	PositionMaxPct float64 `json:"position_max_pct"`
}

// ScoredCandidate is the Stage3 output row. Created once, ranked and
// truncated by the orchestrator, never mutated afterwards.
type ScoredCandidate struct {
	Ticker         string                    `json:"ticker"`
	Strategy       Strategy                  `json:"strategy"`
	Dimensions     map[string]DimensionScore `json:"dimensions"`
	StarRating     float64                   `json:"star_rating"`
	Recommendation Recommendation            `json:"recommendation"`
	VetoReason     string                    `json:"veto_reason,omitempty"`
	Momentum       float64                   `json:"momentum"` // rank tiebreaker
	TradePlan      TradePlan                 `json:"trade_plan"`
	ScoredAt       time.Time                 `json:"scored_at"`
}

// StrategyResult is one strategy's slice of a combined scan.
type StrategyResult struct {
	Strategy   Strategy              `json:"strategy"`
	Blocked    bool                  `json:"blocked"` // bear-market gate fired
	Error      string                `json:"error,omitempty"`
	Passed     []ScoredCandidate     `json:"passed"`     // recommendation above PASS, top-N
	AllScored  []ScoredCandidate     `json:"all_scored"` // everything Stage3 produced
	Stage1Size int                   `json:"stage1_size"`
	GateSize   int                   `json:"gate_size"`
	Skipped    map[string]SkipReason `json:"skipped,omitempty"`
}

// CombinedResult is the merged output of one combined scan run.
type CombinedResult struct {
	Regime      RegimeSnapshot           `json:"regime"`
	SEPA        *StrategyResult          `json:"sepa"`
	QM          *StrategyResult          `json:"qm"`
	StageTiming map[string]time.Duration `json:"stage_timing"`
	UnionSize   int                      `json:"union_size"`
	Fetched     int                      `json:"fetched"`
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
	ConfigHash  string                   `json:"config_hash,omitempty"`
}

// RegimeSnapshot is the shared market environment assessment taken once
// per combined run.
type RegimeSnapshot struct {
	State      Regime    `json:"state"`
	Benchmark  string    `json:"benchmark"`
	Close      float64   `json:"close"`
	SMA50      float64   `json:"sma50"`
	SMA200     float64   `json:"sma200"`
	AssessedAt time.Time `json:"assessed_at"`
}

// Regime classifies the market environment.
type Regime string

const (
	RegimeBull    Regime = "BULL"
	RegimeNeutral Regime = "NEUTRAL"
	RegimeBear    Regime = "BEAR"
)
