package contracts

import "time"

// StopPhase is the stop-loss lifecycle state. Strictly forward,
// determined purely from elapsed trading days since entry.
type StopPhase string

const (
	PhaseDay1     StopPhase = "DAY1"
	PhaseDay2     StopPhase = "DAY2"
	PhaseDay3Plus StopPhase = "DAY3_PLUS"
)

// PositionAction is a recommended action, ordered by severity.
type PositionAction string

const (
	ActionHold        PositionAction = "HOLD"
	ActionTakePartial PositionAction = "TAKE_PARTIAL_PROFIT"
	ActionStopHit     PositionAction = "STOP_HIT"
	ActionSellAll     PositionAction = "SELL_ALL"
	ActionSellNow     PositionAction = "SELL_IMMEDIATELY"
)

// actionSeverity orders actions; higher wins when merging signals.
var actionSeverity = map[PositionAction]int{
	ActionHold:        0,
	ActionTakePartial: 1,
	ActionStopHit:     2,
	ActionSellAll:     3,
	ActionSellNow:     4,
}

// Severity returns the precedence rank of an action
func (a PositionAction) Severity() int {
	return actionSeverity[a]
}

// MoreSevere returns the more severe of two actions
func MoreSevere(a, b PositionAction) PositionAction {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// TriggerKind names an independent sell trigger.
type TriggerKind string

const (
	TriggerStopHit        TriggerKind = "stop_hit"
	TriggerTrailingBreak  TriggerKind = "trailing_break"
	TriggerPartialProfit  TriggerKind = "partial_profit"
	TriggerExtended       TriggerKind = "extended"
	TriggerExtreme        TriggerKind = "extreme_extension"
	TriggerStructureBreak TriggerKind = "structure_break"
	TriggerGapReversal    TriggerKind = "gap_reversal"
)

// RiskSignal is one fired trigger with its recommended action.
type RiskSignal struct {
	Kind       TriggerKind    `json:"kind"`
	Action     PositionAction `json:"action"`
	Message    string         `json:"message"`
	SellShares int            `json:"sell_shares,omitempty"`
}

// Position is an open trade managed by the risk state machine.
// The stop may only move in the trader's favor, never down.
type Position struct {
	ID              int64      `json:"id"`
	Ticker          string     `json:"ticker"`
	Strategy        Strategy   `json:"strategy"`
	EntryPrice      float64    `json:"entry_price"`
	EntryDate       time.Time  `json:"entry_date"`
	EntryDayLow     float64    `json:"entry_day_low"`
	Shares          int        `json:"shares"`
	RemainingShares int        `json:"remaining_shares"`
	Rating          float64    `json:"rating"` // star rating at entry
	InitialStop     float64    `json:"initial_stop"`
	CurrentStop     float64    `json:"current_stop"`
	StopPhase       StopPhase  `json:"stop_phase"`
	PartialTaken    bool       `json:"partial_taken"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

// InitialRisk is the per-share risk at entry (entry - initial stop).
func (p *Position) InitialRisk() float64 {
	return p.EntryPrice - p.InitialStop
}

// RMultiple expresses unrealized gain as a multiple of initial risk.
func (p *Position) RMultiple(price float64) float64 {
	risk := p.InitialRisk()
	if risk <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / risk
}

// Assessment is the daily verdict of the risk state machine.
type Assessment struct {
	Ticker     string         `json:"ticker"`
	Phase      StopPhase      `json:"phase"`
	Stop       float64        `json:"stop"`
	Close      float64        `json:"close"`
	RMultiple  float64        `json:"r_multiple"`
	Signals    []RiskSignal   `json:"signals"`
	Action     PositionAction `json:"action"` // most severe signal present
	Concern    string         `json:"concern,omitempty"`
	AssessedAt time.Time      `json:"assessed_at"`
}
