package position

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// Machine is the position risk state machine: a 3-phase stop lifecycle
// (entry-day stop, break-even stop, trailing soft stop) plus the
// independent daily sell triggers. Stops only ever move in the
// trader's favor.
type Machine struct {
	risk   strategyconfig.RiskConfig
	logger *logger.Logger
}

// NewMachine creates a state machine with the given risk protocol
func NewMachine(risk strategyconfig.RiskConfig, log *logger.Logger) *Machine {
	return &Machine{risk: risk, logger: log}
}

// Assess evaluates one position against its latest daily series. The
// position's phase and stop are advanced in place; the returned
// assessment carries every fired trigger and the most severe action.
func (m *Machine) Assess(pos *contracts.Position, s *contracts.EnrichedSeries) *contracts.Assessment {
	last := s.LastBar()
	ind := s.LastIndicators()
	close := last.Close

	days := s.TradingDaysSince(pos.EntryDate)
	phase := phaseForDay(days)
	// Phases never revert; a stale entry date cannot pull the position
	// back to an earlier stop regime.
	if phaseRank(phase) > phaseRank(pos.StopPhase) {
		pos.StopPhase = phase
	}

	a := &contracts.Assessment{
		Ticker:     pos.Ticker,
		Phase:      pos.StopPhase,
		Close:      close,
		RMultiple:  pos.RMultiple(close),
		AssessedAt: time.Now(),
	}

	m.advanceStop(pos, s, a)
	a.Stop = pos.CurrentStop

	// Hard stop check. In DAY3_PLUS the trailing reference replaces
	// the hard stop as the primary exit, but a stop set earlier still
	// binds.
	if pos.CurrentStop > 0 && close <= pos.CurrentStop {
		a.Signals = append(a.Signals, contracts.RiskSignal{
			Kind:    contracts.TriggerStopHit,
			Action:  contracts.ActionStopHit,
			Message: fmt.Sprintf("close %.2f at or below stop %.2f", close, pos.CurrentStop),
		})
	}

	// Trailing soft stop: evaluated on the close only.
	if pos.StopPhase == contracts.PhaseDay3Plus && ind.SMA10 > 0 && close < ind.SMA10 {
		a.Signals = append(a.Signals, contracts.RiskSignal{
			Kind:    contracts.TriggerTrailingBreak,
			Action:  contracts.ActionSellAll,
			Message: fmt.Sprintf("close %.2f below trailing reference %.2f", close, ind.SMA10),
		})
	}

	m.checkPartialProfit(pos, close, a)
	m.checkExtension(close, ind, a)
	m.checkStructureBreak(s, a)
	m.checkGapReversal(s, a)

	a.Action = contracts.ActionHold
	for _, sig := range a.Signals {
		a.Action = contracts.MoreSevere(a.Action, sig.Action)
	}

	return a
}

// advanceStop applies the phase's stop rule, keeping the stop
// monotonic: it may only move up.
func (m *Machine) advanceStop(pos *contracts.Position, s *contracts.EnrichedSeries, a *contracts.Assessment) {
	close := s.LastBar().Close

	candidate := pos.CurrentStop
	switch pos.StopPhase {
	case contracts.PhaseDay1:
		day1 := pos.EntryDayLow * (1 - m.risk.Day1StopBuffer)
		if pos.InitialStop > day1 {
			day1 = pos.InitialStop
		}
		candidate = day1

	case contracts.PhaseDay2:
		if close >= pos.EntryPrice {
			candidate = pos.EntryPrice
		} else {
			a.Concern = "below entry on day 2, stop held at entry-day level"
		}

	case contracts.PhaseDay3Plus:
		// The trailing reference is a soft stop; the hard stop ratchets
		// to break-even once the position is profitable.
		if close >= pos.EntryPrice {
			candidate = pos.EntryPrice
		}
	}

	if candidate > pos.CurrentStop {
		pos.CurrentStop = candidate
	}
}

func (m *Machine) checkPartialProfit(pos *contracts.Position, close float64, a *contracts.Assessment) {
	if pos.PartialTaken || m.risk.PartialRMultiple <= 0 {
		return
	}
	if pos.RMultiple(close) < m.risk.PartialRMultiple {
		return
	}

	fraction := m.risk.PartialSellFraction(pos.Rating)
	shares := int(math.Round(float64(pos.RemainingShares) * fraction))
	if shares < 1 {
		shares = 1
	}
	if shares > pos.RemainingShares {
		shares = pos.RemainingShares
	}

	a.Signals = append(a.Signals, contracts.RiskSignal{
		Kind:       contracts.TriggerPartialProfit,
		Action:     contracts.ActionTakePartial,
		Message:    fmt.Sprintf("%.1fR reached, sell %d of %d shares (%.0f%%)", a.RMultiple, shares, pos.RemainingShares, fraction*100),
		SellShares: shares,
	})
	pos.PartialTaken = true
}

func (m *Machine) checkExtension(close float64, ind contracts.IndicatorRow, a *contracts.Assessment) {
	if ind.SMA50 <= 0 {
		return
	}
	ext := close/ind.SMA50 - 1

	if m.risk.ExtremeAboveMA > 0 && ext >= m.risk.ExtremeAboveMA {
		a.Signals = append(a.Signals, contracts.RiskSignal{
			Kind:    contracts.TriggerExtreme,
			Action:  contracts.ActionSellNow,
			Message: fmt.Sprintf("EXTREME: %.0f%% above 50-day average", ext*100),
		})
		return
	}
	if m.risk.ExtendedAboveMA > 0 && ext >= m.risk.ExtendedAboveMA {
		a.Signals = append(a.Signals, contracts.RiskSignal{
			Kind:    contracts.TriggerExtended,
			Action:  contracts.ActionHold,
			Message: fmt.Sprintf("EXTENDED: %.0f%% above 50-day average", ext*100),
		})
		if a.Concern == "" {
			a.Concern = "extended above trailing average, tighten watch"
		}
	}
}

// checkStructureBreak declares the chart broken when most of a fixed
// checklist fails at once: closes under the short averages, those
// averages themselves falling, and no rising-lows pattern.
func (m *Machine) checkStructureBreak(s *contracts.EnrichedSeries, a *contracts.Assessment) {
	if m.risk.StructureMinFails <= 0 {
		return
	}

	close := s.LastBar().Close
	ind := s.LastIndicators()

	fails := 0
	if ind.SMA10 > 0 && close < ind.SMA10 {
		fails++
	}
	if ind.SMA20 > 0 && close < ind.SMA20 {
		fails++
	}
	if ind.SMA50 > 0 && close < ind.SMA50 {
		fails++
	}
	if ago, ok := indicatorsAgo(s, 3); ok {
		if ago.SMA10 > 0 && ind.SMA10 < ago.SMA10 {
			fails++
		}
		if ago.SMA20 > 0 && ind.SMA20 < ago.SMA20 {
			fails++
		}
	}
	if !hasRisingLows(s) {
		fails++
	}

	if fails >= m.risk.StructureMinFails {
		a.Signals = append(a.Signals, contracts.RiskSignal{
			Kind:    contracts.TriggerStructureBreak,
			Action:  contracts.ActionSellNow,
			Message: fmt.Sprintf("structure broken: %d/6 checklist failures", fails),
		})
	}
}

// checkGapReversal fires on a green-to-red day: opened above the prior
// close, finished below it.
func (m *Machine) checkGapReversal(s *contracts.EnrichedSeries, a *contracts.Assessment) {
	prev, ok := s.BarAgo(1)
	if !ok {
		return
	}
	last := s.LastBar()
	if last.Open > prev.Close && last.Close < prev.Close {
		a.Signals = append(a.Signals, contracts.RiskSignal{
			Kind:    contracts.TriggerGapReversal,
			Action:  contracts.ActionSellNow,
			Message: fmt.Sprintf("gap-up reversal: opened %.2f above prior close %.2f, closed %.2f", last.Open, prev.Close, last.Close),
		})
	}
}

func phaseForDay(days int) contracts.StopPhase {
	switch {
	case days <= 0:
		return contracts.PhaseDay1
	case days == 1:
		return contracts.PhaseDay2
	default:
		return contracts.PhaseDay3Plus
	}
}

func phaseRank(p contracts.StopPhase) int {
	switch p {
	case contracts.PhaseDay2:
		return 1
	case contracts.PhaseDay3Plus:
		return 2
	default:
		return 0
	}
}

func indicatorsAgo(s *contracts.EnrichedSeries, n int) (contracts.IndicatorRow, bool) {
	idx := len(s.Indicators) - 1 - n
	if idx < 0 {
		return contracts.IndicatorRow{}, false
	}
	return s.Indicators[idx], true
}

// hasRisingLows reports whether the recent swing lows step upward:
// the low of the last 5 bars above the low of the 5 before them.
func hasRisingLows(s *contracts.EnrichedSeries) bool {
	if s.Len() < 10 {
		return true
	}
	recent := lowestLow(s, s.Len()-5, s.Len())
	prior := lowestLow(s, s.Len()-10, s.Len()-5)
	return recent > prior
}

func lowestLow(s *contracts.EnrichedSeries, from, to int) float64 {
	low := math.MaxFloat64
	for i := from; i < to; i++ {
		if s.Bars[i].Low < low {
			low = s.Bars[i].Low
		}
	}
	return low
}
