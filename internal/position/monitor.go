package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/logger"
)

const (
	recentRingSize = 50
	dedupWindow    = time.Hour
)

// Monitor runs the risk state machine over every open position on an
// interval, delivering actionable assessments to a notifier. Duplicate
// signals for the same ticker/action inside the dedup window are
// suppressed.
type Monitor struct {
	machine  *Machine
	provider contracts.MarketDataProvider
	repo     contracts.PositionRepository // nil keeps positions in memory only
	notifier contracts.ExitNotifier
	interval time.Duration
	lookback int
	logger   *logger.Logger

	positions map[string]*contracts.Position
	recent    []*contracts.Assessment
	notified  map[string]time.Time
	mu        sync.RWMutex
	stopCh    chan struct{}
	running   bool
}

// NewMonitor creates a monitor over the given data provider
func NewMonitor(
	machine *Machine,
	provider contracts.MarketDataProvider,
	repo contracts.PositionRepository,
	interval time.Duration,
	lookbackDays int,
	log *logger.Logger,
) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lookbackDays <= 0 {
		lookbackDays = 300
	}
	return &Monitor{
		machine:   machine,
		provider:  provider,
		repo:      repo,
		interval:  interval,
		lookback:  lookbackDays,
		logger:    log,
		positions: make(map[string]*contracts.Position),
		recent:    make([]*contracts.Assessment, 0, recentRingSize),
		notified:  make(map[string]time.Time),
		stopCh:    make(chan struct{}),
	}
}

// SetNotifier attaches the delivery channel for assessments
func (m *Monitor) SetNotifier(n contracts.ExitNotifier) {
	m.notifier = n
}

// AddPosition registers a position for monitoring. Defaults are filled
// the way a fresh entry looks: full size remaining, entry-day stop.
func (m *Monitor) AddPosition(ctx context.Context, pos *contracts.Position) error {
	if pos.RemainingShares == 0 {
		pos.RemainingShares = pos.Shares
	}
	if pos.StopPhase == "" {
		pos.StopPhase = contracts.PhaseDay1
	}
	if pos.CurrentStop == 0 {
		pos.CurrentStop = pos.InitialStop
	}
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = time.Now()
	}

	m.mu.Lock()
	m.positions[pos.Ticker] = pos
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.SavePosition(ctx, pos); err != nil {
			return fmt.Errorf("save position %s: %w", pos.Ticker, err)
		}
	}

	m.logger.WithFields(map[string]interface{}{
		"ticker":       pos.Ticker,
		"entry_price":  pos.EntryPrice,
		"shares":       pos.Shares,
		"initial_stop": pos.InitialStop,
		"rating":       pos.Rating,
	}).Info("Position added for monitoring")

	return nil
}

// RemovePosition drops a ticker from monitoring
func (m *Monitor) RemovePosition(ticker string) {
	m.mu.Lock()
	delete(m.positions, ticker)
	m.mu.Unlock()
	m.logger.WithField("ticker", ticker).Info("Position removed from monitoring")
}

// Positions returns the currently monitored positions
func (m *Monitor) Positions() []*contracts.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*contracts.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}

// RecentAssessments returns up to limit assessments, newest first.
func (m *Monitor) RecentAssessments(limit int) []*contracts.Assessment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([]*contracts.Assessment, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.recent[len(m.recent)-1-i]
	}
	return out
}

// CheckAll assesses every monitored position. A per-ticker fetch
// failure skips that position and never aborts the sweep.
func (m *Monitor) CheckAll(ctx context.Context) []*contracts.Assessment {
	m.mu.RLock()
	positions := make([]*contracts.Position, 0, len(m.positions))
	for _, p := range m.positions {
		positions = append(positions, p)
	}
	m.mu.RUnlock()

	var assessments []*contracts.Assessment
	for _, pos := range positions {
		series, err := m.provider.FetchEnriched(ctx, pos.Ticker, m.lookback)
		if err != nil {
			m.logger.WithFields(map[string]interface{}{
				"ticker": pos.Ticker,
				"error":  err.Error(),
			}).Warn("Position check skipped, fetch failed")
			continue
		}
		if series.Len() == 0 {
			continue
		}

		a := m.machine.Assess(pos, series)
		assessments = append(assessments, a)

		if a.Action != contracts.ActionHold {
			m.logger.WithFields(map[string]interface{}{
				"ticker":     a.Ticker,
				"phase":      a.Phase,
				"action":     a.Action,
				"stop":       a.Stop,
				"r_multiple": a.RMultiple,
			}).Info("Risk signal generated")
		}

		m.handleAssessment(ctx, pos, a)
	}
	return assessments
}

// handleAssessment records the assessment, delivers it once per dedup
// window, and applies the recommended position change.
func (m *Monitor) handleAssessment(ctx context.Context, pos *contracts.Position, a *contracts.Assessment) {
	m.mu.Lock()
	if len(m.recent) >= recentRingSize {
		m.recent = m.recent[1:]
	}
	m.recent = append(m.recent, a)

	notify := false
	if a.Action != contracts.ActionHold {
		key := a.Ticker + "/" + string(a.Action)
		if last, ok := m.notified[key]; !ok || time.Since(last) >= dedupWindow {
			m.notified[key] = time.Now()
			notify = true
		}
	}
	m.mu.Unlock()

	if notify && m.notifier != nil {
		if err := m.notifier.NotifyAssessment(ctx, a); err != nil {
			m.logger.WithFields(map[string]interface{}{
				"ticker": a.Ticker,
				"error":  err.Error(),
			}).Error("Failed to deliver assessment")
		}
	}

	m.applyAction(ctx, pos, a)
}

func (m *Monitor) applyAction(ctx context.Context, pos *contracts.Position, a *contracts.Assessment) {
	switch a.Action {
	case contracts.ActionTakePartial:
		for _, sig := range a.Signals {
			if sig.Kind == contracts.TriggerPartialProfit {
				pos.RemainingShares -= sig.SellShares
				break
			}
		}
		if pos.RemainingShares <= 0 {
			m.closePosition(ctx, pos)
			return
		}
		m.persist(ctx, pos)

	case contracts.ActionStopHit, contracts.ActionSellAll, contracts.ActionSellNow:
		m.closePosition(ctx, pos)

	default:
		m.persist(ctx, pos)
	}
}

func (m *Monitor) closePosition(ctx context.Context, pos *contracts.Position) {
	now := time.Now()
	pos.ClosedAt = &now

	m.mu.Lock()
	delete(m.positions, pos.Ticker)
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.ClosePosition(ctx, pos.ID, now); err != nil {
			m.logger.WithFields(map[string]interface{}{
				"ticker": pos.Ticker,
				"error":  err.Error(),
			}).Error("Failed to close position")
		}
	}

	m.logger.WithFields(map[string]interface{}{
		"ticker": pos.Ticker,
		"shares": pos.RemainingShares,
	}).Info("Position closed")
}

func (m *Monitor) persist(ctx context.Context, pos *contracts.Position) {
	if m.repo == nil {
		return
	}
	if err := m.repo.UpdatePosition(ctx, pos); err != nil {
		m.logger.WithFields(map[string]interface{}{
			"ticker": pos.Ticker,
			"error":  err.Error(),
		}).Warn("Failed to persist position update")
	}
}

// Start launches the background sweep loop
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.mu.Unlock()

	// Reload open positions so a restart does not drop coverage.
	if m.repo != nil {
		open, err := m.repo.ListOpen(ctx)
		if err != nil {
			m.logger.WithError(err).Warn("Failed to reload open positions")
		} else {
			m.mu.Lock()
			for _, p := range open {
				m.positions[p.Ticker] = p
			}
			m.mu.Unlock()
		}
	}

	m.logger.WithFields(map[string]interface{}{
		"interval":  m.interval.String(),
		"positions": len(m.Positions()),
	}).Info("Starting position monitor")

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.setRunning(false)
				m.logger.Info("Position monitor stopped: context cancelled")
				return
			case <-m.stopCh:
				m.setRunning(false)
				m.logger.Info("Position monitor stopped")
				return
			case <-ticker.C:
				m.CheckAll(ctx)
			}
		}
	}()

	return nil
}

// Stop halts the background loop
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		close(m.stopCh)
		m.running = false
	}
}

// IsRunning reports whether the sweep loop is active
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}
