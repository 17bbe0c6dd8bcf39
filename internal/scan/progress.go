package scan

import (
	"context"
	"sync"

	"github.com/wonny/vantage/backend/internal/contracts"
)

// Stage names reported through the progress tracker and used as keys
// in the combined result's timing breakdown.
const (
	StageMarketEnv = "market_env"
	StageStage1    = "stage1"
	StageDownload  = "batch_download"
	StageStage23   = "stage2_3"
	StageFinalize  = "finalize"
)

// Tracker is the mutable progress snapshot of one scan run. Written by
// the owning worker, read concurrently by status pollers.
type Tracker struct {
	mu       sync.RWMutex
	snapshot contracts.ProgressSnapshot
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update overwrites the snapshot atomically
func (t *Tracker) Update(stage string, percent float64, message, ticker string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = contracts.ProgressSnapshot{
		Stage:   stage,
		Percent: percent,
		Message: message,
		Ticker:  ticker,
	}
}

// Snapshot returns a consistent copy of the current progress
func (t *Tracker) Snapshot() contracts.ProgressSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// CancelToken is an idempotent, monotonic cancellation signal. Once
// fired it cannot be unset. Stages check it before starting new work;
// in-flight per-ticker units are allowed to complete.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

// NewCancelToken creates an unfired token
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel fires the token. Safe to call multiple times.
func (c *CancelToken) Cancel() {
	c.once.Do(func() { close(c.ch) })
}

// Cancelled reports whether the token has fired
func (c *CancelToken) Cancelled() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token fires
func (c *CancelToken) Done() <-chan struct{} {
	return c.ch
}

// Bind derives a context that is cancelled when either the parent is
// cancelled or the token fires. The returned CancelFunc must be called
// to release the watcher goroutine.
func (c *CancelToken) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-c.ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ScanContext bundles the per-job progress tracker and cancellation
// token. One instance per scan job, passed explicitly into every stage
// so that concurrent jobs never share state.
type ScanContext struct {
	Progress *Tracker
	Cancel   *CancelToken
}

// NewScanContext creates a fresh job-scoped context
func NewScanContext() *ScanContext {
	return &ScanContext{
		Progress: NewTracker(),
		Cancel:   NewCancelToken(),
	}
}
