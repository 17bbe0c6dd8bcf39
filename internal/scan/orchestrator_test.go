package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

type fakeRegime struct {
	state contracts.Regime
}

func (f *fakeRegime) Assess(_ context.Context) contracts.RegimeSnapshot {
	return contracts.RegimeSnapshot{
		State:      f.state,
		Benchmark:  "^GSPC",
		AssessedAt: time.Now(),
	}
}

// fakeUniverse keys its answer off the criteria's MinPrice so the two
// strategies, which carry different Stage1 thresholds, get different
// candidate lists from the same provider.
type fakeUniverse struct {
	byMinPrice map[float64][]string
	errFor     float64
}

func (f *fakeUniverse) Name() string { return "fake_universe" }

func (f *fakeUniverse) Query(_ context.Context, criteria contracts.UniverseCriteria) ([]string, error) {
	if f.errFor != 0 && criteria.MinPrice == f.errFor {
		return nil, errors.New("universe provider down")
	}
	return f.byMinPrice[criteria.MinPrice], nil
}

// fakeEnricher serves strong uptrend series and records every ticker
// requested across all calls.
type fakeEnricher struct {
	mu       sync.Mutex
	calls    int
	requests []string
	block    chan struct{} // optional: hold FetchAll until closed
}

func (f *fakeEnricher) FetchAll(ctx context.Context, tickers []string, lookbackDays int, report func(done, total int, ticker string)) (map[string]*contracts.EnrichedSeries, map[string]contracts.SkipReason) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, tickers...)
	f.mu.Unlock()

	out := make(map[string]*contracts.EnrichedSeries, len(tickers))
	for i, t := range tickers {
		out[t] = rampSeries(t, 260, 50, 100, 0.05, 1_000_000)
		if report != nil {
			report(i+1, len(tickers), t)
		}
	}
	return out, map[string]contracts.SkipReason{}
}

func newTestOrchestrator(reg RegimeAssessor, uni contracts.UniverseProvider, enr Enricher) *Orchestrator {
	log := logger.NewNop()
	return NewOrchestrator(
		reg,
		NewStage1(uni, log),
		enr,
		NewGateRunner(2, log),
		strategyconfig.DefaultSEPA(),
		strategyconfig.DefaultQM(),
		nil,
		Options{TopN: 10, ScoreWorkers: 2},
		log,
	)
}

func TestRun_BearRegimeBlocksOnlyOptedInStrategy(t *testing.T) {
	uni := &fakeUniverse{byMinPrice: map[float64][]string{
		10: {"AAA", "BBB"}, // SEPA criteria
		5:  {"BBB", "CCC"}, // QM criteria
	}}
	enr := &fakeEnricher{}
	orch := newTestOrchestrator(&fakeRegime{state: contracts.RegimeBear}, uni, enr)

	result, err := orch.Run(context.Background(), contracts.ScanParams{}, NewScanContext())
	require.NoError(t, err)

	assert.True(t, result.QM.Blocked)
	assert.Empty(t, result.QM.AllScored)
	assert.False(t, result.SEPA.Blocked)
	assert.NotEmpty(t, result.SEPA.Passed, "SEPA must be unaffected by QM's bear gate")
}

func TestRun_UnionDownloadedExactlyOnce(t *testing.T) {
	uni := &fakeUniverse{byMinPrice: map[float64][]string{
		10: {"AAA", "BBB"},
		5:  {"BBB", "CCC"},
	}}
	enr := &fakeEnricher{}
	orch := newTestOrchestrator(&fakeRegime{state: contracts.RegimeBull}, uni, enr)

	result, err := orch.Run(context.Background(), contracts.ScanParams{}, NewScanContext())
	require.NoError(t, err)

	assert.Equal(t, 3, result.UnionSize)
	assert.GreaterOrEqual(t, result.UnionSize, result.SEPA.Stage1Size)
	assert.GreaterOrEqual(t, result.UnionSize, result.QM.Stage1Size)

	assert.Equal(t, 1, enr.calls, "one batch download per combined run")
	seen := make(map[string]int)
	for _, tk := range enr.requests {
		seen[tk]++
	}
	for tk, n := range seen {
		assert.Equal(t, 1, n, "ticker %s enriched more than once", tk)
	}
}

func TestRun_StrategyErrorIsolated(t *testing.T) {
	uni := &fakeUniverse{
		byMinPrice: map[float64][]string{10: {"AAA", "BBB"}},
		errFor:     5, // QM's Stage1 criteria fail
	}
	enr := &fakeEnricher{}
	orch := newTestOrchestrator(&fakeRegime{state: contracts.RegimeBull}, uni, enr)

	result, err := orch.Run(context.Background(), contracts.ScanParams{}, NewScanContext())
	require.NoError(t, err)

	assert.NotEmpty(t, result.QM.Error)
	assert.Empty(t, result.QM.AllScored)
	assert.Empty(t, result.SEPA.Error)
	assert.NotEmpty(t, result.SEPA.AllScored)
}

func TestRun_NoCandidatesAnywhereIsFatal(t *testing.T) {
	uni := &fakeUniverse{byMinPrice: map[float64][]string{}}
	enr := &fakeEnricher{}
	orch := newTestOrchestrator(&fakeRegime{state: contracts.RegimeBull}, uni, enr)

	_, err := orch.Run(context.Background(), contracts.ScanParams{}, NewScanContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestRun_PreCancelledReturnsPartialNotError(t *testing.T) {
	uni := &fakeUniverse{byMinPrice: map[float64][]string{
		10: {"AAA"},
		5:  {"AAA"},
	}}
	enr := &fakeEnricher{}
	orch := newTestOrchestrator(&fakeRegime{state: contracts.RegimeBull}, uni, enr)

	sc := NewScanContext()
	sc.Cancel.Cancel()

	result, err := orch.Run(context.Background(), contracts.ScanParams{}, sc)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Zero(t, enr.calls, "no download may start after cancellation")
	assert.Equal(t, 100.0, sc.Progress.Snapshot().Percent)
}

func TestRun_RecordsTimingAndConfigHash(t *testing.T) {
	uni := &fakeUniverse{byMinPrice: map[float64][]string{
		10: {"AAA"},
		5:  {"AAA"},
	}}
	enr := &fakeEnricher{}
	orch := newTestOrchestrator(&fakeRegime{state: contracts.RegimeBull}, uni, enr)

	result, err := orch.Run(context.Background(), contracts.ScanParams{}, NewScanContext())
	require.NoError(t, err)

	assert.NotEmpty(t, result.ConfigHash)
	for _, stage := range []string{StageMarketEnv, StageStage1, StageDownload, StageStage23, StageFinalize} {
		_, ok := result.StageTiming[stage]
		assert.True(t, ok, "missing timing for %s", stage)
	}
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestUnionTickers(t *testing.T) {
	union := unionTickers([]string{"A", "B"}, []string{"B", "C", "A"})
	assert.Equal(t, []string{"A", "B", "C"}, union)

	assert.GreaterOrEqual(t, len(union), 2)
	assert.Empty(t, unionTickers(nil, nil))
}
