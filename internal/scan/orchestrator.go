package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// RegimeAssessor produces the shared market environment snapshot taken
// once per combined run.
type RegimeAssessor interface {
	Assess(ctx context.Context) contracts.RegimeSnapshot
}

// Enricher fans a ticker list out to the market data provider and
// returns whatever could be fetched.
type Enricher interface {
	FetchAll(ctx context.Context, tickers []string, lookbackDays int, report func(done, total int, ticker string)) (map[string]*contracts.EnrichedSeries, map[string]contracts.SkipReason)
}

// Options are the orchestrator's run defaults, overridable per scan.
type Options struct {
	LookbackDays int
	TopN         int
	StageTimeout time.Duration
	ScoreWorkers int
}

// Orchestrator drives one combined scan: MARKET_ENV -> STAGE1 (both
// strategies concurrent) -> union -> BATCH_DOWNLOAD -> STAGE2_3 (both
// strategies concurrent over the shared enriched map) -> FINALIZE.
// Price history is downloaded exactly once per ticker per run; a
// failure in one strategy never suppresses the other's results.
type Orchestrator struct {
	regime  RegimeAssessor
	stage1  *Stage1
	fetcher Enricher
	gates   *GateRunner
	sepa    *strategyconfig.Config
	qm      *strategyconfig.Config
	repo    contracts.ScanResultRepository // nil disables persistence
	opts    Options
	logger  *logger.Logger
}

// NewOrchestrator wires the combined scan pipeline
func NewOrchestrator(
	regime RegimeAssessor,
	stage1 *Stage1,
	fetcher Enricher,
	gates *GateRunner,
	sepa, qm *strategyconfig.Config,
	repo contracts.ScanResultRepository,
	opts Options,
	log *logger.Logger,
) *Orchestrator {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 300
	}
	if opts.TopN <= 0 {
		opts.TopN = 20
	}
	if opts.ScoreWorkers <= 0 {
		opts.ScoreWorkers = 4
	}
	return &Orchestrator{
		regime:  regime,
		stage1:  stage1,
		fetcher: fetcher,
		gates:   gates,
		sepa:    sepa,
		qm:      qm,
		repo:    repo,
		opts:    opts,
		logger:  log,
	}
}

// Run executes one combined scan. Cancellation via the scan context's
// token is observed at every stage boundary and between per-ticker
// units inside stages; partial results already computed are returned,
// not discarded. The error return is reserved for the fatal case of no
// candidates from any source.
func (o *Orchestrator) Run(ctx context.Context, params contracts.ScanParams, sc *ScanContext) (*contracts.CombinedResult, error) {
	ctx, unbind := sc.Cancel.Bind(ctx)
	defer unbind()

	lookback := o.opts.LookbackDays
	if params.LookbackDays > 0 {
		lookback = params.LookbackDays
	}
	topN := o.opts.TopN
	if params.TopN > 0 {
		topN = params.TopN
	}

	result := &contracts.CombinedResult{
		StartedAt:   time.Now(),
		StageTiming: make(map[string]time.Duration),
	}
	if hash, err := strategyconfig.HashPair(o.sepa, o.qm); err == nil {
		result.ConfigHash = hash
	}

	o.logger.WithFields(map[string]interface{}{
		"lookback_days": lookback,
		"top_n":         topN,
	}).Info("Starting combined scan")

	// MARKET_ENV: one shared regime assessment for both strategies.
	sc.Progress.Update(StageMarketEnv, 2, "Assessing market regime", "")
	t0 := time.Now()
	snapshot := o.regime.Assess(ctx)
	result.Regime = snapshot
	result.StageTiming[StageMarketEnv] = time.Since(t0)

	sepaRes := &contracts.StrategyResult{Strategy: o.sepa.Meta.Strategy}
	qmRes := &contracts.StrategyResult{Strategy: o.qm.Meta.Strategy}
	result.SEPA = sepaRes
	result.QM = qmRes

	sepaRes.Blocked = o.sepa.Meta.BlockInBear && snapshot.State == contracts.RegimeBear
	qmRes.Blocked = o.qm.Meta.BlockInBear && snapshot.State == contracts.RegimeBear
	if sepaRes.Blocked || qmRes.Blocked {
		o.logger.WithFields(map[string]interface{}{
			"regime":       snapshot.State,
			"sepa_blocked": sepaRes.Blocked,
			"qm_blocked":   qmRes.Blocked,
		}).Warn("Bear market gate active")
	}

	if sc.Cancel.Cancelled() {
		return o.finalize(ctx, result, params, sc), nil
	}

	// STAGE1: both strategies concurrently, then union the outputs so
	// each ticker is downloaded once.
	sc.Progress.Update(StageStage1, 5, "Running coarse universe filters", "")
	t0 = time.Now()
	sepaTickers, qmTickers := o.runStage1Pair(ctx, sepaRes, qmRes, sc)
	union := unionTickers(sepaTickers, qmTickers)
	result.UnionSize = len(union)
	result.StageTiming[StageStage1] = time.Since(t0)

	runnable := (!sepaRes.Blocked && sepaRes.Error == "") || (!qmRes.Blocked && qmRes.Error == "")
	if len(union) == 0 {
		if runnable && !sc.Cancel.Cancelled() {
			return nil, fmt.Errorf("no candidates acquired from any universe source")
		}
		return o.finalize(ctx, result, params, sc), nil
	}

	if sc.Cancel.Cancelled() {
		return o.finalize(ctx, result, params, sc), nil
	}

	// BATCH_DOWNLOAD: one enrichment pass over the union. The map is
	// read-only from here on, shared by both funnels.
	sc.Progress.Update(StageDownload, 15, fmt.Sprintf("Downloading %d tickers", len(union)), "")
	t0 = time.Now()
	stageCtx, cancelStage := o.stageContext(ctx)
	enriched, fetchSkipped := o.fetcher.FetchAll(stageCtx, union, lookback, func(done, total int, ticker string) {
		pct := 15 + 45*float64(done)/float64(total)
		sc.Progress.Update(StageDownload, pct, fmt.Sprintf("Downloaded %d/%d", done, total), ticker)
	})
	cancelStage()
	result.Fetched = len(enriched)
	result.StageTiming[StageDownload] = time.Since(t0)

	if sc.Cancel.Cancelled() {
		return o.finalize(ctx, result, params, sc), nil
	}

	// STAGE2_3: both funnels concurrently over the shared map. Each
	// strategy's failure is captured on its own sub-result.
	sc.Progress.Update(StageStage23, 60, "Running gates and scoring", "")
	t0 = time.Now()
	var wg sync.WaitGroup
	if !sepaRes.Blocked && sepaRes.Error == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.runFunnel(ctx, o.sepa, sepaTickers, enriched, fetchSkipped, snapshot, topN, sepaRes, sc)
		}()
	}
	if !qmRes.Blocked && qmRes.Error == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.runFunnel(ctx, o.qm, qmTickers, enriched, fetchSkipped, snapshot, topN, qmRes, sc)
		}()
	}
	wg.Wait()
	result.StageTiming[StageStage23] = time.Since(t0)

	return o.finalize(ctx, result, params, sc), nil
}

// runStage1Pair runs both strategies' coarse filters as sibling tasks.
// A blocked strategy is skipped; a failed one gets its error captured
// and an empty list.
func (o *Orchestrator) runStage1Pair(ctx context.Context, sepaRes, qmRes *contracts.StrategyResult, sc *ScanContext) (sepaTickers, qmTickers []string) {
	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	var wg sync.WaitGroup
	run := func(cfg *strategyconfig.Config, res *contracts.StrategyResult, out *[]string) {
		defer wg.Done()
		if res.Blocked {
			return
		}
		tickers, err := o.stage1.Run(stageCtx, cfg, sc)
		if err != nil {
			res.Error = err.Error()
			return
		}
		*out = tickers
		res.Stage1Size = len(tickers)
	}

	wg.Add(2)
	go run(o.sepa, sepaRes, &sepaTickers)
	go run(o.qm, qmRes, &qmTickers)
	wg.Wait()
	return sepaTickers, qmTickers
}

// runFunnel executes one strategy's Stage2->Stage3 over the shared
// enriched map. Panics are converted to a per-strategy error so the
// sibling funnel is unaffected.
func (o *Orchestrator) runFunnel(
	ctx context.Context,
	cfg *strategyconfig.Config,
	stage1Tickers []string,
	enriched map[string]*contracts.EnrichedSeries,
	fetchSkipped map[string]contracts.SkipReason,
	snapshot contracts.RegimeSnapshot,
	topN int,
	res *contracts.StrategyResult,
	sc *ScanContext,
) {
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("stage2/3 failure: %v", r)
			o.logger.WithField("strategy", cfg.Meta.Strategy).Errorf("Funnel panicked: %v", r)
		}
	}()

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	res.Skipped = make(map[string]contracts.SkipReason)
	candidates := make([]contracts.Candidate, 0, len(stage1Tickers))
	for _, t := range stage1Tickers {
		s, ok := enriched[t]
		if !ok {
			if reason, recorded := fetchSkipped[t]; recorded {
				res.Skipped[t] = reason
			} else {
				res.Skipped[t] = contracts.SkipFetchFailed
			}
			continue
		}
		candidates = append(candidates, contracts.Candidate{
			Ticker: t,
			Series: s,
			Stage1: contracts.Stage1Metrics{
				Price:     s.LastBar().Close,
				AvgVolume: avgVolume(s, 20),
			},
		})
	}

	gateResults, gateSkipped := o.gates.Run(stageCtx, cfg.Gates, candidates, func(done, total int, ticker string) {
		pct := 60 + 15*float64(done)/float64(total)
		sc.Progress.Update(StageStage23, pct, fmt.Sprintf("%s gates %d/%d", cfg.Meta.Strategy, done, total), ticker)
	})
	for t, reason := range gateSkipped {
		res.Skipped[t] = reason
	}

	survivors := make([]*contracts.EnrichedSeries, 0, len(gateResults))
	for _, gr := range gateResults {
		if gr.Passed {
			survivors = append(survivors, enriched[gr.Ticker])
		} else {
			res.Skipped[gr.Ticker] = contracts.SkipGateFailed
		}
	}
	res.GateSize = len(survivors)

	scorer := NewScorer(cfg, o.opts.ScoreWorkers, o.logger)
	scored := scorer.ScoreAll(stageCtx, survivors, snapshot, func(done, total int, ticker string) {
		pct := 75 + 20*float64(done)/float64(total)
		sc.Progress.Update(StageStage23, pct, fmt.Sprintf("%s scoring %d/%d", cfg.Meta.Strategy, done, total), ticker)
	})

	res.AllScored = scored
	for _, row := range scored {
		if row.Recommendation == contracts.RecPass {
			continue
		}
		res.Passed = append(res.Passed, row)
		if len(res.Passed) >= topN {
			break
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"strategy": cfg.Meta.Strategy,
		"stage1":   res.Stage1Size,
		"gates":    res.GateSize,
		"passed":   len(res.Passed),
	}).Info("Strategy funnel completed")
}

// finalize stamps the result, persists it when requested, and marks
// the progress terminal.
func (o *Orchestrator) finalize(ctx context.Context, result *contracts.CombinedResult, params contracts.ScanParams, sc *ScanContext) *contracts.CombinedResult {
	sc.Progress.Update(StageFinalize, 96, "Finalizing results", "")
	t0 := time.Now()

	result.FinishedAt = time.Now()

	if o.repo != nil && params.Persist {
		if err := o.repo.SaveResult(ctx, result); err != nil {
			o.logger.WithError(err).Warn("Failed to persist scan result")
		}
	}

	result.StageTiming[StageFinalize] = time.Since(t0)
	sc.Progress.Update(StageFinalize, 100, "Scan complete", "")

	o.logger.WithFields(map[string]interface{}{
		"union":    result.UnionSize,
		"fetched":  result.Fetched,
		"duration": result.FinishedAt.Sub(result.StartedAt).Seconds(),
	}).Info("Combined scan completed")

	return result
}

// stageContext bounds one stage by the configured wall-clock timeout.
func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.StageTimeout > 0 {
		return context.WithTimeout(ctx, o.opts.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// unionTickers merges two ticker lists preserving first-seen order.
func unionTickers(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func avgVolume(s *contracts.EnrichedSeries, n int) int64 {
	if s.Len() == 0 {
		return 0
	}
	if n > s.Len() {
		n = s.Len()
	}
	var sum int64
	for i := s.Len() - n; i < s.Len(); i++ {
		sum += s.Bars[i].Volume
	}
	return sum / int64(n)
}
