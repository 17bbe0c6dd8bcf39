package scan

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// DimensionFunc computes one scoring dimension for a series. Scores
// are bounded to [-2, +2]; IsVeto forces the aggregate to the minimum
// tier regardless of the other dimensions.
type DimensionFunc func(s *contracts.EnrichedSeries, regime contracts.RegimeSnapshot) contracts.DimensionScore

// Scorer is the Stage3 quality scorer for one strategy: independent
// dimension scores combined into a star rating via configured weights,
// with dimension-level veto override.
type Scorer struct {
	cfg     *strategyconfig.Config
	dims    map[string]DimensionFunc
	workers int
	logger  *logger.Logger
}

// NewScorer builds the scorer with the dimension set of the config's
// strategy.
func NewScorer(cfg *strategyconfig.Config, workers int, log *logger.Logger) *Scorer {
	if workers < 1 {
		workers = 1
	}
	var dims map[string]DimensionFunc
	switch cfg.Meta.Strategy {
	case contracts.StrategyQM:
		dims = qmDimensions(cfg)
	default:
		dims = sepaDimensions(cfg)
	}
	return &Scorer{cfg: cfg, dims: dims, workers: workers, logger: log}
}

// ScoreAll scores every series across a bounded pool and returns the
// rows sorted descending by rating, ties broken by momentum. Respects
// cancellation between tickers.
func (sc *Scorer) ScoreAll(
	ctx context.Context,
	series []*contracts.EnrichedSeries,
	regime contracts.RegimeSnapshot,
	report func(done, total int, ticker string),
) []contracts.ScoredCandidate {
	scored := make([]contracts.ScoredCandidate, 0, len(series))

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan *contracts.EnrichedSeries)
	done := 0
	total := len(series)

	for i := 0; i < sc.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				row := sc.Score(s, regime)

				mu.Lock()
				scored = append(scored, row)
				done++
				d := done
				mu.Unlock()

				if report != nil {
					report(d, total, s.Ticker)
				}
			}
		}()
	}

feed:
	for _, s := range series {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- s:
		}
	}
	close(jobs)
	wg.Wait()

	Rank(scored)
	return scored
}

// Score computes all dimensions for one series and aggregates them.
func (sc *Scorer) Score(s *contracts.EnrichedSeries, regime contracts.RegimeSnapshot) contracts.ScoredCandidate {
	dims := make(map[string]contracts.DimensionScore, len(sc.dims))
	vetoReason := ""
	for name, fn := range sc.dims {
		d := fn(s, regime)
		dims[name] = d
		if d.IsVeto && vetoReason == "" {
			vetoReason = name + ": " + d.Detail
		}
	}

	momentum := BestMomentum(s, sc.cfg.Gates.MomentumWindows)

	row := contracts.ScoredCandidate{
		Ticker:     s.Ticker,
		Strategy:   sc.cfg.Meta.Strategy,
		Dimensions: dims,
		Momentum:   momentum,
		ScoredAt:   time.Now(),
	}

	if vetoReason != "" {
		// Veto dominates: minimum tier, no weighting.
		row.StarRating = 0
		row.Recommendation = contracts.RecPass
		row.VetoReason = vetoReason
		return row
	}

	row.StarRating = sc.aggregate(dims)
	row.Recommendation = sc.recommend(row.StarRating)
	row.TradePlan = sc.tradePlan(s, row.StarRating)
	return row
}

// aggregate computes base + sum(score * normalizedWeight) * scale,
// clamped to [0, max] and rounded to the nearest half-star. Dimensions
// without a configured weight contribute nothing.
func (sc *Scorer) aggregate(dims map[string]contracts.DimensionScore) float64 {
	weightSum := 0.0
	for _, w := range sc.cfg.Scoring.Weights {
		weightSum += w
	}
	if weightSum <= 0 {
		return 0
	}

	weighted := 0.0
	for name, w := range sc.cfg.Scoring.Weights {
		if d, ok := dims[name]; ok {
			weighted += d.Score * (w / weightSum)
		}
	}

	rating := sc.cfg.Scoring.Base + weighted*sc.cfg.Scoring.Scale
	if rating < 0 {
		rating = 0
	}
	if rating > sc.cfg.Scoring.MaxRating {
		rating = sc.cfg.Scoring.MaxRating
	}
	return RoundHalf(rating)
}

func (sc *Scorer) recommend(rating float64) contracts.Recommendation {
	switch {
	case rating >= sc.cfg.Scoring.StrongBuyMin:
		return contracts.RecStrongBuy
	case rating >= sc.cfg.Scoring.BuyMin:
		return contracts.RecBuy
	case rating >= sc.cfg.Scoring.WatchMin:
		return contracts.RecWatch
	default:
		return contracts.RecPass
	}
}

// tradePlan derives the entry plan: current close as entry, a stop
// under the last bar's low, and the sizing range for the rating. Pure
// arithmetic.
func (sc *Scorer) tradePlan(s *contracts.EnrichedSeries, rating float64) contracts.TradePlan {
	entry := s.LastBar().Close
	stop := s.LastBar().Low * (1 - sc.cfg.Risk.Day1StopBuffer)
	risk := entry - stop

	minPct, maxPct := sc.cfg.SizeForRating(rating)

	plan := contracts.TradePlan{
		Entry:          entry,
		InitialStop:    stop,
		RiskPerShare:   risk,
		PositionMinPct: minPct,
		PositionMaxPct: maxPct,
	}
	if entry > 0 {
		plan.RiskPercent = risk / entry
	}
	return plan
}

// Rank sorts scored rows descending by rating, ties broken by momentum
// strength, then ticker for determinism.
func Rank(rows []contracts.ScoredCandidate) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StarRating != rows[j].StarRating {
			return rows[i].StarRating > rows[j].StarRating
		}
		if rows[i].Momentum != rows[j].Momentum {
			return rows[i].Momentum > rows[j].Momentum
		}
		return rows[i].Ticker < rows[j].Ticker
	})
}

// RoundHalf rounds to the nearest 0.5
func RoundHalf(x float64) float64 {
	return math.Round(x*2) / 2
}
