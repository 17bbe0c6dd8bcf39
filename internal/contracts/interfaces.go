package contracts

import (
	"context"
	"time"
)

// MarketDataProvider returns an enriched daily series for one ticker.
// Safe for concurrent use; a failure affects only that ticker.
type MarketDataProvider interface {
	FetchEnriched(ctx context.Context, ticker string, lookbackDays int) (*EnrichedSeries, error)
}

// UniverseCriteria are the coarse Stage1 filter knobs.
type UniverseCriteria struct {
	MinPrice     float64
	MinAvgVolume int64
	Exchanges    []string // empty = all US exchanges
	Limit        int
}

// UniverseProvider queries a ticker universe. Implementations may be
// chained with fallback ordering.
type UniverseProvider interface {
	Name() string
	Query(ctx context.Context, criteria UniverseCriteria) ([]string, error)
}

// ScanResultRepository persists completed scan result sets for
// historical trend queries keyed by ticker and date.
type ScanResultRepository interface {
	SaveResult(ctx context.Context, result *CombinedResult) error
	GetByTicker(ctx context.Context, ticker string, from, to time.Time) ([]ScoredCandidate, error)
}

// PositionRepository persists open and closed positions.
type PositionRepository interface {
	SavePosition(ctx context.Context, pos *Position) error
	UpdatePosition(ctx context.Context, pos *Position) error
	ClosePosition(ctx context.Context, id int64, closedAt time.Time) error
	ListOpen(ctx context.Context) ([]*Position, error)
}

// ExitNotifier delivers position risk signals to an external channel.
type ExitNotifier interface {
	NotifyAssessment(ctx context.Context, a *Assessment) error
}
