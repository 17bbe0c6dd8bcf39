package scan

import (
	"context"
	"fmt"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// Stage1 runs the coarse universe filter for one strategy: simple
// price/volume criteria against a universe provider with fallback
// ordering. Output is a deduplicated ticker list.
type Stage1 struct {
	provider contracts.UniverseProvider
	logger   *logger.Logger
}

// NewStage1 creates the coarse filter over the given provider
func NewStage1(provider contracts.UniverseProvider, log *logger.Logger) *Stage1 {
	return &Stage1{provider: provider, logger: log}
}

// Run queries the universe with the strategy's Stage1 criteria. The
// provider chain handles fallback, so an error here means every source
// failed.
func (s *Stage1) Run(ctx context.Context, cfg *strategyconfig.Config, sc *ScanContext) ([]string, error) {
	if sc.Cancel.Cancelled() {
		return nil, ctx.Err()
	}

	criteria := contracts.UniverseCriteria{
		MinPrice:     cfg.Stage1.MinPrice,
		MinAvgVolume: cfg.Stage1.MinAvgVolume,
		Exchanges:    cfg.Stage1.Exchanges,
		Limit:        cfg.Stage1.Limit,
	}

	tickers, err := s.provider.Query(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("stage1 universe query (%s): %w", cfg.Meta.Strategy, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"strategy": cfg.Meta.Strategy,
		"tickers":  len(tickers),
		"source":   s.provider.Name(),
	}).Info("Stage1 completed")

	return tickers, nil
}
