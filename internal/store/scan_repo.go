package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vantage/backend/internal/contracts"
)

// ScanRepository persists completed scan result sets. One header row
// per run, one row per scored candidate, so historical trend queries
// can be keyed by ticker and date.
type ScanRepository struct {
	pool *pgxpool.Pool
}

// NewScanRepository creates a scan result repository
func NewScanRepository(pool *pgxpool.Pool) *ScanRepository {
	return &ScanRepository{pool: pool}
}

// SaveResult writes one combined run and all of its scored rows in a
// single transaction.
func (r *ScanRepository) SaveResult(ctx context.Context, result *contracts.CombinedResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	regimeJSON, err := json.Marshal(result.Regime)
	if err != nil {
		return fmt.Errorf("failed to marshal regime: %w", err)
	}

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO scans.runs (
			started_at, finished_at, regime, union_size, fetched, config_hash
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, result.StartedAt, result.FinishedAt, regimeJSON, result.UnionSize, result.Fetched, result.ConfigHash).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}

	for _, strat := range []*contracts.StrategyResult{result.SEPA, result.QM} {
		if strat == nil {
			continue
		}
		if err := r.insertStrategyRows(ctx, tx, runID, result.FinishedAt, strat); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertStrategyRows writes every scored candidate of one strategy.
func (r *ScanRepository) insertStrategyRows(ctx context.Context, tx pgx.Tx, runID int64, scanDate time.Time, strat *contracts.StrategyResult) error {
	query := `
		INSERT INTO scans.candidates (
			run_id, scan_date, ticker, strategy, star_rating,
			recommendation, veto_reason, momentum, dimensions, trade_plan, passed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	passedSet := make(map[string]struct{}, len(strat.Passed))
	for _, row := range strat.Passed {
		passedSet[row.Ticker] = struct{}{}
	}

	for _, row := range strat.AllScored {
		dimsJSON, err := json.Marshal(row.Dimensions)
		if err != nil {
			return fmt.Errorf("failed to marshal dimensions for %s: %w", row.Ticker, err)
		}
		planJSON, err := json.Marshal(row.TradePlan)
		if err != nil {
			return fmt.Errorf("failed to marshal trade plan for %s: %w", row.Ticker, err)
		}
		_, inPassed := passedSet[row.Ticker]

		_, err = tx.Exec(ctx, query,
			runID, scanDate, row.Ticker, row.Strategy, row.StarRating,
			row.Recommendation, row.VetoReason, row.Momentum, dimsJSON, planJSON, inPassed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", row.Ticker, err)
		}
	}
	return nil
}

// GetByTicker retrieves a ticker's scored rows across runs in a date
// range, newest first.
func (r *ScanRepository) GetByTicker(ctx context.Context, ticker string, from, to time.Time) ([]contracts.ScoredCandidate, error) {
	query := `
		SELECT ticker, strategy, star_rating, recommendation,
		       veto_reason, momentum, dimensions, trade_plan, scan_date
		FROM scans.candidates
		WHERE ticker = $1 AND scan_date BETWEEN $2 AND $3
		ORDER BY scan_date DESC
	`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.ScoredCandidate, 0)
	for rows.Next() {
		var row contracts.ScoredCandidate
		var dimsJSON, planJSON []byte
		err := rows.Scan(
			&row.Ticker, &row.Strategy, &row.StarRating, &row.Recommendation,
			&row.VetoReason, &row.Momentum, &dimsJSON, &planJSON, &row.ScoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(dimsJSON, &row.Dimensions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dimensions: %w", err)
		}
		if err := json.Unmarshal(planJSON, &row.TradePlan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade plan: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}
