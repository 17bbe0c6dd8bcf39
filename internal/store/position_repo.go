package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vantage/backend/internal/contracts"
)

// PositionRepo persists open and closed positions.
type PositionRepo struct {
	pool *pgxpool.Pool
}

// NewPositionRepo creates a position repository
func NewPositionRepo(pool *pgxpool.Pool) *PositionRepo {
	return &PositionRepo{pool: pool}
}

// SavePosition inserts a new position and fills its generated id
func (r *PositionRepo) SavePosition(ctx context.Context, pos *contracts.Position) error {
	query := `
		INSERT INTO positions.open_positions (
			ticker, strategy, entry_price, entry_date, entry_day_low,
			shares, remaining_shares, rating, initial_stop, current_stop,
			stop_phase, partial_taken, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		pos.Ticker, pos.Strategy, pos.EntryPrice, pos.EntryDate, pos.EntryDayLow,
		pos.Shares, pos.RemainingShares, pos.Rating, pos.InitialStop, pos.CurrentStop,
		pos.StopPhase, pos.PartialTaken, pos.OpenedAt,
	).Scan(&pos.ID)
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", pos.Ticker, err)
	}
	return nil
}

// UpdatePosition writes the mutable risk state of a position
func (r *PositionRepo) UpdatePosition(ctx context.Context, pos *contracts.Position) error {
	query := `
		UPDATE positions.open_positions SET
			remaining_shares = $2,
			current_stop = $3,
			stop_phase = $4,
			partial_taken = $5
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		pos.ID, pos.RemainingShares, pos.CurrentStop, pos.StopPhase, pos.PartialTaken,
	)
	if err != nil {
		return fmt.Errorf("failed to update position %d: %w", pos.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d not found", pos.ID)
	}
	return nil
}

// ClosePosition moves a position to the closed log
func (r *PositionRepo) ClosePosition(ctx context.Context, id int64, closedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO positions.closed_positions
		SELECT *, $2 AS closed_at FROM positions.open_positions WHERE id = $1
	`, id, closedAt)
	if err != nil {
		return fmt.Errorf("failed to archive position %d: %w", id, err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM positions.open_positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d not found", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListOpen returns every open position
func (r *PositionRepo) ListOpen(ctx context.Context) ([]*contracts.Position, error) {
	query := `
		SELECT id, ticker, strategy, entry_price, entry_date, entry_day_low,
		       shares, remaining_shares, rating, initial_stop, current_stop,
		       stop_phase, partial_taken, opened_at
		FROM positions.open_positions
		ORDER BY opened_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*contracts.Position, 0)
	for rows.Next() {
		var p contracts.Position
		err := rows.Scan(
			&p.ID, &p.Ticker, &p.Strategy, &p.EntryPrice, &p.EntryDate, &p.EntryDayLow,
			&p.Shares, &p.RemainingShares, &p.Rating, &p.InitialStop, &p.CurrentStop,
			&p.StopPhase, &p.PartialTaken, &p.OpenedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return positions, nil
}
