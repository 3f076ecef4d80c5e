package postgres

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINTS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PointsRepository implements points.Repository for PostgreSQL.
type PointsRepository struct {
	q Querier
}

var _ points.Repository = (*PointsRepository)(nil)

// Get returns a user's accumulator. Missing row yields shared.ErrPointsNotFound.
func (r *PointsRepository) Get(ctx context.Context, userID shared.UserID) (*points.UserPoints, error) {
	query := `
		SELECT user_id, balance, lifetime_earned, updated_at
		FROM user_points
		WHERE user_id = $1
	`

	var (
		up    points.UserPoints
		rawID string
	)
	err := r.q.QueryRow(ctx, query, userID.String()).Scan(&rawID, &up.Balance, &up.LifetimeEarned, &up.LastUpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("points", "Get", shared.ErrNotFound, "no points for user", shared.ErrPointsNotFound)
		}
		return nil, mapError("points", "Get", err)
	}

	up.UserID = shared.UserID(rawID)
	return &up, nil
}

// Save upserts a user's accumulator.
func (r *PointsRepository) Save(ctx context.Context, p *points.UserPoints) error {
	query := `
		INSERT INTO user_points (user_id, balance, lifetime_earned, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = EXCLUDED.balance,
		    lifetime_earned = EXCLUDED.lifetime_earned,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query, p.UserID.String(), p.Balance, p.LifetimeEarned, p.LastUpdatedAt)
	if err != nil {
		return mapError("points", "Save", err)
	}
	return nil
}

// AllBalances returns every accumulator ordered by balance descending.
func (r *PointsRepository) AllBalances(ctx context.Context) ([]*points.UserPoints, error) {
	query := `
		SELECT user_id, balance, lifetime_earned, updated_at
		FROM user_points
		ORDER BY balance DESC, user_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, mapError("points", "AllBalances", err)
	}
	defer rows.Close()

	var out []*points.UserPoints
	for rows.Next() {
		var (
			up    points.UserPoints
			rawID string
		)
		if err := rows.Scan(&rawID, &up.Balance, &up.LifetimeEarned, &up.LastUpdatedAt); err != nil {
			return nil, mapError("points", "AllBalances", err)
		}
		up.UserID = shared.UserID(rawID)
		out = append(out, &up)
	}
	return out, rows.Err()
}

// DeleteAll wipes the accumulator table (replay support).
func (r *PointsRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, "DELETE FROM user_points"); err != nil {
		return mapError("points", "DeleteAll", err)
	}
	return nil
}
