package postgres

import (
	"context"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	q Querier
}

var _ streak.Repository = (*StreakRepository)(nil)

// Get returns one streak. Missing row yields shared.ErrStreakNotFound.
func (r *StreakRepository) Get(ctx context.Context, userID shared.UserID, typeID string) (*streak.UserStreak, error) {
	query := `
		SELECT user_id, streak_type, current_length, longest_length, last_counted_date, updated_at
		FROM user_streaks
		WHERE user_id = $1 AND streak_type = $2
	`

	s, err := r.scanStreak(r.q.QueryRow(ctx, query, userID.String(), typeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("streak", "Get", shared.ErrNotFound, "no streak for user", shared.ErrStreakNotFound)
		}
		return nil, mapError("streak", "Get", err)
	}
	return s, nil
}

// ListByUser returns all of a user's streaks.
func (r *StreakRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*streak.UserStreak, error) {
	query := `
		SELECT user_id, streak_type, current_length, longest_length, last_counted_date, updated_at
		FROM user_streaks
		WHERE user_id = $1
		ORDER BY streak_type
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, mapError("streak", "ListByUser", err)
	}
	defer rows.Close()

	var out []*streak.UserStreak
	for rows.Next() {
		s, err := r.scanStreak(rows)
		if err != nil {
			return nil, mapError("streak", "ListByUser", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Save upserts a streak.
func (r *StreakRepository) Save(ctx context.Context, s *streak.UserStreak) error {
	query := `
		INSERT INTO user_streaks (user_id, streak_type, current_length, longest_length, last_counted_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, streak_type) DO UPDATE
		SET current_length = EXCLUDED.current_length,
		    longest_length = EXCLUDED.longest_length,
		    last_counted_date = EXCLUDED.last_counted_date,
		    updated_at = EXCLUDED.updated_at
	`

	var lastCounted *time.Time
	if !s.LastCountedDate.IsZero() {
		lastCounted = &s.LastCountedDate
	}

	_, err := r.q.Exec(ctx, query,
		s.UserID.String(),
		s.TypeID,
		s.CurrentLength,
		s.LongestLength,
		lastCounted,
		s.UpdatedAt,
	)
	if err != nil {
		return mapError("streak", "Save", err)
	}
	return nil
}

// DeleteAll wipes the streak table (replay support).
func (r *StreakRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, "DELETE FROM user_streaks"); err != nil {
		return mapError("streak", "DeleteAll", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *StreakRepository) scanStreak(row rowScanner) (*streak.UserStreak, error) {
	var (
		s           streak.UserStreak
		rawID       string
		lastCounted *time.Time
	)
	if err := row.Scan(&rawID, &s.TypeID, &s.CurrentLength, &s.LongestLength, &lastCounted, &s.UpdatedAt); err != nil {
		return nil, err
	}

	s.UserID = shared.UserID(rawID)
	if lastCounted != nil {
		s.LastCountedDate = *lastCounted
	}
	return &s, nil
}
