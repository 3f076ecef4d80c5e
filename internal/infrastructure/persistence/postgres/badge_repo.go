package postgres

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL. Definitions are
// code-resident; only unlocks are stored. Non-repeatable uniqueness is
// enforced by the badge_unlock_guard table, so two racing transactions
// cannot both unlock the same badge.
type BadgeRepository struct {
	q         Querier
	catalogue []badge.Badge
}

var _ badge.Repository = (*BadgeRepository)(nil)

// ListDefinitions returns the badge catalogue.
func (r *BadgeRepository) ListDefinitions(ctx context.Context) ([]badge.Badge, error) {
	out := make([]badge.Badge, len(r.catalogue))
	copy(out, r.catalogue)
	return out, nil
}

// GetDefinition returns one badge definition.
func (r *BadgeRepository) GetDefinition(ctx context.Context, badgeID string) (badge.Badge, error) {
	for _, def := range r.catalogue {
		if def.ID == badgeID {
			return def, nil
		}
	}
	return badge.Badge{}, shared.WrapError("badge", "GetDefinition", shared.ErrNotFound, "badge not found", shared.ErrBadgeNotFound)
}

// ListByUser returns a user's unlocks, oldest first.
func (r *BadgeRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]badge.UserBadge, error) {
	query := `
		SELECT user_id, badge_id, unlocked_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY unlocked_at, badge_id
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, mapError("badge", "ListByUser", err)
	}
	defer rows.Close()

	var out []badge.UserBadge
	for rows.Next() {
		var (
			u     badge.UserBadge
			rawID string
		)
		if err := rows.Scan(&rawID, &u.BadgeID, &u.UnlockedAt); err != nil {
			return nil, mapError("badge", "ListByUser", err)
		}
		u.UserID = shared.UserID(rawID)
		out = append(out, u)
	}
	return out, rows.Err()
}

// HasBadge reports whether the user owns the badge.
func (r *BadgeRepository) HasBadge(ctx context.Context, userID shared.UserID, badgeID string) (bool, error) {
	var owned bool
	err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)",
		userID.String(), badgeID).Scan(&owned)
	if err != nil {
		return false, mapError("badge", "HasBadge", err)
	}
	return owned, nil
}

// CountUnlocks counts how many times a repeatable badge has been unlocked.
func (r *BadgeRepository) CountUnlocks(ctx context.Context, userID shared.UserID, badgeID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, "SELECT count(*) FROM user_badges WHERE user_id = $1 AND badge_id = $2",
		userID.String(), badgeID).Scan(&n)
	if err != nil {
		return 0, mapError("badge", "CountUnlocks", err)
	}
	return n, nil
}

// SaveUnlock records an unlock. For a non-repeatable badge a second unlock
// yields shared.ErrBadgeAlreadyOwned.
func (r *BadgeRepository) SaveUnlock(ctx context.Context, unlock badge.UserBadge) error {
	def, err := r.GetDefinition(ctx, unlock.BadgeID)
	if err != nil {
		return err
	}

	if !def.Repeatable {
		tag, err := r.q.Exec(ctx,
			"INSERT INTO badge_unlock_guard (user_id, badge_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			unlock.UserID.String(), unlock.BadgeID)
		if err != nil {
			return mapError("badge", "SaveUnlock", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.WrapError("badge", "SaveUnlock", shared.ErrAlreadyExists, "badge already owned", shared.ErrBadgeAlreadyOwned)
		}
	}

	_, err = r.q.Exec(ctx,
		"INSERT INTO user_badges (user_id, badge_id, unlocked_at) VALUES ($1, $2, $3)",
		unlock.UserID.String(), unlock.BadgeID, unlock.UnlockedAt)
	if err != nil {
		return mapError("badge", "SaveUnlock", err)
	}
	return nil
}

// DeleteAllUnlocks wipes unlocks and the uniqueness guard (replay support).
func (r *BadgeRepository) DeleteAllUnlocks(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, "DELETE FROM user_badges"); err != nil {
		return mapError("badge", "DeleteAllUnlocks", err)
	}
	if _, err := r.q.Exec(ctx, "DELETE FROM badge_unlock_guard"); err != nil {
		return mapError("badge", "DeleteAllUnlocks", err)
	}
	return nil
}
