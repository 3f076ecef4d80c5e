package postgres

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	q Querier
}

var _ user.Repository = (*UserRepository)(nil)

// Create inserts a new profile.
func (r *UserRepository) Create(ctx context.Context, profile *user.Profile) error {
	query := `
		INSERT INTO user_profiles (user_id, display_name, time_zone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query,
		profile.ID.String(),
		profile.DisplayName,
		profile.TimeZone,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("user", "Create", shared.ErrAlreadyExists, "profile already exists", shared.ErrAlreadyExists)
		}
		return mapError("user", "Create", err)
	}
	return nil
}

// GetByID returns a profile. Missing profile yields shared.ErrUnknownUser.
func (r *UserRepository) GetByID(ctx context.Context, id shared.UserID) (*user.Profile, error) {
	query := `
		SELECT user_id, display_name, time_zone, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`

	var (
		profile user.Profile
		rawID   string
	)
	err := r.q.QueryRow(ctx, query, id.String()).Scan(
		&rawID,
		&profile.DisplayName,
		&profile.TimeZone,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("user", "GetByID", shared.ErrNotFound, "profile not found", shared.ErrUnknownUser)
		}
		return nil, mapError("user", "GetByID", err)
	}

	profile.ID = shared.UserID(rawID)
	return &profile, nil
}

// Exists reports whether a profile exists.
func (r *UserRepository) Exists(ctx context.Context, id shared.UserID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM user_profiles WHERE user_id = $1)", id.String()).Scan(&exists)
	if err != nil {
		return false, mapError("user", "Exists", err)
	}
	return exists, nil
}

// Update overwrites a profile.
func (r *UserRepository) Update(ctx context.Context, profile *user.Profile) error {
	query := `
		UPDATE user_profiles
		SET display_name = $2, time_zone = $3, updated_at = $4
		WHERE user_id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		profile.ID.String(),
		profile.DisplayName,
		profile.TimeZone,
		profile.UpdatedAt,
	)
	if err != nil {
		return mapError("user", "Update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("user", "Update", shared.ErrNotFound, "profile not found", shared.ErrUnknownUser)
	}
	return nil
}

// ListIDs returns all user IDs in lexical order.
func (r *UserRepository) ListIDs(ctx context.Context) ([]shared.UserID, error) {
	rows, err := r.q.Query(ctx, "SELECT user_id FROM user_profiles ORDER BY user_id")
	if err != nil {
		return nil, mapError("user", "ListIDs", err)
	}
	defer rows.Close()

	var ids []shared.UserID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, mapError("user", "ListIDs", err)
		}
		ids = append(ids, shared.UserID(raw))
	}
	return ids, rows.Err()
}
