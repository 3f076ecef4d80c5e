package postgres

import (
	"context"
	"time"

	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	q Querier
}

var _ challenge.Repository = (*ChallengeRepository)(nil)

const challengeColumns = "challenge_id, name, metric, threshold, event_type, window_from, window_to, reward_points"

// ListDefinitions returns every challenge definition.
func (r *ChallengeRepository) ListDefinitions(ctx context.Context) ([]*challenge.Challenge, error) {
	query := "SELECT " + challengeColumns + " FROM challenges ORDER BY window_from, challenge_id"

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, mapError("challenge", "ListDefinitions", err)
	}
	defer rows.Close()
	return scanChallenges(rows)
}

// ListActiveAt returns challenges whose window is open at t.
func (r *ChallengeRepository) ListActiveAt(ctx context.Context, t time.Time) ([]*challenge.Challenge, error) {
	query := "SELECT " + challengeColumns + ` FROM challenges
		WHERE window_from <= $1 AND window_to > $1
		ORDER BY window_from, challenge_id`

	rows, err := r.q.Query(ctx, query, t)
	if err != nil {
		return nil, mapError("challenge", "ListActiveAt", err)
	}
	defer rows.Close()
	return scanChallenges(rows)
}

// GetDefinition returns one challenge definition.
func (r *ChallengeRepository) GetDefinition(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	query := "SELECT " + challengeColumns + " FROM challenges WHERE challenge_id = $1"

	c, err := scanChallenge(r.q.QueryRow(ctx, query, challengeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("challenge", "GetDefinition", shared.ErrNotFound, "challenge not found", shared.ErrChallengeNotFound)
		}
		return nil, mapError("challenge", "GetDefinition", err)
	}
	return c, nil
}

// SaveDefinition creates or updates a challenge definition.
func (r *ChallengeRepository) SaveDefinition(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO challenges (challenge_id, name, metric, threshold, event_type, window_from, window_to, reward_points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (challenge_id) DO UPDATE SET
			name          = EXCLUDED.name,
			metric        = EXCLUDED.metric,
			threshold     = EXCLUDED.threshold,
			event_type    = EXCLUDED.event_type,
			window_from   = EXCLUDED.window_from,
			window_to     = EXCLUDED.window_to,
			reward_points = EXCLUDED.reward_points
	`

	_, err := r.q.Exec(ctx, query,
		c.ID, c.Name, string(c.Metric), c.Threshold, c.EventType,
		c.Window.From, c.Window.To, c.RewardPoints)
	if err != nil {
		return mapError("challenge", "SaveDefinition", err)
	}
	return nil
}

// GetProgress returns the user's progress record for a challenge.
func (r *ChallengeRepository) GetProgress(ctx context.Context, userID shared.UserID, challengeID string) (*challenge.UserChallenge, error) {
	query := `
		SELECT user_id, challenge_id, progress, completed_at, updated_at
		FROM user_challenges
		WHERE user_id = $1 AND challenge_id = $2
	`

	uc, err := scanUserChallenge(r.q.QueryRow(ctx, query, userID.String(), challengeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("challenge", "GetProgress", shared.ErrNotFound, "no progress for user", shared.ErrNotFound)
		}
		return nil, mapError("challenge", "GetProgress", err)
	}
	return uc, nil
}

// ListProgressByUser returns all of the user's progress records.
func (r *ChallengeRepository) ListProgressByUser(ctx context.Context, userID shared.UserID) ([]*challenge.UserChallenge, error) {
	query := `
		SELECT user_id, challenge_id, progress, completed_at, updated_at
		FROM user_challenges
		WHERE user_id = $1
		ORDER BY challenge_id
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, mapError("challenge", "ListProgressByUser", err)
	}
	defer rows.Close()

	var out []*challenge.UserChallenge
	for rows.Next() {
		uc, err := scanUserChallenge(rows)
		if err != nil {
			return nil, mapError("challenge", "ListProgressByUser", err)
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

// CountCompleted counts the user's completed challenges.
func (r *ChallengeRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx,
		"SELECT count(*) FROM user_challenges WHERE user_id = $1 AND completed_at IS NOT NULL",
		userID.String()).Scan(&n)
	if err != nil {
		return 0, mapError("challenge", "CountCompleted", err)
	}
	return n, nil
}

// SaveProgress creates or updates a progress record. completed_at is written
// as-is: the domain entity guarantees it is set at most once.
func (r *ChallengeRepository) SaveProgress(ctx context.Context, uc *challenge.UserChallenge) error {
	query := `
		INSERT INTO user_challenges (user_id, challenge_id, progress, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, challenge_id) DO UPDATE SET
			progress     = EXCLUDED.progress,
			completed_at = EXCLUDED.completed_at,
			updated_at   = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		uc.UserID.String(), uc.ChallengeID, uc.Progress, uc.CompletedAt, uc.UpdatedAt)
	if err != nil {
		return mapError("challenge", "SaveProgress", err)
	}
	return nil
}

// DeleteAllProgress wipes derived progress state (replay support).
func (r *ChallengeRepository) DeleteAllProgress(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, "DELETE FROM user_challenges"); err != nil {
		return mapError("challenge", "DeleteAllProgress", err)
	}
	return nil
}

func scanChallenge(row rowScanner) (*challenge.Challenge, error) {
	var (
		c      challenge.Challenge
		metric string
	)
	err := row.Scan(&c.ID, &c.Name, &metric, &c.Threshold, &c.EventType,
		&c.Window.From, &c.Window.To, &c.RewardPoints)
	if err != nil {
		return nil, err
	}
	c.Metric = challenge.Metric(metric)
	c.Window.From = c.Window.From.UTC()
	c.Window.To = c.Window.To.UTC()
	return &c, nil
}

func scanChallenges(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanUserChallenge(row rowScanner) (*challenge.UserChallenge, error) {
	var (
		uc          challenge.UserChallenge
		rawID       string
		completedAt *time.Time
	)
	err := row.Scan(&rawID, &uc.ChallengeID, &uc.Progress, &completedAt, &uc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	uc.UserID = shared.UserID(rawID)
	if completedAt != nil {
		t := completedAt.UTC()
		uc.CompletedAt = &t
	}
	uc.UpdatedAt = uc.UpdatedAt.UTC()
	return &uc, nil
}
