package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the PostgreSQL implementation of store.Store. Badge definitions
// live in code, not in the database: the store carries the catalogue and
// serves it through the badge repository.
type Store struct {
	conn      *Connection
	catalogue []badge.Badge
}

var _ store.Store = (*Store)(nil)

// NewStore creates a store on top of an open connection.
func NewStore(conn *Connection, catalogue []badge.Badge) *Store {
	return &Store{conn: conn, catalogue: catalogue}
}

// Within runs fn inside a single database transaction. The ledger append and
// every derived-state write of one event commit or roll back together.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, repos store.Repos) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &repoSet{q: tx, catalogue: s.catalogue})
	})
}

// View returns repositories bound to the pool for ad-hoc reads.
func (s *Store) View() store.Repos {
	return &repoSet{q: s.conn.Pool(), catalogue: s.catalogue}
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return NewMigrator(s.conn).Migrate(ctx)
}

// PruneSnapshots trims old leaderboard snapshots, keeping the newest
// per (scope, window) pair. Used by the scheduled prune job.
func (s *Store) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	repo := &LeaderboardRepository{q: s.conn.Pool()}
	return repo.PruneSnapshots(ctx, keep)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPO SET
// ══════════════════════════════════════════════════════════════════════════════

// repoSet binds the repositories to one Querier: a transaction inside
// Within, the pool for View.
type repoSet struct {
	q         Querier
	catalogue []badge.Badge
}

var _ store.Repos = (*repoSet)(nil)

func (r *repoSet) Users() user.Repository               { return &UserRepository{q: r.q} }
func (r *repoSet) Ledger() ledger.Repository            { return &LedgerRepository{q: r.q} }
func (r *repoSet) Points() points.Repository            { return &PointsRepository{q: r.q} }
func (r *repoSet) Streaks() streak.Repository           { return &StreakRepository{q: r.q} }
func (r *repoSet) Badges() badge.Repository             { return &BadgeRepository{q: r.q, catalogue: r.catalogue} }
func (r *repoSet) Challenges() challenge.Repository     { return &ChallengeRepository{q: r.q} }
func (r *repoSet) Leaderboards() leaderboard.Repository { return &LeaderboardRepository{q: r.q} }

// ResetDerived wipes everything derived from the ledger. The ledger, user
// profiles, challenge definitions and leaderboard snapshots survive.
func (r *repoSet) ResetDerived(ctx context.Context) error {
	statements := []string{
		"DELETE FROM user_points",
		"DELETE FROM user_streaks",
		"DELETE FROM user_badges",
		"DELETE FROM badge_unlock_guard",
		"DELETE FROM user_challenges",
	}
	for _, stmt := range statements {
		if _, err := r.q.Exec(ctx, stmt); err != nil {
			return mapError("store", "ResetDerived", err)
		}
	}
	return nil
}
