package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
// Snapshots are append-only: a rebuild inserts a new snapshot row plus its
// entries, readers always resolve the newest row per (scope, window), and
// PruneSnapshots trims the history. The snapshot row and its entries go out
// in a single batch, so a reader never resolves a half-written snapshot.
type LeaderboardRepository struct {
	q Querier
}

var _ leaderboard.Repository = (*LeaderboardRepository)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// SNAPSHOT OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

// ReplaceSnapshot stores a freshly built snapshot as the new latest for its
// (scope, window) pair.
func (r *LeaderboardRepository) ReplaceSnapshot(ctx context.Context, snapshot *leaderboard.Snapshot) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO leaderboard_snapshots (snapshot_id, scope, board_window, generated_at, entry_count)
		VALUES ($1, $2, $3, $4, $5)`,
		snapshot.ID, snapshot.Scope.String(), snapshot.Window.String(),
		snapshot.GeneratedAt, snapshot.Count())
	for _, entry := range snapshot.Entries {
		batch.Queue(`
			INSERT INTO leaderboard_entries (snapshot_id, user_id, rank, score)
			VALUES ($1, $2, $3, $4)`,
			snapshot.ID, entry.UserID.String(), entry.Rank, entry.Score)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return mapError("leaderboard", "ReplaceSnapshot", err)
		}
	}
	return nil
}

// GetLatest returns the newest snapshot for (scope, window) with its entries.
func (r *LeaderboardRepository) GetLatest(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window) (*leaderboard.Snapshot, error) {
	query := `
		SELECT snapshot_id, generated_at
		FROM leaderboard_snapshots
		WHERE scope = $1 AND board_window = $2
		ORDER BY generated_at DESC, snapshot_id DESC
		LIMIT 1
	`

	var (
		snapshotID  string
		generatedAt time.Time
	)
	err := r.q.QueryRow(ctx, query, scope.String(), window.String()).Scan(&snapshotID, &generatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("leaderboard", "GetLatest", shared.ErrNotFound, "no snapshot yet", shared.ErrSnapshotNotFound)
		}
		return nil, mapError("leaderboard", "GetLatest", err)
	}

	entries, err := r.loadEntries(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	snapshot := &leaderboard.Snapshot{
		ID:          snapshotID,
		Scope:       scope,
		Window:      window,
		GeneratedAt: generatedAt.UTC(),
		Entries:     entries,
	}
	snapshot.RebuildIndex()
	return snapshot, nil
}

func (r *LeaderboardRepository) loadEntries(ctx context.Context, snapshotID string) ([]*leaderboard.Entry, error) {
	query := `
		SELECT user_id, rank, score
		FROM leaderboard_entries
		WHERE snapshot_id = $1
		ORDER BY rank, user_id
	`

	rows, err := r.q.Query(ctx, query, snapshotID)
	if err != nil {
		return nil, mapError("leaderboard", "GetLatest", err)
	}
	defer rows.Close()

	entries := make([]*leaderboard.Entry, 0)
	for rows.Next() {
		var (
			e     leaderboard.Entry
			rawID string
		)
		if err := rows.Scan(&rawID, &e.Rank, &e.Score); err != nil {
			return nil, mapError("leaderboard", "GetLatest", err)
		}
		e.UserID = shared.UserID(rawID)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// HISTORY & RETENTION
// ─────────────────────────────────────────────────────────────────────────────

// ListMeta returns snapshot metadata for (scope, window) within [from, to).
func (r *LeaderboardRepository) ListMeta(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, from, to time.Time) ([]leaderboard.SnapshotMeta, error) {
	query := `
		SELECT snapshot_id, generated_at, entry_count
		FROM leaderboard_snapshots
		WHERE scope = $1 AND board_window = $2
		  AND generated_at >= $3 AND generated_at < $4
		ORDER BY generated_at DESC
	`

	rows, err := r.q.Query(ctx, query, scope.String(), window.String(), from, to)
	if err != nil {
		return nil, mapError("leaderboard", "ListMeta", err)
	}
	defer rows.Close()

	var out []leaderboard.SnapshotMeta
	for rows.Next() {
		meta := leaderboard.SnapshotMeta{Scope: scope, Window: window}
		if err := rows.Scan(&meta.ID, &meta.GeneratedAt, &meta.EntryCount); err != nil {
			return nil, mapError("leaderboard", "ListMeta", err)
		}
		meta.GeneratedAt = meta.GeneratedAt.UTC()
		out = append(out, meta)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots per (scope,
// window). Entries go with them through the FK cascade.
func (r *LeaderboardRepository) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	query := `
		DELETE FROM leaderboard_snapshots
		WHERE snapshot_id IN (
			SELECT snapshot_id FROM (
				SELECT snapshot_id,
				       row_number() OVER (PARTITION BY scope, board_window ORDER BY generated_at DESC, snapshot_id DESC) AS rn
				FROM leaderboard_snapshots
			) ranked
			WHERE rn > $1
		)
	`

	tag, err := r.q.Exec(ctx, query, keep)
	if err != nil {
		return 0, mapError("leaderboard", "PruneSnapshots", err)
	}
	return int(tag.RowsAffected()), nil
}
