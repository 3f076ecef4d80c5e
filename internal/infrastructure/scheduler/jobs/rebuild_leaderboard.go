// Package jobs contains implementations of scheduled jobs for the
// gamification engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/listora/gamification-engine/internal/application/command"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardsJob periodically rebuilds leaderboard snapshots for
// every configured (scope, window) pair. Rankings are derived state: the job
// recomputes them from the accumulator and the ledger, publishes each pair
// as an atomically replaced snapshot, and refreshes the hot cache. Readers
// meanwhile keep serving the previous snapshot.
type RebuildLeaderboardsJob struct {
	handler *command.RebuildLeaderboardsHandler
	retrier *retry.Retrier
	logger  *slog.Logger

	// lastStats holds the latest *command.RebuildLeaderboardsResult.
	lastStats atomic.Value
}

// NewRebuildLeaderboardsJob creates the rebuild job.
func NewRebuildLeaderboardsJob(handler *command.RebuildLeaderboardsHandler, logger *slog.Logger) *RebuildLeaderboardsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardsJob{
		handler: handler,
		retrier: retry.StoreRetrier(),
		logger:  logger,
	}
}

// Name returns the unique job name.
func (j *RebuildLeaderboardsJob) Name() string {
	return "rebuild_leaderboards"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardsJob) Description() string {
	return "Rebuilds leaderboard snapshots for all configured scopes and windows"
}

// Run executes one rebuild cycle over all configured boards. Transient
// store outages are retried with backoff before the run is reported failed.
func (j *RebuildLeaderboardsJob) Run(ctx context.Context) error {
	var result *command.RebuildLeaderboardsResult
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		res, handleErr := j.handler.Handle(ctx, command.RebuildLeaderboardsCommand{})
		if res != nil {
			result = res
			j.lastStats.Store(res)
		}
		if handleErr != nil && shared.IsRetryable(handleErr) {
			return retry.Retryable(handleErr)
		}
		return handleErr
	})
	if err != nil {
		return fmt.Errorf("rebuild leaderboards: %w", err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("rebuild leaderboards: %d of %d boards failed: %v",
			len(result.Failed), result.SnapshotsBuilt+len(result.Failed), result.Failed)
	}
	return nil
}

// LastStats returns the result of the most recent run, nil before the first.
func (j *RebuildLeaderboardsJob) LastStats() *command.RebuildLeaderboardsResult {
	stats, _ := j.lastStats.Load().(*command.RebuildLeaderboardsResult)
	return stats
}

// ══════════════════════════════════════════════════════════════════════════════
// PRUNE SNAPSHOTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotPruner trims old snapshots, keeping the newest per (scope, window).
type SnapshotPruner interface {
	PruneSnapshots(ctx context.Context, keep int) (int, error)
}

// PruneSnapshotsJob deletes old leaderboard snapshots. Every rebuild inserts
// a new snapshot per board, so without pruning the history grows without
// bound. Keeping a handful of generations preserves the atomic-replace
// guarantee for in-flight readers.
type PruneSnapshotsJob struct {
	pruner SnapshotPruner
	keep   int
	logger *slog.Logger
}

// NewPruneSnapshotsJob creates the prune job. keep is how many snapshot
// generations to retain per (scope, window) pair.
func NewPruneSnapshotsJob(pruner SnapshotPruner, keep int, logger *slog.Logger) *PruneSnapshotsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if keep < 1 {
		keep = 1
	}
	return &PruneSnapshotsJob{
		pruner: pruner,
		keep:   keep,
		logger: logger,
	}
}

// Name returns the unique job name.
func (j *PruneSnapshotsJob) Name() string {
	return "prune_snapshots"
}

// Description returns a human-readable description.
func (j *PruneSnapshotsJob) Description() string {
	return "Deletes old leaderboard snapshots beyond the retention limit"
}

// Run prunes old snapshots.
func (j *PruneSnapshotsJob) Run(ctx context.Context) error {
	started := time.Now()
	deleted, err := j.pruner.PruneSnapshots(ctx, j.keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	j.logger.InfoContext(ctx, "snapshots pruned",
		slog.Int("deleted", deleted),
		slog.Int("kept_per_board", j.keep),
		slog.Duration("duration", time.Since(started)))
	return nil
}
