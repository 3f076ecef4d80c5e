package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrBoardNotCached is returned when no snapshot has been cached for the
	// requested (scope, window) pair.
	ErrBoardNotCached = errors.New("leaderboard_cache: board not cached")

	// ErrUserNotOnBoard is returned when the user has no entry on the cached board.
	ErrUserNotOnBoard = errors.New("leaderboard_cache: user not on board")
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps the hot part of each leaderboard in Redis.
//
// Architecture, per (scope, window) pair:
//   - Sorted Set "leaderboard:scores:{scope}:{window}" holds userID -> score
//     for every ranked user, for O(log N) own-rank lookups.
//   - String "leaderboard:top:{scope}:{window}" holds the top page of the
//     snapshot as JSON, in snapshot order, so cached pages tie-break exactly
//     like snapshot pages.
//
// The scheduler refreshes both keys after every rebuild. Both carry a TTL, so
// a stopped scheduler leads to cache misses, never to stale boards served
// forever.
//
// Every Redis round-trip runs behind a circuit breaker: while Redis is down
// the breaker fails fast and readers fall back to snapshot storage. Misses
// are data, not failures, and never trip the breaker.
type LeaderboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// Key patterns for leaderboard cache.
const (
	// keyBoardScores is the sorted set with all scores.
	keyBoardScores = PrefixLeaderboard + "scores:"

	// keyBoardTop is the JSON document with the top entries and metadata.
	keyBoardTop = PrefixLeaderboard + "top:"

	// topEntryCount is how many leading entries are cached verbatim. Matches
	// the maximum page size of the leaderboard query.
	topEntryCount = 100
)

// boardDocument is the JSON document stored under keyBoardTop.
type boardDocument struct {
	SnapshotID  string      `json:"snapshot_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	TotalCount  int         `json:"total_count"`
	Entries     []boardRow  `json:"entries"`
}

type boardRow struct {
	UserID string `json:"user_id"`
	Rank   int    `json:"rank"`
	Score  int64  `json:"score"`
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{
		cache:   cache,
		breaker: circuitbreaker.CacheBreaker(nil),
	}
}

func boardKey(prefix string, scope leaderboard.Scope, window leaderboard.Window) string {
	return fmt.Sprintf("%s%s:%s", prefix, scope, window)
}

// ─────────────────────────────────────────────────────────────────────────────
// WRITE PATH
// ─────────────────────────────────────────────────────────────────────────────

// StoreSnapshot replaces the cached board with a freshly built snapshot.
func (lc *LeaderboardCache) StoreSnapshot(ctx context.Context, snapshot *leaderboard.Snapshot) error {
	scoresKey := boardKey(keyBoardScores, snapshot.Scope, snapshot.Window)
	topKey := boardKey(keyBoardTop, snapshot.Scope, snapshot.Window)

	members := make([]redis.Z, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		members = append(members, redis.Z{
			Score:  float64(entry.Score),
			Member: entry.UserID.String(),
		})
	}

	top := snapshot.Top(topEntryCount)
	doc := boardDocument{
		SnapshotID:  snapshot.ID,
		GeneratedAt: snapshot.GeneratedAt,
		TotalCount:  snapshot.Count(),
		Entries:     make([]boardRow, 0, len(top)),
	}
	for _, entry := range top {
		doc.Entries = append(doc.Entries, boardRow{
			UserID: entry.UserID.String(),
			Rank:   entry.Rank,
			Score:  entry.Score,
		})
	}

	return lc.breaker.Execute(ctx, func(ctx context.Context) error {
		pipe := lc.cache.Client().TxPipeline()
		pipe.Del(ctx, scoresKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, scoresKey, members...)
		}
		pipe.Expire(ctx, scoresKey, TTLLeaderboardCache)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("leaderboard_cache: store scores: %w", err)
		}

		return lc.cache.Set(ctx, topKey, doc, TTLLeaderboardCache)
	})
}

// Invalidate drops the cached board for a (scope, window) pair.
func (lc *LeaderboardCache) Invalidate(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window) error {
	return lc.breaker.Execute(ctx, func(ctx context.Context) error {
		return lc.cache.Delete(ctx,
			boardKey(keyBoardScores, scope, window),
			boardKey(keyBoardTop, scope, window))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// READ PATH
// ─────────────────────────────────────────────────────────────────────────────

// GetTop returns up to n leading entries of the cached board together with
// the snapshot build time. Returns ErrBoardNotCached on a miss; fewer than n
// entries means the board itself is that small or n exceeds the cached top.
func (lc *LeaderboardCache) GetTop(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, n int) ([]*leaderboard.Entry, time.Time, error) {
	if n <= 0 {
		return nil, time.Time{}, nil
	}

	var doc boardDocument
	var miss bool
	err := lc.breaker.Execute(ctx, func(ctx context.Context) error {
		getErr := lc.cache.Get(ctx, boardKey(keyBoardTop, scope, window), &doc)
		if errors.Is(getErr, ErrCacheMiss) {
			miss = true
			return nil
		}
		return getErr
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	if miss {
		return nil, time.Time{}, ErrBoardNotCached
	}

	if n > len(doc.Entries) {
		n = len(doc.Entries)
	}
	entries := make([]*leaderboard.Entry, 0, n)
	for _, row := range doc.Entries[:n] {
		entries = append(entries, &leaderboard.Entry{
			UserID: shared.UserID(row.UserID),
			Rank:   row.Rank,
			Score:  row.Score,
		})
	}
	return entries, doc.GeneratedAt, nil
}

// GetEntry returns one user's cached rank and score. The rank is computed
// from the sorted set with competition semantics: one plus the number of
// strictly greater scores, so ties share a rank exactly like the snapshot.
func (lc *LeaderboardCache) GetEntry(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, userID shared.UserID) (*leaderboard.Entry, error) {
	scoresKey := boardKey(keyBoardScores, scope, window)
	client := lc.cache.Client()

	var entry *leaderboard.Entry
	var sentinel error
	err := lc.breaker.Execute(ctx, func(ctx context.Context) error {
		score, scoreErr := client.ZScore(ctx, scoresKey, userID.String()).Result()
		if scoreErr != nil {
			if errors.Is(scoreErr, redis.Nil) {
				exists, existsErr := lc.cache.Exists(ctx, scoresKey)
				if existsErr != nil {
					return existsErr
				}
				if !exists {
					sentinel = ErrBoardNotCached
				} else {
					sentinel = ErrUserNotOnBoard
				}
				return nil
			}
			return scoreErr
		}

		greater, countErr := client.ZCount(ctx, scoresKey, fmt.Sprintf("(%d", int64(score)), "+inf").Result()
		if countErr != nil {
			return countErr
		}

		entry = &leaderboard.Entry{
			UserID: userID,
			Rank:   int(greater) + 1,
			Score:  int64(score),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sentinel != nil {
		return nil, sentinel
	}
	return entry, nil
}
