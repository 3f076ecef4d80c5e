package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/domain/user"
	"github.com/listora/gamification-engine/internal/infrastructure/persistence/memory"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 5, 20, 0, 0, 0, time.UTC)
}

func newQueryStore(t *testing.T, userIDs ...string) *memory.Store {
	t.Helper()
	st := memory.NewStore()
	st.SeedBadges(badge.DefaultCatalogue())
	for _, id := range userIDs {
		profile, err := user.NewProfile(user.NewProfileParams{ID: id, DisplayName: id})
		require.NoError(t, err)
		require.NoError(t, st.View().Users().Create(context.Background(), profile))
	}
	return st
}

func appendEvent(t *testing.T, st *memory.Store, id, userID, eventType string, delta int64, at time.Time) {
	t.Helper()
	ev, err := ledger.NewEvent(ledger.NewEventParams{
		ID: id, UserID: userID, Type: eventType, PointsDelta: delta, OccurredAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, st.View().Ledger().Append(context.Background(), ev))
}

func publishSnapshot(t *testing.T, st *memory.Store, scores map[string]int64, at time.Time) {
	t.Helper()
	ranking := leaderboard.NewRanking()
	for id, score := range scores {
		require.NoError(t, ranking.Add(shared.UserID(id), score))
	}
	ranking.SortAndRank()
	snap := leaderboard.NewSnapshot("snap-1", leaderboard.ScopeGlobal, leaderboard.WindowAllTime, ranking, at)
	require.NoError(t, st.View().Leaderboards().ReplaceSnapshot(context.Background(), snap))
}

// ──────────────────────────────────────────────────────────────────────────────
// Dashboard
// ──────────────────────────────────────────────────────────────────────────────

func TestGetDashboard_FullSummary(t *testing.T) {
	st := newQueryStore(t, "alice")
	ctx := context.Background()
	now := fixedNow()

	up := points.NewUserPoints("alice")
	up.Apply(150, now)
	up.Apply(-30, now)
	require.NoError(t, st.View().Points().Save(ctx, up))

	us := streak.NewUserStreak("alice", streak.TypeDailyActivity)
	us.CurrentLength = 3
	us.LongestLength = 5
	us.LastCountedDate = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.View().Streaks().Save(ctx, us))

	unlockedAt := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.View().Badges().SaveUnlock(ctx, badge.UserBadge{
		UserID: "alice", BadgeID: "first_listing", UnlockedAt: unlockedAt,
	}))

	ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID: "weekly_sprint", Name: "Weekly Sprint",
		Metric: challenge.MetricEventCount, Threshold: 5,
		WindowStart: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, st.View().Challenges().SaveDefinition(ctx, ch))
	uc := challenge.NewUserChallenge("alice", "weekly_sprint")
	uc.Progress = 2
	require.NoError(t, st.View().Challenges().SaveProgress(ctx, uc))

	appendEvent(t, st, "e1", "alice", "listing_posted", 100, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC))
	appendEvent(t, st, "e2", "alice", "listing_posted", 50, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))

	publishSnapshot(t, st, map[string]int64{"alice": 120, "bob": 200}, now)

	h := NewGetDashboardHandler(st, points.DefaultLevelTable(), streak.DefaultTypes())
	h.now = fixedNow

	res, err := h.Handle(ctx, GetDashboardQuery{UserID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, "alice", res.UserID)
	assert.Equal(t, int64(120), res.Points.Balance)
	assert.Equal(t, int64(150), res.Points.LifetimeEarned)
	assert.Equal(t, 2, res.Points.Tier)
	assert.Equal(t, "Contributor", res.Points.Label)
	assert.Equal(t, int64(20), res.Points.PointsIntoLevel)
	assert.Equal(t, int64(130), res.Points.PointsToNext)

	require.Len(t, res.Streaks, 1)
	assert.Equal(t, "daily_activity", res.Streaks[0].Type)
	assert.Equal(t, 3, res.Streaks[0].Current)
	assert.Equal(t, 5, res.Streaks[0].Longest)
	assert.True(t, res.Streaks[0].Active)

	require.Len(t, res.Badges, 1)
	assert.Equal(t, "first_listing", res.Badges[0].BadgeID)
	assert.Equal(t, "First Listing", res.Badges[0].Name)
	assert.Equal(t, unlockedAt, res.Badges[0].UnlockedAt)

	require.Len(t, res.Challenges, 1)
	assert.Equal(t, "weekly_sprint", res.Challenges[0].ChallengeID)
	assert.Equal(t, int64(2), res.Challenges[0].Progress)
	assert.False(t, res.Challenges[0].Completed)

	require.NotNil(t, res.GlobalRank)
	assert.Equal(t, 2, *res.GlobalRank)
	require.NotNil(t, res.GlobalScore)
	assert.Equal(t, int64(120), *res.GlobalScore)

	assert.Equal(t, int64(2), res.Activity.TotalEvents)
	assert.Equal(t, int64(1), res.Activity.EventsToday)
	assert.Equal(t, int64(2), res.Activity.EventsWeek)
}

func TestGetDashboard_NewUserHasEmptyState(t *testing.T) {
	st := newQueryStore(t, "alice")
	h := NewGetDashboardHandler(st, points.DefaultLevelTable(), streak.DefaultTypes())
	h.now = fixedNow

	res, err := h.Handle(context.Background(), GetDashboardQuery{UserID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Points.Balance)
	assert.Equal(t, 1, res.Points.Tier)
	assert.Empty(t, res.Streaks)
	assert.Empty(t, res.Badges)
	// Снапшота ещё нет - позиция просто отсутствует, это не ошибка.
	assert.Nil(t, res.GlobalRank)
	assert.Equal(t, int64(0), res.Activity.TotalEvents)
}

func TestGetDashboard_UnknownUser(t *testing.T) {
	st := newQueryStore(t)
	h := NewGetDashboardHandler(st, points.DefaultLevelTable(), streak.DefaultTypes())

	_, err := h.Handle(context.Background(), GetDashboardQuery{UserID: "ghost"})

	require.Error(t, err)
	assert.True(t, shared.IsUnknownUser(err))
}

// ──────────────────────────────────────────────────────────────────────────────
// Leaderboard
// ──────────────────────────────────────────────────────────────────────────────

func TestGetLeaderboard_PageFromSnapshot(t *testing.T) {
	st := newQueryStore(t)
	publishSnapshot(t, st, map[string]int64{"alice": 100, "carol": 100, "bob": 90}, fixedNow())

	h := NewGetLeaderboardHandler(st, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)

	assert.True(t, res.Available)
	assert.Equal(t, "global", res.Scope)
	assert.Equal(t, "all_time", res.Window)
	assert.Equal(t, 3, res.TotalCount)
	assert.False(t, res.HasMore)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, LeaderboardEntryDTO{Rank: 1, UserID: "alice", Score: 100}, res.Entries[0])
	assert.Equal(t, LeaderboardEntryDTO{Rank: 1, UserID: "carol", Score: 100}, res.Entries[1])
	assert.Equal(t, LeaderboardEntryDTO{Rank: 3, UserID: "bob", Score: 90}, res.Entries[2])
}

func TestGetLeaderboard_PaginationAndOwnEntry(t *testing.T) {
	st := newQueryStore(t)
	publishSnapshot(t, st, map[string]int64{"alice": 100, "carol": 100, "bob": 90}, fixedNow())

	h := NewGetLeaderboardHandler(st, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2, UserID: "bob"})
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.True(t, res.HasMore)
	// bob не попал на страницу, но его позиция приложена отдельно.
	require.NotNil(t, res.OwnEntry)
	assert.Equal(t, 3, res.OwnEntry.Rank)
	assert.Equal(t, "bob", res.OwnEntry.UserID)
}

func TestGetLeaderboard_NoSnapshotYet(t *testing.T) {
	st := newQueryStore(t)
	h := NewGetLeaderboardHandler(st, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)

	assert.False(t, res.Available)
	assert.Empty(t, res.Entries)
	assert.Equal(t, 0, res.TotalCount)
}

func TestGetLeaderboard_InvalidParams(t *testing.T) {
	st := newQueryStore(t)
	h := NewGetLeaderboardHandler(st, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, GetLeaderboardQuery{Window: "quarterly"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, GetLeaderboardQuery{Scope: "friends"})
	assert.True(t, shared.IsValidation(err))
}

// fakeCache отдаёт фиксированную верхушку борда.
type fakeCache struct {
	top         []*leaderboard.Entry
	generatedAt time.Time
}

func (c *fakeCache) GetTop(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, n int) ([]*leaderboard.Entry, time.Time, error) {
	if n > len(c.top) {
		n = len(c.top)
	}
	return c.top[:n], c.generatedAt, nil
}

func TestGetLeaderboard_ServedFromCache(t *testing.T) {
	st := newQueryStore(t)
	publishSnapshot(t, st, map[string]int64{"alice": 100, "bob": 90}, fixedNow())

	cache := &fakeCache{
		top: []*leaderboard.Entry{
			{UserID: "alice", Rank: 1, Score: 100},
			{UserID: "bob", Rank: 2, Score: 90},
		},
		generatedAt: fixedNow(),
	}
	h := NewGetLeaderboardHandler(st, cache)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2})
	require.NoError(t, err)

	assert.True(t, res.Available)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "alice", res.Entries[0].UserID)
	assert.Equal(t, fixedNow(), res.GeneratedAt)
	assert.Equal(t, 2, res.TotalCount)
}

// ──────────────────────────────────────────────────────────────────────────────
// Badge catalogue
// ──────────────────────────────────────────────────────────────────────────────

func TestListBadges_Catalogue(t *testing.T) {
	st := newQueryStore(t)
	h := NewListBadgesHandler(st)

	res, err := h.Handle(context.Background(), ListBadgesQuery{})
	require.NoError(t, err)

	assert.Len(t, res.Badges, len(badge.DefaultCatalogue()))
	assert.Equal(t, 0, res.UnlockedCount)
	for _, b := range res.Badges {
		assert.False(t, b.Unlocked)
		assert.NotEmpty(t, b.Criteria)
	}
}

func TestListBadges_WithUserStatus(t *testing.T) {
	st := newQueryStore(t, "alice")
	ctx := context.Background()

	unlockedAt := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.View().Badges().SaveUnlock(ctx, badge.UserBadge{
		UserID: "alice", BadgeID: "first_listing", UnlockedAt: unlockedAt,
	}))

	h := NewListBadgesHandler(st)
	res, err := h.Handle(ctx, ListBadgesQuery{UserID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.UnlockedCount)
	for _, b := range res.Badges {
		if b.BadgeID == "first_listing" {
			assert.True(t, b.Unlocked)
			require.NotNil(t, b.UnlockedAt)
			assert.Equal(t, unlockedAt, *b.UnlockedAt)
			assert.Equal(t, 1, b.UnlockCount)
		} else {
			assert.False(t, b.Unlocked)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Challenge list
// ──────────────────────────────────────────────────────────────────────────────

func seedChallenges(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()

	current, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID: "current", Name: "Current",
		Metric: challenge.MetricEventCount, Threshold: 5,
		WindowStart: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		RewardPoints: 20,
	})
	require.NoError(t, err)
	require.NoError(t, st.View().Challenges().SaveDefinition(ctx, current))

	past, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID: "past", Name: "Past",
		Metric: challenge.MetricPointsEarned, Threshold: 100,
		WindowStart: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2025, 2, 8, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, st.View().Challenges().SaveDefinition(ctx, past))
}

func TestListChallenges_ActiveOnly(t *testing.T) {
	st := newQueryStore(t)
	seedChallenges(t, st)

	h := NewListChallengesHandler(st)
	h.now = fixedNow

	all, err := h.Handle(context.Background(), ListChallengesQuery{})
	require.NoError(t, err)
	require.Len(t, all.Challenges, 2)

	active, err := h.Handle(context.Background(), ListChallengesQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active.Challenges, 1)
	assert.Equal(t, "current", active.Challenges[0].ChallengeID)
	assert.True(t, active.Challenges[0].Active)
}

func TestListChallenges_WithUserProgress(t *testing.T) {
	st := newQueryStore(t, "alice")
	seedChallenges(t, st)
	ctx := context.Background()

	completedAt := time.Date(2025, 2, 5, 12, 0, 0, 0, time.UTC)
	uc := challenge.NewUserChallenge("alice", "past")
	uc.Progress = 100
	uc.CompletedAt = &completedAt
	require.NoError(t, st.View().Challenges().SaveProgress(ctx, uc))

	h := NewListChallengesHandler(st)
	h.now = fixedNow

	res, err := h.Handle(ctx, ListChallengesQuery{UserID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.CompletedCount)
	for _, ch := range res.Challenges {
		switch ch.ChallengeID {
		case "past":
			assert.True(t, ch.Completed)
			require.NotNil(t, ch.CompletedAt)
			assert.Equal(t, completedAt, *ch.CompletedAt)
			assert.False(t, ch.Active)
		case "current":
			assert.False(t, ch.Completed)
			assert.Equal(t, int64(0), ch.Progress)
		}
	}
}
