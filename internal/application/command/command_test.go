package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/domain/user"
	"github.com/listora/gamification-engine/internal/infrastructure/persistence/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, userIDs ...string) *memory.Store {
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

func newSubmitHandler(st *memory.Store) *SubmitEventHandler {
	return NewSubmitEventHandler(st, nil, points.DefaultLevelTable(), streak.DefaultTypes(), time.UTC, testLogger())
}

func day(d, hour int) time.Time {
	return time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC)
}

// ──────────────────────────────────────────────────────────────────────────────
// Submit event
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitEvent_AcceptsAndAccrues(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)

	res, err := h.Handle(context.Background(), SubmitEventCommand{
		EventID:     "e1",
		UserID:      "alice",
		Type:        "listing_posted",
		PointsDelta: 10,
		OccurredAt:  day(3, 12),
	})

	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "e1", res.EventID)
	assert.Equal(t, int64(10), res.Balance)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, 1, res.Streaks["daily_activity"])
	// Первое объявление сразу открывает first_listing.
	assert.Contains(t, res.UnlockedBadges, "first_listing")
}

func TestSubmitEvent_DuplicateEventID(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	cmd := SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "listing_posted",
		PointsDelta: 10, OccurredAt: day(3, 12),
	}

	first, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	require.True(t, first.Accepted)

	// Повтор с тем же event_id - не ошибка и не изменение состояния.
	second, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Accepted)

	up, err := st.View().Points().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), up.Balance)

	events, err := st.View().Ledger().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSubmitEvent_UnknownUser(t *testing.T) {
	st := newTestStore(t)
	h := newSubmitHandler(st)

	_, err := h.Handle(context.Background(), SubmitEventCommand{
		EventID: "e1", UserID: "ghost", Type: "listing_posted",
		PointsDelta: 10, OccurredAt: day(3, 12),
	})

	require.Error(t, err)
	assert.True(t, shared.IsUnknownUser(err))
}

func TestSubmitEvent_Validation(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	_, err := h.Handle(ctx, SubmitEventCommand{EventID: "e1", Type: "listing_posted"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SubmitEventCommand{EventID: "e1", UserID: "alice"})
	assert.True(t, shared.IsValidation(err))

	// Типы наград чеканит только сам движок.
	_, err = h.Handle(ctx, SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "badge_reward", PointsDelta: 100,
	})
	assert.True(t, shared.IsValidation(err))

	// Reversal обязан нести неположительную дельту.
	_, err = h.Handle(ctx, SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "reversal",
		PointsDelta: 10, OccurredAt: day(3, 12),
	})
	assert.True(t, shared.IsValidation(err))
}

func TestSubmitEvent_BalanceNeverNegative(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	_, err := h.Handle(ctx, SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "listing_posted",
		PointsDelta: 50, OccurredAt: day(3, 12),
	})
	require.NoError(t, err)

	res, err := h.Handle(ctx, SubmitEventCommand{
		EventID: "e2", UserID: "alice", Type: "reversal",
		PointsDelta: -200, OccurredAt: day(3, 13),
	})
	require.NoError(t, err)

	// Баланс упирается в ноль, lifetime_earned реверсия не трогает.
	assert.Equal(t, int64(0), res.Balance)

	up, err := st.View().Points().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), up.Balance)
	assert.Equal(t, int64(50), up.LifetimeEarned)
}

func TestSubmitEvent_StreakChainUnlocksBadge(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	for i, d := range []int{3, 4, 5} {
		res, err := h.Handle(ctx, SubmitEventCommand{
			EventID: fmt.Sprintf("e%d", i+1), UserID: "alice", Type: "listing_posted",
			PointsDelta: 10, OccurredAt: day(d, 12),
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Streaks["daily_activity"])

		if i == 2 {
			assert.Contains(t, res.UnlockedBadges, "streak_3")
		} else {
			assert.NotContains(t, res.UnlockedBadges, "streak_3")
		}
	}
}

func TestSubmitEvent_BadgeRewardThroughLedger(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	ids := []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8", "e9", "e10"}
	var last *SubmitEventResult
	for _, id := range ids {
		var err error
		last, err = h.Handle(ctx, SubmitEventCommand{
			EventID: id, UserID: "alice", Type: "listing_posted",
			PointsDelta: 5, OccurredAt: day(3, 12),
		})
		require.NoError(t, err)
	}

	// Десятое объявление: бейдж ten_listings и его награда одним событием.
	assert.Contains(t, last.UnlockedBadges, "ten_listings")
	assert.Equal(t, int64(100), last.Balance)
	assert.Equal(t, 2, last.Tier)
	assert.True(t, last.TierChanged)

	// Награда записана в журнал с детерминированным ID.
	exists, err := st.View().Ledger().Exists(ctx, "badge:ten_listings:alice:reward")
	require.NoError(t, err)
	assert.True(t, exists)

	// Повторно бейдж не открывается.
	owned, err := st.View().Badges().CountUnlocks(ctx, "alice", "ten_listings")
	require.NoError(t, err)
	assert.Equal(t, 1, owned)
}

func TestSubmitEvent_ConcurrentTriggersUnlockBadgeOnce(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	// Двенадцать событий наперегонки пересекают порог ten_listings.
	// События одного пользователя сериализуются на страйп-локе, так что
	// порог пересекает ровно одно из них.
	const workers = 12
	results := make([]*SubmitEventResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.Handle(ctx, SubmitEventCommand{
				EventID: fmt.Sprintf("race-e%d", i+1), UserID: "alice", Type: "listing_posted",
				PointsDelta: 5, OccurredAt: day(3, 12),
			})
		}(i)
	}
	wg.Wait()

	unlockReports := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].Accepted)
		for _, id := range results[i].UnlockedBadges {
			if id == "ten_listings" {
				unlockReports++
			}
		}
	}
	// Бейдж открылся ровно у одного события.
	assert.Equal(t, 1, unlockReports)

	owned, err := st.View().Badges().CountUnlocks(ctx, "alice", "ten_listings")
	require.NoError(t, err)
	assert.Equal(t, 1, owned)

	// Награда записана один раз: детерминированный ID дедуплицирует её.
	exists, err := st.View().Ledger().Exists(ctx, "badge:ten_listings:alice:reward")
	require.NoError(t, err)
	assert.True(t, exists)

	up, err := st.View().Points().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*5+50), up.Balance)
}

func TestSubmitEvent_ChallengeCompletionGrantsReward(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID:           "weekly_sprint",
		Name:         "Weekly Sprint",
		Metric:       challenge.MetricEventCount,
		Threshold:    2,
		WindowStart:  day(3, 0),
		WindowEnd:    day(10, 0),
		RewardPoints: 30,
	})
	require.NoError(t, err)
	require.NoError(t, st.View().Challenges().SaveDefinition(ctx, ch))

	first, err := h.Handle(ctx, SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "listing_posted",
		PointsDelta: 10, OccurredAt: day(3, 12),
	})
	require.NoError(t, err)
	assert.Empty(t, first.CompletedChallenges)

	second, err := h.Handle(ctx, SubmitEventCommand{
		EventID: "e2", UserID: "alice", Type: "listing_posted",
		PointsDelta: 10, OccurredAt: day(3, 14),
	})
	require.NoError(t, err)

	assert.Contains(t, second.CompletedChallenges, "weekly_sprint")
	// 10 + 10 + 30 награды.
	assert.Equal(t, int64(50), second.Balance)
	// Первый завершённый челлендж каскадом открывает challenger.
	assert.Contains(t, second.UnlockedBadges, "challenger")

	exists, err := st.View().Ledger().Exists(ctx, "challenge:weekly_sprint:alice:reward")
	require.NoError(t, err)
	assert.True(t, exists)

	// Завершённый челлендж заморожен: третье событие ничего не добавляет.
	third, err := h.Handle(ctx, SubmitEventCommand{
		EventID: "e3", UserID: "alice", Type: "listing_posted",
		PointsDelta: 10, OccurredAt: day(4, 12),
	})
	require.NoError(t, err)
	assert.Empty(t, third.CompletedChallenges)

	uc, err := st.View().Challenges().GetProgress(ctx, "alice", "weekly_sprint")
	require.NoError(t, err)
	assert.Equal(t, int64(2), uc.Progress)
	require.NotNil(t, uc.CompletedAt)
}

func TestSubmitEvent_EventOutsideChallengeWindowIgnored(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID: "march_week", Name: "March Week",
		Metric: challenge.MetricEventCount, Threshold: 1,
		WindowStart: day(3, 0), WindowEnd: day(10, 0),
	})
	require.NoError(t, err)
	require.NoError(t, st.View().Challenges().SaveDefinition(ctx, ch))

	res, err := h.Handle(ctx, SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "listing_posted",
		PointsDelta: 10, OccurredAt: day(10, 0),
	})
	require.NoError(t, err)
	assert.Empty(t, res.CompletedChallenges)
}

// ──────────────────────────────────────────────────────────────────────────────
// Replay
// ──────────────────────────────────────────────────────────────────────────────

type derivedState struct {
	points     *points.UserPoints
	streaks    []*streak.UserStreak
	badges     []badge.UserBadge
	challenges []*challenge.UserChallenge
}

func captureDerived(t *testing.T, st *memory.Store, userID shared.UserID) derivedState {
	t.Helper()
	ctx := context.Background()
	repos := st.View()

	up, err := repos.Points().Get(ctx, userID)
	require.NoError(t, err)
	streaks, err := repos.Streaks().ListByUser(ctx, userID)
	require.NoError(t, err)
	badges, err := repos.Badges().ListByUser(ctx, userID)
	require.NoError(t, err)
	progress, err := repos.Challenges().ListProgressByUser(ctx, userID)
	require.NoError(t, err)

	// LastUpdatedAt и UpdatedAt зависят от момента применения и при
	// сравнении состояний не важны.
	up.LastUpdatedAt = time.Time{}
	for _, s := range streaks {
		s.UpdatedAt = time.Time{}
	}
	return derivedState{points: up, streaks: streaks, badges: badges, challenges: progress}
}

func TestReplayLedger_ReproducesDerivedState(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID: "weekly_sprint", Name: "Weekly Sprint",
		Metric: challenge.MetricEventCount, Threshold: 2, EventType: "listing_posted",
		WindowStart: day(3, 0), WindowEnd: day(10, 0), RewardPoints: 15,
	})
	require.NoError(t, err)
	require.NoError(t, st.View().Challenges().SaveDefinition(ctx, ch))

	submissions := []SubmitEventCommand{
		{EventID: "e1", UserID: "alice", Type: "listing_posted", PointsDelta: 10, OccurredAt: day(3, 12)},
		{EventID: "e2", UserID: "alice", Type: "daily_check_in", PointsDelta: 5, OccurredAt: day(4, 9)},
		{EventID: "e3", UserID: "alice", Type: "listing_posted", PointsDelta: 20, OccurredAt: day(5, 12)},
		{EventID: "e4", UserID: "alice", Type: "reversal", PointsDelta: -15, OccurredAt: day(5, 18)},
	}
	for _, cmd := range submissions {
		_, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
	}

	before := captureDerived(t, st, "alice")
	eventsBefore, err := st.View().Ledger().ListAll(ctx)
	require.NoError(t, err)

	replay := NewReplayLedgerHandler(st, points.DefaultLevelTable(), streak.DefaultTypes(), time.UTC, testLogger())
	res, err := replay.Handle(ctx)
	require.NoError(t, err)

	// Переигрываются все события журнала, включая награду за челлендж.
	assert.Equal(t, len(eventsBefore), res.EventsReplayed)
	assert.Equal(t, 1, res.UsersTouched)

	after := captureDerived(t, st, "alice")
	assert.Equal(t, before.points, after.points)
	assert.Equal(t, before.streaks, after.streaks)
	assert.Equal(t, before.badges, after.badges)
	assert.Equal(t, before.challenges, after.challenges)

	// Журнал не изменился: награды не дублируются.
	eventsAfter, err := st.View().Ledger().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, eventsAfter, len(eventsBefore))
}

// ──────────────────────────────────────────────────────────────────────────────
// Leaderboard rebuild
// ──────────────────────────────────────────────────────────────────────────────

func TestRebuildLeaderboards_GlobalAllTime(t *testing.T) {
	st := newTestStore(t, "alice", "bob", "carol")
	h := newSubmitHandler(st)
	ctx := context.Background()

	deltas := map[string]int64{"alice": 100, "carol": 100, "bob": 90}
	for id, delta := range deltas {
		_, err := h.Handle(ctx, SubmitEventCommand{
			EventID: "e-" + id, UserID: id, Type: "listing_posted",
			PointsDelta: delta, OccurredAt: day(3, 12),
		})
		require.NoError(t, err)
	}

	rebuild := NewRebuildLeaderboardsHandler(st, nil, nil, nil, time.UTC, testLogger())
	res, err := rebuild.Handle(ctx, RebuildLeaderboardsCommand{})
	require.NoError(t, err)

	// Глобальный scope на все четыре окна.
	assert.Equal(t, 4, res.SnapshotsBuilt)
	assert.Empty(t, res.Failed)

	snap, err := st.View().Leaderboards().GetLatest(ctx, leaderboard.ScopeGlobal, leaderboard.WindowAllTime)
	require.NoError(t, err)
	require.Equal(t, 3, snap.Count())

	entries := snap.Top(3)
	assert.Equal(t, shared.UserID("alice"), entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, shared.UserID("carol"), entries[1].UserID)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, shared.UserID("bob"), entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestRebuildLeaderboards_ReplacesPreviousSnapshot(t *testing.T) {
	st := newTestStore(t, "alice")
	h := newSubmitHandler(st)
	ctx := context.Background()

	_, err := h.Handle(ctx, SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "listing_posted",
		PointsDelta: 40, OccurredAt: day(3, 12),
	})
	require.NoError(t, err)

	rebuild := NewRebuildLeaderboardsHandler(st, nil, nil, nil, time.UTC, testLogger())
	_, err = rebuild.Handle(ctx, RebuildLeaderboardsCommand{
		Scopes:  []leaderboard.Scope{leaderboard.ScopeGlobal},
		Windows: []leaderboard.Window{leaderboard.WindowAllTime},
	})
	require.NoError(t, err)

	_, err = h.Handle(ctx, SubmitEventCommand{
		EventID: "e2", UserID: "alice", Type: "listing_posted",
		PointsDelta: 60, OccurredAt: day(3, 13),
	})
	require.NoError(t, err)

	_, err = rebuild.Handle(ctx, RebuildLeaderboardsCommand{
		Scopes:  []leaderboard.Scope{leaderboard.ScopeGlobal},
		Windows: []leaderboard.Window{leaderboard.WindowAllTime},
	})
	require.NoError(t, err)

	snap, err := st.View().Leaderboards().GetLatest(ctx, leaderboard.ScopeGlobal, leaderboard.WindowAllTime)
	require.NoError(t, err)
	require.NotNil(t, snap.GetByID("alice"))
	assert.Equal(t, int64(100), snap.GetByID("alice").Score)
}

func TestRegisterUser_CreatesProfile(t *testing.T) {
	st := newTestStore(t)
	h := NewRegisterUserHandler(st, testLogger())
	ctx := context.Background()

	res, err := h.Handle(ctx, RegisterUserCommand{
		UserID: "alice", DisplayName: "Alice", TimeZone: "Asia/Almaty",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "alice", res.UserID)

	profile, err := st.View().Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, "Asia/Almaty", profile.TimeZone)

	// После регистрации события пользователя принимаются.
	submit := newSubmitHandler(st)
	sres, err := submit.Handle(ctx, SubmitEventCommand{
		EventID: "e1", UserID: "alice", Type: "listing_posted",
		PointsDelta: 10, OccurredAt: day(3, 12),
	})
	require.NoError(t, err)
	assert.True(t, sres.Accepted)
}

func TestRegisterUser_RepeatUpdatesProfile(t *testing.T) {
	st := newTestStore(t, "alice")
	h := NewRegisterUserHandler(st, testLogger())
	ctx := context.Background()

	res, err := h.Handle(ctx, RegisterUserCommand{
		UserID: "alice", DisplayName: "Alice Renamed", TimeZone: "Europe/Berlin",
	})
	require.NoError(t, err)
	// Профиль уже был - регистрация стала обновлением.
	assert.False(t, res.Created)

	profile, err := st.View().Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", profile.DisplayName)
	assert.Equal(t, "Europe/Berlin", profile.TimeZone)
}

func TestRegisterUser_Validation(t *testing.T) {
	st := newTestStore(t)
	h := NewRegisterUserHandler(st, testLogger())
	ctx := context.Background()

	_, err := h.Handle(ctx, RegisterUserCommand{UserID: "  ", DisplayName: "Nobody"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, RegisterUserCommand{UserID: "bob", TimeZone: "Neverland/Nowhere"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
