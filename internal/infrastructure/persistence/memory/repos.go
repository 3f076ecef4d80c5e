package memory

import (
	"context"
	"sort"
	"time"

	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/domain/user"
)

// ──────────────────────────────────────────────────────────────────────────────
// Users
// ──────────────────────────────────────────────────────────────────────────────

type userRepo struct{ set *repoSet }

var _ user.Repository = (*userRepo)(nil)

func (r *userRepo) Create(ctx context.Context, profile *user.Profile) error {
	return r.set.with(func(st *state) error {
		if _, ok := st.profiles[profile.ID]; ok {
			return shared.WrapError("user", "Create", shared.ErrAlreadyExists, "profile already exists", shared.ErrAlreadyExists)
		}
		st.profiles[profile.ID] = profile.Clone()
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id shared.UserID) (*user.Profile, error) {
	var out *user.Profile
	err := r.set.with(func(st *state) error {
		p, ok := st.profiles[id]
		if !ok {
			return shared.WrapError("user", "GetByID", shared.ErrNotFound, "profile not found", shared.ErrUnknownUser)
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r *userRepo) Exists(ctx context.Context, id shared.UserID) (bool, error) {
	var exists bool
	err := r.set.with(func(st *state) error {
		_, exists = st.profiles[id]
		return nil
	})
	return exists, err
}

func (r *userRepo) Update(ctx context.Context, profile *user.Profile) error {
	return r.set.with(func(st *state) error {
		if _, ok := st.profiles[profile.ID]; !ok {
			return shared.WrapError("user", "Update", shared.ErrNotFound, "profile not found", shared.ErrUnknownUser)
		}
		st.profiles[profile.ID] = profile.Clone()
		return nil
	})
}

func (r *userRepo) ListIDs(ctx context.Context) ([]shared.UserID, error) {
	var ids []shared.UserID
	err := r.set.with(func(st *state) error {
		ids = make([]shared.UserID, 0, len(st.profiles))
		for id := range st.profiles {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return nil
	})
	return ids, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

type ledgerRepo struct{ set *repoSet }

var _ ledger.Repository = (*ledgerRepo)(nil)

func (r *ledgerRepo) Append(ctx context.Context, event *ledger.Event) error {
	return r.set.with(func(st *state) error {
		if _, ok := st.events[event.ID]; ok {
			return shared.WrapError("ledger", "Append", shared.ErrAlreadyProcessed, "event already recorded", shared.ErrDuplicateEvent)
		}
		st.seq++
		stored := event.Clone()
		stored.Seq = st.seq
		stored.RecordedAt = time.Now().UTC()
		st.events[stored.ID] = stored
		st.eventLog = append(st.eventLog, stored)

		// Seq и RecordedAt видны вызывающей стороне, как RETURNING в SQL.
		event.Seq = stored.Seq
		event.RecordedAt = stored.RecordedAt
		return nil
	})
}

func (r *ledgerRepo) GetByID(ctx context.Context, id ledger.EventID) (*ledger.Event, error) {
	var out *ledger.Event
	err := r.set.with(func(st *state) error {
		ev, ok := st.events[id]
		if !ok {
			return shared.WrapError("ledger", "GetByID", shared.ErrNotFound, "event not found", shared.ErrEventNotFound)
		}
		out = ev.Clone()
		return nil
	})
	return out, err
}

func (r *ledgerRepo) Exists(ctx context.Context, id ledger.EventID) (bool, error) {
	var exists bool
	err := r.set.with(func(st *state) error {
		_, exists = st.events[id]
		return nil
	})
	return exists, err
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID shared.UserID) ([]*ledger.Event, error) {
	var out []*ledger.Event
	err := r.set.with(func(st *state) error {
		for _, ev := range st.eventLog {
			if ev.UserID == userID {
				out = append(out, ev.Clone())
			}
		}
		ledger.SortForReplay(out)
		return nil
	})
	return out, err
}

func (r *ledgerRepo) ListAll(ctx context.Context) ([]*ledger.Event, error) {
	var out []*ledger.Event
	err := r.set.with(func(st *state) error {
		out = make([]*ledger.Event, 0, len(st.eventLog))
		for _, ev := range st.eventLog {
			out = append(out, ev.Clone())
		}
		ledger.SortForReplay(out)
		return nil
	})
	return out, err
}

func (r *ledgerRepo) CountByUserAndType(ctx context.Context, userID shared.UserID, eventType ledger.EventType) (int64, error) {
	var n int64
	err := r.set.with(func(st *state) error {
		for _, ev := range st.eventLog {
			if ev.UserID != userID {
				continue
			}
			if eventType != "" && ev.Type != eventType {
				continue
			}
			n++
		}
		return nil
	})
	return n, err
}

func (r *ledgerRepo) CountByUserSince(ctx context.Context, userID shared.UserID, since time.Time) (int64, error) {
	var n int64
	err := r.set.with(func(st *state) error {
		for _, ev := range st.eventLog {
			if ev.UserID == userID && !ev.OccurredAt.Before(since) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *ledgerRepo) Summary(ctx context.Context, userID shared.UserID) (ledger.ActivitySummary, error) {
	var summary ledger.ActivitySummary
	err := r.set.with(func(st *state) error {
		for _, ev := range st.eventLog {
			if ev.UserID != userID {
				continue
			}
			summary.TotalEvents++
			if ev.OccurredAt.After(summary.LastEventAt) {
				summary.LastEventAt = ev.OccurredAt
			}
		}
		return nil
	})
	return summary, err
}

func (r *ledgerRepo) ScoresInRange(ctx context.Context, category string, rng shared.TimeRange) ([]ledger.UserScore, error) {
	var out []ledger.UserScore
	err := r.set.with(func(st *state) error {
		totals := make(map[shared.UserID]int64)
		for _, ev := range st.eventLog {
			if ev.PointsDelta <= 0 {
				continue
			}
			if !rng.Contains(ev.OccurredAt) {
				continue
			}
			if category != "" && ev.Category() != category {
				continue
			}
			totals[ev.UserID] += ev.PointsDelta
		}
		out = make([]ledger.UserScore, 0, len(totals))
		for id, score := range totals {
			out = append(out, ledger.UserScore{UserID: id, Score: score})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Score != out[j].Score {
				return out[i].Score > out[j].Score
			}
			return out[i].UserID < out[j].UserID
		})
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Points
// ──────────────────────────────────────────────────────────────────────────────

type pointsRepo struct{ set *repoSet }

var _ points.Repository = (*pointsRepo)(nil)

func (r *pointsRepo) Get(ctx context.Context, userID shared.UserID) (*points.UserPoints, error) {
	var out *points.UserPoints
	err := r.set.with(func(st *state) error {
		p, ok := st.points[userID]
		if !ok {
			return shared.WrapError("points", "Get", shared.ErrNotFound, "no points for user", shared.ErrPointsNotFound)
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r *pointsRepo) Save(ctx context.Context, p *points.UserPoints) error {
	return r.set.with(func(st *state) error {
		st.points[p.UserID] = p.Clone()
		return nil
	})
}

func (r *pointsRepo) AllBalances(ctx context.Context) ([]*points.UserPoints, error) {
	var out []*points.UserPoints
	err := r.set.with(func(st *state) error {
		out = make([]*points.UserPoints, 0, len(st.points))
		for _, p := range st.points {
			out = append(out, p.Clone())
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Balance != out[j].Balance {
				return out[i].Balance > out[j].Balance
			}
			return out[i].UserID < out[j].UserID
		})
		return nil
	})
	return out, err
}

func (r *pointsRepo) DeleteAll(ctx context.Context) error {
	return r.set.with(func(st *state) error {
		st.points = make(map[shared.UserID]*points.UserPoints)
		return nil
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Streaks
// ──────────────────────────────────────────────────────────────────────────────

type streakRepo struct{ set *repoSet }

var _ streak.Repository = (*streakRepo)(nil)

func (r *streakRepo) Get(ctx context.Context, userID shared.UserID, typeID string) (*streak.UserStreak, error) {
	var out *streak.UserStreak
	err := r.set.with(func(st *state) error {
		s, ok := st.streaks[streakKey{userID: userID, typeID: typeID}]
		if !ok {
			return shared.WrapError("streak", "Get", shared.ErrNotFound, "no streak for user", shared.ErrStreakNotFound)
		}
		out = s.Clone()
		return nil
	})
	return out, err
}

func (r *streakRepo) ListByUser(ctx context.Context, userID shared.UserID) ([]*streak.UserStreak, error) {
	var out []*streak.UserStreak
	err := r.set.with(func(st *state) error {
		for k, s := range st.streaks {
			if k.userID == userID {
				out = append(out, s.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
		return nil
	})
	return out, err
}

func (r *streakRepo) Save(ctx context.Context, s *streak.UserStreak) error {
	return r.set.with(func(st *state) error {
		st.streaks[streakKey{userID: s.UserID, typeID: s.TypeID}] = s.Clone()
		return nil
	})
}

func (r *streakRepo) DeleteAll(ctx context.Context) error {
	return r.set.with(func(st *state) error {
		st.streaks = make(map[streakKey]*streak.UserStreak)
		return nil
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Badges
// ──────────────────────────────────────────────────────────────────────────────

type badgeRepo struct{ set *repoSet }

var _ badge.Repository = (*badgeRepo)(nil)

func (r *badgeRepo) ListDefinitions(ctx context.Context) ([]badge.Badge, error) {
	var out []badge.Badge
	err := r.set.with(func(st *state) error {
		out = make([]badge.Badge, 0, len(st.badgeDefOrder))
		for _, id := range st.badgeDefOrder {
			out = append(out, st.badgeDefs[id])
		}
		return nil
	})
	return out, err
}

func (r *badgeRepo) GetDefinition(ctx context.Context, badgeID string) (badge.Badge, error) {
	var out badge.Badge
	err := r.set.with(func(st *state) error {
		def, ok := st.badgeDefs[badgeID]
		if !ok {
			return shared.WrapError("badge", "GetDefinition", shared.ErrNotFound, "badge not found", shared.ErrBadgeNotFound)
		}
		out = def
		return nil
	})
	return out, err
}

func (r *badgeRepo) ListByUser(ctx context.Context, userID shared.UserID) ([]badge.UserBadge, error) {
	var out []badge.UserBadge
	err := r.set.with(func(st *state) error {
		for _, u := range st.unlocks {
			if u.UserID == userID {
				out = append(out, u)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
				return out[i].UnlockedAt.Before(out[j].UnlockedAt)
			}
			return out[i].BadgeID < out[j].BadgeID
		})
		return nil
	})
	return out, err
}

func (r *badgeRepo) HasBadge(ctx context.Context, userID shared.UserID, badgeID string) (bool, error) {
	var owned bool
	err := r.set.with(func(st *state) error {
		for _, u := range st.unlocks {
			if u.UserID == userID && u.BadgeID == badgeID {
				owned = true
				return nil
			}
		}
		return nil
	})
	return owned, err
}

func (r *badgeRepo) CountUnlocks(ctx context.Context, userID shared.UserID, badgeID string) (int, error) {
	var n int
	err := r.set.with(func(st *state) error {
		for _, u := range st.unlocks {
			if u.UserID == userID && u.BadgeID == badgeID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *badgeRepo) SaveUnlock(ctx context.Context, unlock badge.UserBadge) error {
	return r.set.with(func(st *state) error {
		def, ok := st.badgeDefs[unlock.BadgeID]
		if !ok {
			return shared.WrapError("badge", "SaveUnlock", shared.ErrNotFound, "badge not found", shared.ErrBadgeNotFound)
		}
		if !def.Repeatable {
			for _, u := range st.unlocks {
				if u.UserID == unlock.UserID && u.BadgeID == unlock.BadgeID {
					return shared.WrapError("badge", "SaveUnlock", shared.ErrAlreadyExists, "badge already owned", shared.ErrBadgeAlreadyOwned)
				}
			}
		}
		st.unlocks = append(st.unlocks, unlock)
		return nil
	})
}

func (r *badgeRepo) DeleteAllUnlocks(ctx context.Context) error {
	return r.set.with(func(st *state) error {
		st.unlocks = nil
		return nil
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Challenges
// ──────────────────────────────────────────────────────────────────────────────

type challengeRepo struct{ set *repoSet }

var _ challenge.Repository = (*challengeRepo)(nil)

func (r *challengeRepo) ListDefinitions(ctx context.Context) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	err := r.set.with(func(st *state) error {
		out = make([]*challenge.Challenge, 0, len(st.challengeDefOrder))
		for _, id := range st.challengeDefOrder {
			out = append(out, st.challengeDefs[id].Clone())
		}
		return nil
	})
	return out, err
}

func (r *challengeRepo) ListActiveAt(ctx context.Context, t time.Time) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	err := r.set.with(func(st *state) error {
		for _, id := range st.challengeDefOrder {
			if ch := st.challengeDefs[id]; ch.IsActiveAt(t) {
				out = append(out, ch.Clone())
			}
		}
		return nil
	})
	return out, err
}

func (r *challengeRepo) GetDefinition(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	var out *challenge.Challenge
	err := r.set.with(func(st *state) error {
		ch, ok := st.challengeDefs[challengeID]
		if !ok {
			return shared.WrapError("challenge", "GetDefinition", shared.ErrNotFound, "challenge not found", shared.ErrChallengeNotFound)
		}
		out = ch.Clone()
		return nil
	})
	return out, err
}

func (r *challengeRepo) SaveDefinition(ctx context.Context, c *challenge.Challenge) error {
	return r.set.with(func(st *state) error {
		if _, ok := st.challengeDefs[c.ID]; !ok {
			st.challengeDefOrder = append(st.challengeDefOrder, c.ID)
		}
		st.challengeDefs[c.ID] = c.Clone()
		return nil
	})
}

func (r *challengeRepo) GetProgress(ctx context.Context, userID shared.UserID, challengeID string) (*challenge.UserChallenge, error) {
	var out *challenge.UserChallenge
	err := r.set.with(func(st *state) error {
		uc, ok := st.progress[progressKey{userID: userID, challengeID: challengeID}]
		if !ok {
			return shared.WrapError("challenge", "GetProgress", shared.ErrNotFound, "no progress for user", shared.ErrNotFound)
		}
		out = uc.Clone()
		return nil
	})
	return out, err
}

func (r *challengeRepo) ListProgressByUser(ctx context.Context, userID shared.UserID) ([]*challenge.UserChallenge, error) {
	var out []*challenge.UserChallenge
	err := r.set.with(func(st *state) error {
		for k, uc := range st.progress {
			if k.userID == userID {
				out = append(out, uc.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ChallengeID < out[j].ChallengeID })
		return nil
	})
	return out, err
}

func (r *challengeRepo) CountCompleted(ctx context.Context, userID shared.UserID) (int64, error) {
	var n int64
	err := r.set.with(func(st *state) error {
		for k, uc := range st.progress {
			if k.userID == userID && uc.CompletedAt != nil {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *challengeRepo) SaveProgress(ctx context.Context, uc *challenge.UserChallenge) error {
	return r.set.with(func(st *state) error {
		st.progress[progressKey{userID: uc.UserID, challengeID: uc.ChallengeID}] = uc.Clone()
		return nil
	})
}

func (r *challengeRepo) DeleteAllProgress(ctx context.Context) error {
	return r.set.with(func(st *state) error {
		st.progress = make(map[progressKey]*challenge.UserChallenge)
		return nil
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Leaderboards
// ──────────────────────────────────────────────────────────────────────────────

type leaderboardRepo struct{ set *repoSet }

var _ leaderboard.Repository = (*leaderboardRepo)(nil)

func (r *leaderboardRepo) ReplaceSnapshot(ctx context.Context, snapshot *leaderboard.Snapshot) error {
	return r.set.with(func(st *state) error {
		key := boardKey{scope: snapshot.Scope, window: snapshot.Window}
		st.snapshots[key] = append(st.snapshots[key], snapshot)
		return nil
	})
}

func (r *leaderboardRepo) GetLatest(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window) (*leaderboard.Snapshot, error) {
	var out *leaderboard.Snapshot
	err := r.set.with(func(st *state) error {
		snaps := st.snapshots[boardKey{scope: scope, window: window}]
		if len(snaps) == 0 {
			return shared.WrapError("leaderboard", "GetLatest", shared.ErrNotFound, "no snapshot yet", shared.ErrSnapshotNotFound)
		}
		out = snaps[len(snaps)-1]
		return nil
	})
	return out, err
}

func (r *leaderboardRepo) ListMeta(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, from, to time.Time) ([]leaderboard.SnapshotMeta, error) {
	var out []leaderboard.SnapshotMeta
	err := r.set.with(func(st *state) error {
		for _, snap := range st.snapshots[boardKey{scope: scope, window: window}] {
			if !from.IsZero() && snap.GeneratedAt.Before(from) {
				continue
			}
			if !to.IsZero() && !snap.GeneratedAt.Before(to) {
				continue
			}
			out = append(out, snap.ToMeta())
		}
		return nil
	})
	return out, err
}

func (r *leaderboardRepo) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	var pruned int
	err := r.set.with(func(st *state) error {
		if keep < 1 {
			keep = 1
		}
		for key, snaps := range st.snapshots {
			if len(snaps) <= keep {
				continue
			}
			pruned += len(snaps) - keep
			st.snapshots[key] = append([]*leaderboard.Snapshot(nil), snaps[len(snaps)-keep:]...)
		}
		return nil
	})
	return pruned, err
}
