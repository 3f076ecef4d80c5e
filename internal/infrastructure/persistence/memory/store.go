// Package memory implements the storage contract on plain maps. Used by
// tests and by dev mode when no database is configured. A transaction takes
// the whole-store lock and restores a snapshot of the state on error, so
// commit/rollback semantics match the SQL implementation.
package memory

import (
	"context"
	"sync"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

type streakKey struct {
	userID shared.UserID
	typeID string
}

type progressKey struct {
	userID      shared.UserID
	challengeID string
}

type boardKey struct {
	scope  leaderboard.Scope
	window leaderboard.Window
}

// state holds everything the engine persists. Events are immutable after
// append and may be shared between snapshots; all mutable entities are
// cloned on the way in and out.
type state struct {
	profiles map[shared.UserID]*user.Profile

	events   map[ledger.EventID]*ledger.Event
	eventLog []*ledger.Event
	seq      int64

	points  map[shared.UserID]*points.UserPoints
	streaks map[streakKey]*streak.UserStreak

	badgeDefs     map[string]badge.Badge
	badgeDefOrder []string
	unlocks       []badge.UserBadge

	challengeDefs     map[string]*challenge.Challenge
	challengeDefOrder []string
	progress          map[progressKey]*challenge.UserChallenge

	snapshots map[boardKey][]*leaderboard.Snapshot
}

func newState() *state {
	return &state{
		profiles:      make(map[shared.UserID]*user.Profile),
		events:        make(map[ledger.EventID]*ledger.Event),
		points:        make(map[shared.UserID]*points.UserPoints),
		streaks:       make(map[streakKey]*streak.UserStreak),
		badgeDefs:     make(map[string]badge.Badge),
		challengeDefs: make(map[string]*challenge.Challenge),
		progress:      make(map[progressKey]*challenge.UserChallenge),
		snapshots:     make(map[boardKey][]*leaderboard.Snapshot),
	}
}

// clone makes a deep copy for transaction rollback.
func (s *state) clone() *state {
	c := newState()

	for id, p := range s.profiles {
		c.profiles[id] = p.Clone()
	}

	for id, ev := range s.events {
		c.events[id] = ev
	}
	c.eventLog = append([]*ledger.Event(nil), s.eventLog...)
	c.seq = s.seq

	for id, p := range s.points {
		c.points[id] = p.Clone()
	}
	for k, st := range s.streaks {
		c.streaks[k] = st.Clone()
	}

	for id, def := range s.badgeDefs {
		c.badgeDefs[id] = def
	}
	c.badgeDefOrder = append([]string(nil), s.badgeDefOrder...)
	c.unlocks = append([]badge.UserBadge(nil), s.unlocks...)

	for id, def := range s.challengeDefs {
		c.challengeDefs[id] = def
	}
	c.challengeDefOrder = append([]string(nil), s.challengeDefOrder...)
	for k, uc := range s.progress {
		c.progress[k] = uc.Clone()
	}

	for k, snaps := range s.snapshots {
		c.snapshots[k] = append([]*leaderboard.Snapshot(nil), snaps...)
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the in-memory implementation of store.Store.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ store.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// SeedBadges loads badge definitions. Call once at startup.
func (s *Store) SeedBadges(defs []badge.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range defs {
		if _, ok := s.state.badgeDefs[def.ID]; !ok {
			s.state.badgeDefOrder = append(s.state.badgeDefOrder, def.ID)
		}
		s.state.badgeDefs[def.ID] = def
	}
}

// Within runs fn inside a transaction. The whole store is locked for the
// duration; on error every change made by fn is rolled back.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, repos store.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.state.clone()
	if err := fn(ctx, &repoSet{state: s.state}); err != nil {
		s.state = backup
		return err
	}
	return nil
}

// View returns repositories for ad-hoc reads outside a transaction.
// Each repository call locks the store individually.
func (s *Store) View() store.Repos {
	return &repoSet{store: s}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPO SET
// ══════════════════════════════════════════════════════════════════════════════

// repoSet binds repositories either to a transaction (state set, lock held
// by Within) or to the store itself (each call locks on its own).
type repoSet struct {
	state *state
	store *Store
}

var _ store.Repos = (*repoSet)(nil)

// with runs fn against the current state under the appropriate lock.
func (r *repoSet) with(fn func(st *state) error) error {
	if r.state != nil {
		return fn(r.state)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

func (r *repoSet) Users() user.Repository               { return &userRepo{set: r} }
func (r *repoSet) Ledger() ledger.Repository            { return &ledgerRepo{set: r} }
func (r *repoSet) Points() points.Repository            { return &pointsRepo{set: r} }
func (r *repoSet) Streaks() streak.Repository           { return &streakRepo{set: r} }
func (r *repoSet) Badges() badge.Repository             { return &badgeRepo{set: r} }
func (r *repoSet) Challenges() challenge.Repository     { return &challengeRepo{set: r} }
func (r *repoSet) Leaderboards() leaderboard.Repository { return &leaderboardRepo{set: r} }

// ResetDerived wipes all state derived from the ledger. The ledger itself,
// user profiles, definitions and leaderboard snapshots survive.
func (r *repoSet) ResetDerived(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.with(func(st *state) error {
		st.points = make(map[shared.UserID]*points.UserPoints)
		st.streaks = make(map[streakKey]*streak.UserStreak)
		st.unlocks = nil
		st.progress = make(map[progressKey]*challenge.UserChallenge)
		return nil
	})
}
