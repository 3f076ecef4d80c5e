// Package store defines the unit-of-work contract the application layer
// runs against. Implementations live in infrastructure/persistence: the
// postgres store binds repositories to one transaction, the memory store
// backs tests and dev mode.
package store

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/domain/user"
)

// Repos bundles the domain repositories visible inside one unit of work.
type Repos interface {
	Users() user.Repository
	Ledger() ledger.Repository
	Points() points.Repository
	Streaks() streak.Repository
	Badges() badge.Repository
	Challenges() challenge.Repository
	Leaderboards() leaderboard.Repository

	// ResetDerived wipes every derived aggregate (points, streaks, badge
	// unlocks, challenge progress) while leaving the ledger and the
	// definition catalogues intact. Used before a replay.
	ResetDerived(ctx context.Context) error
}

// Store provides transactional access to the repositories.
type Store interface {
	// Within runs fn inside one transaction. Either every write commits
	// or none do. A returned error rolls the transaction back.
	Within(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error

	// View exposes the repositories outside a transaction, for reads.
	View() Repos
}
