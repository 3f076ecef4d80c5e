// Package points implements the points accumulator: per-user balances,
// lifetime earnings, and the level resolver over a monotonic threshold table.
package points

import (
	"fmt"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER POINTS
// ══════════════════════════════════════════════════════════════════════════════

// UserPoints является единственным владельцем баланса пользователя.
// Инварианты: Balance >= 0 всегда; LifetimeEarned монотонно не убывает.
type UserPoints struct {
	UserID         shared.UserID
	Balance        int64
	LifetimeEarned int64
	LastUpdatedAt  time.Time
}

// NewUserPoints creates an empty points record for a user.
func NewUserPoints(userID shared.UserID) *UserPoints {
	return &UserPoints{UserID: userID}
}

// Apply mutates the balance by delta, clamping at zero, and credits
// LifetimeEarned with max(delta, 0). Reversals reduce the balance but never
// lifetime earnings. Returns the delta actually applied to the balance.
func (p *UserPoints) Apply(delta int64, at time.Time) int64 {
	before := p.Balance
	p.Balance += delta
	if p.Balance < 0 {
		p.Balance = 0
	}
	if delta > 0 {
		p.LifetimeEarned += delta
	}
	p.LastUpdatedAt = at
	return p.Balance - before
}

// Clone returns a deep copy.
func (p *UserPoints) Clone() *UserPoints {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// String returns a short human-readable description.
func (p *UserPoints) String() string {
	return fmt.Sprintf("UserPoints{%s balance=%d lifetime=%d}", p.UserID, p.Balance, p.LifetimeEarned)
}
