package points

import (
	"sort"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVELS
// ══════════════════════════════════════════════════════════════════════════════

// Level is one tier of the threshold table.
type Level struct {
	Tier      int
	MinPoints int64
	Label     string
}

// LevelTable is an ordered sequence of levels. MinPoints must be strictly
// increasing and start at 0 for tier 1.
type LevelTable []Level

// Validate checks the table invariants.
func (t LevelTable) Validate() error {
	if len(t) == 0 {
		return shared.NewDomainError("points", "Validate", shared.ErrInvalidInput, "level table is empty")
	}
	if t[0].Tier != 1 || t[0].MinPoints != 0 {
		return shared.ErrInvalidLevels
	}
	for i := 1; i < len(t); i++ {
		if t[i].Tier != t[i-1].Tier+1 {
			return shared.ErrInvalidLevels
		}
		if t[i].MinPoints <= t[i-1].MinPoints {
			return shared.ErrInvalidLevels
		}
	}
	return nil
}

// UserLevel is derived state: recomputed on every balance change, never
// stored as independent truth.
type UserLevel struct {
	UserID          shared.UserID
	CurrentTier     int
	Label           string
	PointsIntoLevel int64
	PointsToNext    int64 // zero at the top tier
}

// Resolve returns the highest tier whose MinPoints <= balance.
// Pure function: deterministic, no side effects, callable standalone.
func (t LevelTable) Resolve(balance int64) (tier int, label string) {
	// Binary search over the sorted thresholds.
	idx := sort.Search(len(t), func(i int) bool {
		return t[i].MinPoints > balance
	}) - 1
	if idx < 0 {
		idx = 0
	}
	return t[idx].Tier, t[idx].Label
}

// ResolveFor derives the full UserLevel view for a balance.
func (t LevelTable) ResolveFor(userID shared.UserID, balance int64) UserLevel {
	tier, label := t.Resolve(balance)
	lvl := UserLevel{
		UserID:      userID,
		CurrentTier: tier,
		Label:       label,
	}
	idx := tier - t[0].Tier
	lvl.PointsIntoLevel = balance - t[idx].MinPoints
	if idx+1 < len(t) {
		lvl.PointsToNext = t[idx+1].MinPoints - balance
	}
	return lvl
}

// DefaultLevelTable returns the built-in marketplace level thresholds.
func DefaultLevelTable() LevelTable {
	return LevelTable{
		{Tier: 1, MinPoints: 0, Label: "Newcomer"},
		{Tier: 2, MinPoints: 100, Label: "Contributor"},
		{Tier: 3, MinPoints: 250, Label: "Regular"},
		{Tier: 4, MinPoints: 500, Label: "Trusted"},
		{Tier: 5, MinPoints: 1000, Label: "Expert"},
		{Tier: 6, MinPoints: 2500, Label: "Elite"},
		{Tier: 7, MinPoints: 5000, Label: "Legend"},
	}
}
