package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserPoints_Apply(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewUserPoints("user-1")

	applied := p.Apply(100, now)
	assert.Equal(t, int64(100), applied)
	assert.Equal(t, int64(100), p.Balance)
	assert.Equal(t, int64(100), p.LifetimeEarned)

	applied = p.Apply(-30, now)
	assert.Equal(t, int64(-30), applied)
	assert.Equal(t, int64(70), p.Balance)
	// Отрицательные дельты не трогают lifetime_earned.
	assert.Equal(t, int64(100), p.LifetimeEarned)
}

func TestUserPoints_Apply_ClampsAtZero(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewUserPoints("user-1")
	p.Apply(50, now)

	applied := p.Apply(-200, now)

	assert.Equal(t, int64(0), p.Balance)
	// Фактически списано только то, что было на балансе.
	assert.Equal(t, int64(-50), applied)
	assert.Equal(t, int64(50), p.LifetimeEarned)
}

func TestUserPoints_Apply_NegativeOnEmptyBalance(t *testing.T) {
	p := NewUserPoints("user-1")

	applied := p.Apply(-10, time.Now())

	assert.Equal(t, int64(0), applied)
	assert.Equal(t, int64(0), p.Balance)
	assert.Equal(t, int64(0), p.LifetimeEarned)
}

func TestLevelTable_Resolve(t *testing.T) {
	table := DefaultLevelTable()
	require.NoError(t, table.Validate())

	tier, label := table.Resolve(0)
	assert.Equal(t, 1, tier)
	assert.Equal(t, "Newcomer", label)

	tier, _ = table.Resolve(99)
	assert.Equal(t, 1, tier)

	// Порог включительный: min_points <= balance.
	tier, label = table.Resolve(100)
	assert.Equal(t, 2, tier)
	assert.Equal(t, "Contributor", label)

	tier, label = table.Resolve(999999)
	assert.Equal(t, 7, tier)
	assert.Equal(t, "Legend", label)
}

func TestLevelTable_ResolveFor(t *testing.T) {
	table := DefaultLevelTable()

	lvl := table.ResolveFor("user-1", 120)

	assert.Equal(t, 2, lvl.CurrentTier)
	assert.Equal(t, int64(20), lvl.PointsIntoLevel)
	assert.Equal(t, int64(130), lvl.PointsToNext)
}

func TestLevelTable_ResolveFor_TopTierHasNoNext(t *testing.T) {
	table := DefaultLevelTable()

	lvl := table.ResolveFor("user-1", 10000)

	assert.Equal(t, 7, lvl.CurrentTier)
	assert.Equal(t, int64(0), lvl.PointsToNext)
}

func TestLevelTable_Validate(t *testing.T) {
	assert.Error(t, LevelTable{}.Validate())

	// Первый уровень обязан начинаться с нуля.
	bad := LevelTable{{Tier: 1, MinPoints: 10}}
	assert.Error(t, bad.Validate())

	// Пороги должны строго возрастать.
	bad = LevelTable{
		{Tier: 1, MinPoints: 0},
		{Tier: 2, MinPoints: 100},
		{Tier: 3, MinPoints: 100},
	}
	assert.Error(t, bad.Validate())

	good := LevelTable{
		{Tier: 1, MinPoints: 0},
		{Tier: 2, MinPoints: 100},
	}
	assert.NoError(t, good.Validate())
}
