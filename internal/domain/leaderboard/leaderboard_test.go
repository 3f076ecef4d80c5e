package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, s)

	s, err = ParseScope("global")
	require.NoError(t, err)
	assert.True(t, s.IsGlobal())
	assert.Equal(t, "", s.Category())

	s, err = ParseScope("category:electronics")
	require.NoError(t, err)
	assert.False(t, s.IsGlobal())
	assert.Equal(t, "electronics", s.Category())

	_, err = ParseScope("category:")
	assert.Error(t, err)

	_, err = ParseScope("friends")
	assert.Error(t, err)
}

func TestCategoryScope(t *testing.T) {
	s := CategoryScope("books")
	assert.True(t, s.IsValid())
	assert.Equal(t, "books", s.Category())
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("")
	require.NoError(t, err)
	assert.Equal(t, WindowAllTime, w)

	for _, raw := range []string{"all_time", "daily", "weekly", "monthly"} {
		w, err = ParseWindow(raw)
		require.NoError(t, err)
		assert.True(t, w.IsValid())
	}

	_, err = ParseWindow("quarterly")
	assert.Error(t, err)
}

func TestWindow_Range(t *testing.T) {
	// Среда, 12:30.
	now := time.Date(2025, 3, 5, 12, 30, 0, 0, time.UTC)

	r := WindowAllTime.Range(now, time.UTC)
	assert.False(t, r.IsBounded())
	assert.True(t, r.From.IsZero())

	r = WindowDaily.Range(now, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), r.From)

	// Неделя начинается с понедельника.
	r = WindowWeekly.Range(now, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), r.From)

	r = WindowMonthly.Range(now, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), r.From)
}

func TestRanking_CompetitionRanking(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add("alice", 100))
	require.NoError(t, r.Add("bob", 90))
	require.NoError(t, r.Add("carol", 100))

	r.SortAndRank()

	entries := r.All()
	require.Len(t, entries, 3)

	// [100, 100, 90] -> ранги [1, 1, 3]; при равном счёте порядок по ID.
	assert.Equal(t, shared.UserID("alice"), entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, shared.UserID("carol"), entries[1].UserID)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, shared.UserID("bob"), entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestRanking_RejectsDuplicateUser(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add("alice", 100))

	err := r.Add("alice", 50)

	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRanking_LongTieRun(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add("a", 50))
	require.NoError(t, r.Add("b", 50))
	require.NoError(t, r.Add("c", 50))
	require.NoError(t, r.Add("d", 40))

	r.SortAndRank()

	entries := r.All()
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 1, entries[2].Rank)
	assert.Equal(t, 4, entries[3].Rank)
}

func TestSnapshot_TopAndPage(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add("alice", 100))
	require.NoError(t, r.Add("bob", 80))
	require.NoError(t, r.Add("carol", 60))
	r.SortAndRank()

	snap := NewSnapshot("snap-1", ScopeGlobal, WindowAllTime, r, time.Now())

	require.Equal(t, 3, snap.Count())
	assert.False(t, snap.IsEmpty())

	top := snap.Top(2)
	require.Len(t, top, 2)
	assert.Equal(t, shared.UserID("alice"), top[0].UserID)

	assert.Len(t, snap.Top(10), 3)
	assert.Nil(t, snap.Top(0))

	page := snap.Page(shared.Pagination{Limit: 2, Offset: 1})
	require.Len(t, page, 2)
	assert.Equal(t, shared.UserID("bob"), page[0].UserID)

	assert.Nil(t, snap.Page(shared.Pagination{Limit: 10, Offset: 5}))
}

func TestSnapshot_GetByID(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add("alice", 100))
	r.SortAndRank()

	snap := NewSnapshot("snap-1", ScopeGlobal, WindowWeekly, r, time.Now())

	entry := snap.GetByID("alice")
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Rank)
	assert.Nil(t, snap.GetByID("nobody"))
	assert.True(t, snap.Contains("alice"))
}

func TestSnapshot_RebuildIndex(t *testing.T) {
	snap := &Snapshot{
		ID:     "snap-1",
		Scope:  ScopeGlobal,
		Window: WindowAllTime,
		Entries: []*Entry{
			{UserID: "alice", Rank: 1, Score: 100},
			{UserID: "bob", Rank: 2, Score: 90},
		},
	}

	// До переиндексации поиск по ID ничего не находит.
	assert.Nil(t, snap.GetByID("alice"))

	snap.RebuildIndex()

	require.NotNil(t, snap.GetByID("alice"))
	assert.Equal(t, int64(90), snap.GetByID("bob").Score)
}

func TestNewSnapshot_NilRanking(t *testing.T) {
	snap := NewSnapshot("snap-1", ScopeGlobal, WindowDaily, nil, time.Now())

	assert.True(t, snap.IsEmpty())
	assert.Nil(t, snap.GetByID("alice"))
}
