// Package leaderboard содержит доменную модель лидерборда: scope, окна,
// ранжирование и атомарно заменяемые снапшоты.
package leaderboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE & WINDOW
// ══════════════════════════════════════════════════════════════════════════════

// Scope partitions leaderboards: the global board or one marketplace category.
type Scope string

// ScopeGlobal is the board over all events.
const ScopeGlobal Scope = "global"

const categoryPrefix = "category:"

// CategoryScope returns the scope for one marketplace category.
func CategoryScope(category string) Scope {
	return Scope(categoryPrefix + category)
}

// IsValid checks the scope shape.
func (s Scope) IsValid() bool {
	if s == ScopeGlobal {
		return true
	}
	return strings.HasPrefix(string(s), categoryPrefix) && len(s) > len(categoryPrefix)
}

// IsGlobal reports whether this is the global scope.
func (s Scope) IsGlobal() bool {
	return s == ScopeGlobal
}

// Category returns the category name, empty for the global scope.
func (s Scope) Category() string {
	if s.IsGlobal() {
		return ""
	}
	return strings.TrimPrefix(string(s), categoryPrefix)
}

// String returns the string representation.
func (s Scope) String() string {
	return string(s)
}

// ParseScope validates a raw scope string.
func ParseScope(raw string) (Scope, error) {
	s := Scope(strings.TrimSpace(raw))
	if s == "" {
		s = ScopeGlobal
	}
	if !s.IsValid() {
		return "", shared.ErrInvalidScope
	}
	return s, nil
}

// Window selects the time range a board is scored over.
type Window string

const (
	WindowAllTime Window = "all_time"
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// AllWindows lists every supported window.
func AllWindows() []Window {
	return []Window{WindowAllTime, WindowDaily, WindowWeekly, WindowMonthly}
}

// IsValid checks whether the window is a known one.
func (w Window) IsValid() bool {
	switch w {
	case WindowAllTime, WindowDaily, WindowWeekly, WindowMonthly:
		return true
	}
	return false
}

// String returns the string representation.
func (w Window) String() string {
	return string(w)
}

// ParseWindow validates a raw window string.
func ParseWindow(raw string) (Window, error) {
	w := Window(strings.TrimSpace(raw))
	if w == "" {
		w = WindowAllTime
	}
	if !w.IsValid() {
		return "", shared.ErrInvalidWindow
	}
	return w, nil
}

// Range returns the scored time range for the window, relative to now in the
// given location. The all-time window is unbounded.
func (w Window) Range(now time.Time, loc *time.Location) shared.TimeRange {
	switch w {
	case WindowDaily:
		return shared.TimeRange{From: timeutil.StartOfDay(now, loc)}
	case WindowWeekly:
		return shared.TimeRange{From: timeutil.StartOfWeek(now, loc)}
	case WindowMonthly:
		return shared.TimeRange{From: timeutil.StartOfMonth(now, loc)}
	default:
		return shared.TimeRange{}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRIES & RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one ranked row of a snapshot.
type Entry struct {
	UserID shared.UserID
	Rank   int
	Score  int64
}

// Clone returns a copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// String returns a short human-readable description.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry{#%d %s score=%d}", e.Rank, e.UserID, e.Score)
}

// Ranking накапливает строки и присваивает ранги по схеме competition
// ranking: одинаковый score = одинаковый ранг, следующий отличный score
// получает ранг своей позиции (scores [100, 100, 90] -> ranks [1, 1, 3]).
type Ranking struct {
	entries []*Entry
	byID    map[shared.UserID]*Entry
}

// NewRanking creates an empty ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.UserID]*Entry),
	}
}

// Add appends an unranked entry. Duplicate users are rejected.
func (r *Ranking) Add(userID shared.UserID, score int64) error {
	if _, exists := r.byID[userID]; exists {
		return shared.NewDomainError("leaderboard", "Add", shared.ErrAlreadyExists, "user already ranked")
	}
	entry := &Entry{UserID: userID, Score: score}
	r.entries = append(r.entries, entry)
	r.byID[userID] = entry
	return nil
}

// SortAndRank сортирует по убыванию score и присваивает ранги.
func (r *Ranking) SortAndRank() {
	sort.Slice(r.entries, func(i, j int) bool {
		// По убыванию score
		if r.entries[i].Score != r.entries[j].Score {
			return r.entries[i].Score > r.entries[j].Score
		}
		// При равном score - по ID (детерминированный порядок)
		return r.entries[i].UserID < r.entries[j].UserID
	})

	// Присваиваем ранги с учётом "shared rank" (одинаковый score = одинаковый ранг)
	currentRank := 1
	for i, entry := range r.entries {
		if i > 0 && entry.Score == r.entries[i-1].Score {
			entry.Rank = r.entries[i-1].Rank
		} else {
			entry.Rank = currentRank
		}
		currentRank = i + 2 // Следующий "реальный" ранг
	}
}

// GetByID возвращает запись по ID пользователя.
func (r *Ranking) GetByID(userID shared.UserID) *Entry {
	return r.byID[userID]
}

// All возвращает все записи в текущем порядке.
func (r *Ranking) All() []*Entry {
	result := make([]*Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Len возвращает количество записей.
func (r *Ranking) Len() int {
	return len(r.entries)
}
