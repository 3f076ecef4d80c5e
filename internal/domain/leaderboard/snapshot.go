package leaderboard

import (
	"fmt"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot представляет лидерборд для пары (scope, window) в момент времени.
// Снапшот - это производное, атомарно заменяемое представление: каждое
// перестроение полностью заменяет предыдущий снапшот, читатели никогда не
// видят частично построенный.
type Snapshot struct {
	// ID - уникальный идентификатор снапшота.
	ID string

	Scope  Scope
	Window Window

	// GeneratedAt - время построения.
	GeneratedAt time.Time

	// Entries - записи, отсортированные по рангу.
	Entries []*Entry

	// byID - индекс для быстрого поиска по ID.
	byID map[shared.UserID]*Entry
}

// NewSnapshot строит снапшот из Ranking (ранги уже присвоены).
func NewSnapshot(id string, scope Scope, window Window, ranking *Ranking, generatedAt time.Time) *Snapshot {
	s := &Snapshot{
		ID:          id,
		Scope:       scope,
		Window:      window,
		GeneratedAt: generatedAt,
		Entries:     make([]*Entry, 0),
		byID:        make(map[shared.UserID]*Entry),
	}
	if ranking == nil {
		return s
	}
	s.Entries = ranking.All()
	for _, entry := range s.Entries {
		s.byID[entry.UserID] = entry
	}
	return s
}

// GetByID возвращает запись по ID пользователя, nil если её нет.
func (s *Snapshot) GetByID(userID shared.UserID) *Entry {
	if s.byID == nil {
		return nil
	}
	return s.byID[userID]
}

// Contains проверяет, есть ли пользователь в снапшоте.
func (s *Snapshot) Contains(userID shared.UserID) bool {
	return s.GetByID(userID) != nil
}

// Top возвращает топ-N записей.
func (s *Snapshot) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	result := make([]*Entry, n)
	copy(result, s.Entries[:n])
	return result
}

// Page возвращает страницу записей по limit/offset.
func (s *Snapshot) Page(p shared.Pagination) []*Entry {
	if p.Offset >= len(s.Entries) {
		return nil
	}
	to := p.Offset + p.Limit
	if to > len(s.Entries) {
		to = len(s.Entries)
	}
	result := make([]*Entry, to-p.Offset)
	copy(result, s.Entries[p.Offset:to])
	return result
}

// IsEmpty возвращает true, если снапшот пуст.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Entries) == 0
}

// Count возвращает количество записей.
func (s *Snapshot) Count() int {
	return len(s.Entries)
}

// RebuildIndex перестраивает внутренний индекс byID.
// Используется после десериализации из БД.
func (s *Snapshot) RebuildIndex() {
	s.byID = make(map[shared.UserID]*Entry, len(s.Entries))
	for _, entry := range s.Entries {
		s.byID[entry.UserID] = entry
	}
}

// String возвращает строковое представление для логирования.
func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{%s %s/%s entries=%d at=%s}",
		s.ID, s.Scope, s.Window, len(s.Entries), s.GeneratedAt.Format(time.RFC3339))
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT METADATA (for storage)
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotMeta содержит метаданные снапшота без самих записей.
type SnapshotMeta struct {
	ID          string
	Scope       Scope
	Window      Window
	GeneratedAt time.Time
	EntryCount  int
}

// ToMeta преобразует снапшот в метаданные.
func (s *Snapshot) ToMeta() SnapshotMeta {
	return SnapshotMeta{
		ID:          s.ID,
		Scope:       s.Scope,
		Window:      s.Window,
		GeneratedAt: s.GeneratedAt,
		EntryCount:  len(s.Entries),
	}
}
