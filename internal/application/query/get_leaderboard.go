// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Отдаёт страницу последнего опубликованного снапшота для пары (scope, window).
// Снапшот атомарен: читатель видит либо целиком старый, либо целиком новый.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Scope - "global" или "category:<name>" (пустая строка = global).
	Scope string

	// Window - all_time, daily, weekly, monthly (пустая строка = all_time).
	Window string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int

	// UserID - если задан, в результат добавляется позиция этого пользователя
	// независимо от страницы.
	UserID string
}

// LeaderboardEntryDTO - одна строка лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1). Равные очки делят позицию,
	// следующая позиция пропускается: 100, 100, 90 -> 1, 1, 3.
	Rank int `json:"rank"`

	// UserID - пользователь.
	UserID string `json:"user_id"`

	// Score - очки в рамках окна.
	Score int64 `json:"score"`
}

// GetLeaderboardResult содержит страницу лидерборда.
type GetLeaderboardResult struct {
	// Scope и Window - нормализованные параметры запроса.
	Scope  string `json:"scope"`
	Window string `json:"window"`

	// Available - false, если снапшот ещё ни разу не собирался.
	Available bool `json:"available"`

	// Entries - запрошенная страница.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - общее количество участников в снапшоте.
	TotalCount int `json:"total_count"`

	// OwnEntry - позиция запрашивающего пользователя (если задан и найден).
	OwnEntry *LeaderboardEntryDTO `json:"own_entry,omitempty"`

	// GeneratedAt - когда снапшот был собран.
	GeneratedAt time.Time `json:"generated_at"`

	// HasMore - есть ли ещё записи после текущей страницы.
	HasMore bool `json:"has_more"`
}

// LeaderboardCacheReader читает горячую верхушку борда из кеша.
// nil отключает кеш, запросы идут прямо в снапшот.
type LeaderboardCacheReader interface {
	GetTop(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, n int) ([]*leaderboard.Entry, time.Time, error)
}

// GetLeaderboardHandler обрабатывает запросы лидерборда.
type GetLeaderboardHandler struct {
	store store.Store
	cache LeaderboardCacheReader
}

// NewGetLeaderboardHandler создаёт обработчик запроса лидерборда.
func NewGetLeaderboardHandler(st store.Store, cache LeaderboardCacheReader) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{store: st, cache: cache}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	scope, err := leaderboard.ParseScope(query.Scope)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "GetLeaderboard", shared.ErrValidation, "invalid scope", err)
	}
	window, err := leaderboard.ParseWindow(query.Window)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "GetLeaderboard", shared.ErrValidation, "invalid window", err)
	}
	page := shared.Pagination{Limit: query.Limit, Offset: query.Offset}.Normalize(20, 100)

	result := &GetLeaderboardResult{
		Scope:  scope.String(),
		Window: window.String(),
	}

	// Верхние страницы обслуживаются из кеша, если он успевает.
	if entries, generatedAt, ok := h.tryCache(ctx, scope, window, page); ok {
		result.Available = true
		result.Entries = entries
		result.GeneratedAt = generatedAt
		// Кеш не знает полный размер борда, добираем из снапшота.
		snapshot, err := h.store.View().Leaderboards().GetLatest(ctx, scope, window)
		if err == nil {
			result.TotalCount = snapshot.Count()
			result.HasMore = page.Offset+len(entries) < snapshot.Count()
			h.attachOwnEntry(result, snapshot, query.UserID)
		}
		return result, nil
	}

	snapshot, err := h.store.View().Leaderboards().GetLatest(ctx, scope, window)
	if err != nil {
		if errors.Is(err, shared.ErrSnapshotNotFound) {
			// Борд ещё не собирался: пустой результат, не ошибка.
			return result, nil
		}
		return nil, err
	}

	result.Available = true
	result.GeneratedAt = snapshot.GeneratedAt
	result.TotalCount = snapshot.Count()
	result.Entries = toEntryDTOs(snapshot.Page(page))
	result.HasMore = page.Offset+len(result.Entries) < snapshot.Count()
	h.attachOwnEntry(result, snapshot, query.UserID)
	return result, nil
}

// tryCache пытается собрать страницу из кешированной верхушки.
func (h *GetLeaderboardHandler) tryCache(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, page shared.Pagination) ([]LeaderboardEntryDTO, time.Time, bool) {
	if h.cache == nil {
		return nil, time.Time{}, false
	}
	top, generatedAt, err := h.cache.GetTop(ctx, scope, window, page.Offset+page.Limit)
	if err != nil || len(top) < page.Offset+page.Limit {
		// Кеш недоступен или страница выходит за кешированную верхушку.
		return nil, time.Time{}, false
	}
	return toEntryDTOs(top[page.Offset : page.Offset+page.Limit]), generatedAt, true
}

func (h *GetLeaderboardHandler) attachOwnEntry(result *GetLeaderboardResult, snapshot *leaderboard.Snapshot, rawUserID string) {
	if rawUserID == "" {
		return
	}
	userID, err := shared.NewUserID(rawUserID)
	if err != nil {
		return
	}
	if entry := snapshot.GetByID(userID); entry != nil {
		dto := toEntryDTO(entry)
		result.OwnEntry = &dto
	}
}

func toEntryDTOs(entries []*leaderboard.Entry) []LeaderboardEntryDTO {
	dtos := make([]LeaderboardEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	return dtos
}

func toEntryDTO(e *leaderboard.Entry) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:   e.Rank,
		UserID: e.UserID.String(),
		Score:  e.Score,
	}
}
