package query

import (
	"context"
	"time"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST BADGES QUERY
// Отдаёт каталог бейджей. С UserID каждая запись дополняется статусом
// пользователя: открыт ли, когда, сколько раз (для повторяемых).
// ══════════════════════════════════════════════════════════════════════════════

// ListBadgesQuery содержит параметры запроса каталога бейджей.
type ListBadgesQuery struct {
	// UserID - если задан, записи дополняются статусом пользователя.
	UserID string
}

// BadgeCatalogueDTO - один бейдж каталога.
type BadgeCatalogueDTO struct {
	BadgeID  string `json:"badge_id"`
	Name     string `json:"name"`
	Category string `json:"category"`

	// Criteria - человекочитаемое описание критерия.
	Criteria string `json:"criteria"`

	// Repeatable - можно ли открыть больше одного раза.
	Repeatable bool `json:"repeatable"`

	// RewardPoints - награда за открытие.
	RewardPoints int64 `json:"reward_points"`

	// Unlocked, UnlockedAt, UnlockCount - статус пользователя (если запрошен).
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	UnlockCount int        `json:"unlock_count,omitempty"`
}

// ListBadgesResult содержит каталог бейджей.
type ListBadgesResult struct {
	Badges []BadgeCatalogueDTO `json:"badges"`

	// UnlockedCount - сколько бейджей открыто (при запросе с UserID).
	UnlockedCount int `json:"unlocked_count"`
}

// ListBadgesHandler обрабатывает запросы каталога бейджей.
type ListBadgesHandler struct {
	store store.Store
}

// NewListBadgesHandler создаёт обработчик каталога бейджей.
func NewListBadgesHandler(st store.Store) *ListBadgesHandler {
	return &ListBadgesHandler{store: st}
}

// Handle выполняет запрос.
func (h *ListBadgesHandler) Handle(ctx context.Context, query ListBadgesQuery) (*ListBadgesResult, error) {
	repos := h.store.View()

	defs, err := repos.Badges().ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	result := &ListBadgesResult{Badges: make([]BadgeCatalogueDTO, 0, len(defs))}

	type unlockInfo struct {
		first time.Time
		count int
	}
	unlocks := make(map[string]*unlockInfo)

	if query.UserID != "" {
		userID, err := shared.NewUserID(query.UserID)
		if err != nil {
			return nil, shared.WrapError("badge", "ListBadges", shared.ErrValidation, "invalid user id", shared.ErrUnknownUser)
		}
		owned, err := repos.Badges().ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, u := range owned {
			info, ok := unlocks[u.BadgeID]
			if !ok {
				info = &unlockInfo{first: u.UnlockedAt}
				unlocks[u.BadgeID] = info
			}
			if u.UnlockedAt.Before(info.first) {
				info.first = u.UnlockedAt
			}
			info.count++
		}
	}

	for i := range defs {
		def := &defs[i]
		dto := BadgeCatalogueDTO{
			BadgeID:      def.ID,
			Name:         def.Name,
			Category:     string(def.Category),
			Criteria:     def.Criteria.String(),
			Repeatable:   def.Repeatable,
			RewardPoints: def.RewardPoints,
		}
		if info, ok := unlocks[def.ID]; ok {
			dto.Unlocked = true
			first := info.first
			dto.UnlockedAt = &first
			dto.UnlockCount = info.count
			result.UnlockedCount++
		}
		result.Badges = append(result.Badges, dto)
	}
	return result, nil
}
