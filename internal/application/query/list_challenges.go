package query

import (
	"context"
	"time"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST CHALLENGES QUERY
// Отдаёт список челленджей с окнами и порогами. С UserID каждая запись
// дополняется прогрессом пользователя. ActiveOnly оставляет только челленджи,
// чьё окно открыто на момент запроса.
// ══════════════════════════════════════════════════════════════════════════════

// ListChallengesQuery содержит параметры запроса списка челленджей.
type ListChallengesQuery struct {
	// UserID - если задан, записи дополняются прогрессом пользователя.
	UserID string

	// ActiveOnly - показывать только челленджи с открытым окном.
	ActiveOnly bool
}

// ChallengeListDTO - один челлендж списка.
type ChallengeListDTO struct {
	ChallengeID string `json:"challenge_id"`
	Name        string `json:"name"`

	// Metric - points_earned или event_count.
	Metric string `json:"metric"`

	// Threshold - сколько нужно накопить для завершения.
	Threshold int64 `json:"threshold"`

	// RewardPoints - награда за завершение.
	RewardPoints int64 `json:"reward_points"`

	// StartsAt и EndsAt - окно челленджа.
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	// Active - окно открыто на момент запроса.
	Active bool `json:"active"`

	// Progress, Completed, CompletedAt - состояние пользователя (если запрошен).
	Progress    int64      `json:"progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListChallengesResult содержит список челленджей.
type ListChallengesResult struct {
	Challenges []ChallengeListDTO `json:"challenges"`

	// CompletedCount - сколько из них завершено (при запросе с UserID).
	CompletedCount int `json:"completed_count"`
}

// ListChallengesHandler обрабатывает запросы списка челленджей.
type ListChallengesHandler struct {
	store store.Store
	now   func() time.Time
}

// NewListChallengesHandler создаёт обработчик списка челленджей.
func NewListChallengesHandler(st store.Store) *ListChallengesHandler {
	return &ListChallengesHandler{store: st, now: time.Now}
}

// Handle выполняет запрос.
func (h *ListChallengesHandler) Handle(ctx context.Context, query ListChallengesQuery) (*ListChallengesResult, error) {
	repos := h.store.View()
	now := h.now()

	var (
		defs []*challenge.Challenge
		err  error
	)
	if query.ActiveOnly {
		defs, err = repos.Challenges().ListActiveAt(ctx, now)
	} else {
		defs, err = repos.Challenges().ListDefinitions(ctx)
	}
	if err != nil {
		return nil, err
	}

	progress := make(map[string]*challenge.UserChallenge)
	if query.UserID != "" {
		userID, err := shared.NewUserID(query.UserID)
		if err != nil {
			return nil, shared.WrapError("challenge", "ListChallenges", shared.ErrValidation, "invalid user id", shared.ErrUnknownUser)
		}
		list, err := repos.Challenges().ListProgressByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, uc := range list {
			progress[uc.ChallengeID] = uc
		}
	}

	result := &ListChallengesResult{Challenges: make([]ChallengeListDTO, 0, len(defs))}
	for _, ch := range defs {
		dto := ChallengeListDTO{
			ChallengeID:  ch.ID,
			Name:         ch.Name,
			Metric:       string(ch.Metric),
			Threshold:    ch.Threshold,
			RewardPoints: ch.RewardPoints,
			StartsAt:     ch.Window.From,
			EndsAt:       ch.Window.To,
			Active:       ch.IsActiveAt(now),
		}
		if uc, ok := progress[ch.ID]; ok {
			dto.Progress = uc.Progress
			dto.Completed = uc.CompletedAt != nil
			dto.CompletedAt = uc.CompletedAt
			if dto.Completed {
				result.CompletedCount++
			}
		}
		result.Challenges = append(result.Challenges, dto)
	}
	return result, nil
}
