package query

import (
	"context"
	"errors"
	"time"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Собирает полную сводку по пользователю: баллы, уровень, серии, бейджи,
// активные челленджи, позицию в глобальном лидерборде и статистику активности.
// Один запрос для главного экрана профиля.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery содержит параметры запроса сводки.
type GetDashboardQuery struct {
	// UserID - пользователь, по которому собирается сводка.
	UserID string
}

// PointsDTO - баллы и уровень пользователя.
type PointsDTO struct {
	// Balance - текущий баланс (никогда не ниже нуля).
	Balance int64 `json:"balance"`

	// LifetimeEarned - сумма всех положительных начислений за всё время.
	LifetimeEarned int64 `json:"lifetime_earned"`

	// Tier и Label - текущий уровень.
	Tier  int    `json:"tier"`
	Label string `json:"label"`

	// PointsIntoLevel - сколько баллов набрано внутри текущего уровня.
	PointsIntoLevel int64 `json:"points_into_level"`

	// PointsToNext - сколько осталось до следующего уровня (0 на последнем).
	PointsToNext int64 `json:"points_to_next"`
}

// StreakDTO - состояние одной серии.
type StreakDTO struct {
	// Type - тип серии (daily_activity, daily_check_in).
	Type string `json:"type"`

	// Current и Longest - текущая и рекордная длина в днях.
	Current int `json:"current"`
	Longest int `json:"longest"`

	// LastCountedDate - последний засчитанный день (полночь в поясе пользователя).
	LastCountedDate time.Time `json:"last_counted_date"`

	// Active - серия ещё не сорвана на момент запроса.
	Active bool `json:"active"`
}

// BadgeDTO - открытый бейдж.
type BadgeDTO struct {
	BadgeID    string    `json:"badge_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// ChallengeDTO - активный челлендж с прогрессом пользователя.
type ChallengeDTO struct {
	ChallengeID string `json:"challenge_id"`
	Name        string `json:"name"`

	// Progress и Threshold - накоплено и сколько нужно.
	Progress  int64 `json:"progress"`
	Threshold int64 `json:"threshold"`

	// RewardPoints - награда за завершение.
	RewardPoints int64 `json:"reward_points"`

	// Completed и CompletedAt - завершён ли и когда.
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// EndsAt - конец окна челленджа.
	EndsAt time.Time `json:"ends_at"`
}

// ActivityDTO - сводка активности по журналу.
type ActivityDTO struct {
	TotalEvents int64     `json:"total_events"`
	LastEventAt time.Time `json:"last_event_at"`
	EventsToday int64     `json:"events_today"`
	EventsWeek  int64     `json:"events_week"`
}

// GetDashboardResult содержит собранную сводку.
type GetDashboardResult struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	TimeZone    string `json:"time_zone"`

	Points     PointsDTO      `json:"points"`
	Streaks    []StreakDTO    `json:"streaks"`
	Badges     []BadgeDTO     `json:"badges"`
	Challenges []ChallengeDTO `json:"challenges"`

	// GlobalRank и GlobalScore - позиция в глобальном all_time лидерборде
	// (nil, если снапшот ещё не собран или пользователь в него не попал).
	GlobalRank  *int   `json:"global_rank,omitempty"`
	GlobalScore *int64 `json:"global_score,omitempty"`

	Activity ActivityDTO `json:"activity"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetDashboardHandler обрабатывает запросы сводки.
type GetDashboardHandler struct {
	store       store.Store
	levels      points.LevelTable
	streakTypes []streak.Type
	now         func() time.Time
}

// NewGetDashboardHandler создаёт обработчик сводки.
func NewGetDashboardHandler(st store.Store, levels points.LevelTable, streakTypes []streak.Type) *GetDashboardHandler {
	return &GetDashboardHandler{
		store:       st,
		levels:      levels,
		streakTypes: streakTypes,
		now:         time.Now,
	}
}

// Handle выполняет запрос. Неизвестный пользователь - shared.ErrUnknownUser.
func (h *GetDashboardHandler) Handle(ctx context.Context, query GetDashboardQuery) (*GetDashboardResult, error) {
	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, shared.WrapError("user", "GetDashboard", shared.ErrValidation, "invalid user id", shared.ErrUnknownUser)
	}

	repos := h.store.View()
	profile, err := repos.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	loc := profile.Location()
	result := &GetDashboardResult{
		UserID:      userID.String(),
		DisplayName: profile.DisplayName,
		TimeZone:    profile.TimeZone,
		GeneratedAt: now,
	}

	if err := h.fillPoints(ctx, repos, userID, result); err != nil {
		return nil, err
	}
	if err := h.fillStreaks(ctx, repos, userID, loc, now, result); err != nil {
		return nil, err
	}
	if err := h.fillBadges(ctx, repos, userID, result); err != nil {
		return nil, err
	}
	if err := h.fillChallenges(ctx, repos, userID, now, result); err != nil {
		return nil, err
	}
	if err := h.fillRank(ctx, repos, userID, result); err != nil {
		return nil, err
	}
	if err := h.fillActivity(ctx, repos, userID, loc, now, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *GetDashboardHandler) fillPoints(ctx context.Context, repos store.Repos, userID shared.UserID, result *GetDashboardResult) error {
	up, err := repos.Points().Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return err
		}
		up = points.NewUserPoints(userID)
	}

	lvl := h.levels.ResolveFor(userID, up.Balance)
	result.Points = PointsDTO{
		Balance:         up.Balance,
		LifetimeEarned:  up.LifetimeEarned,
		Tier:            lvl.CurrentTier,
		Label:           lvl.Label,
		PointsIntoLevel: lvl.PointsIntoLevel,
		PointsToNext:    lvl.PointsToNext,
	}
	return nil
}

func (h *GetDashboardHandler) fillStreaks(ctx context.Context, repos store.Repos, userID shared.UserID, loc *time.Location, now time.Time, result *GetDashboardResult) error {
	streaks, err := repos.Streaks().ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	grace := make(map[string]time.Duration, len(h.streakTypes))
	for _, st := range h.streakTypes {
		grace[st.ID] = st.Grace()
	}

	result.Streaks = make([]StreakDTO, 0, len(streaks))
	for _, s := range streaks {
		result.Streaks = append(result.Streaks, StreakDTO{
			Type:            s.TypeID,
			Current:         s.CurrentLength,
			Longest:         s.LongestLength,
			LastCountedDate: s.LastCountedDate,
			Active:          !s.IsBrokenAt(now, loc, grace[s.TypeID]),
		})
	}
	return nil
}

func (h *GetDashboardHandler) fillBadges(ctx context.Context, repos store.Repos, userID shared.UserID, result *GetDashboardResult) error {
	unlocks, err := repos.Badges().ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	defs, err := repos.Badges().ListDefinitions(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*badge.Badge, len(defs))
	for i := range defs {
		byID[defs[i].ID] = &defs[i]
	}

	result.Badges = make([]BadgeDTO, 0, len(unlocks))
	for _, u := range unlocks {
		dto := BadgeDTO{BadgeID: u.BadgeID, UnlockedAt: u.UnlockedAt}
		if def, ok := byID[u.BadgeID]; ok {
			dto.Name = def.Name
			dto.Category = string(def.Category)
		}
		result.Badges = append(result.Badges, dto)
	}
	return nil
}

func (h *GetDashboardHandler) fillChallenges(ctx context.Context, repos store.Repos, userID shared.UserID, now time.Time, result *GetDashboardResult) error {
	active, err := repos.Challenges().ListActiveAt(ctx, now)
	if err != nil {
		return err
	}

	result.Challenges = make([]ChallengeDTO, 0, len(active))
	for _, ch := range active {
		dto := ChallengeDTO{
			ChallengeID:  ch.ID,
			Name:         ch.Name,
			Threshold:    ch.Threshold,
			RewardPoints: ch.RewardPoints,
			EndsAt:       ch.Window.To,
		}

		uc, err := repos.Challenges().GetProgress(ctx, userID, ch.ID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return err
			}
		} else {
			dto.Progress = uc.Progress
			dto.Completed = uc.CompletedAt != nil
			dto.CompletedAt = uc.CompletedAt
		}
		result.Challenges = append(result.Challenges, dto)
	}
	return nil
}

func (h *GetDashboardHandler) fillRank(ctx context.Context, repos store.Repos, userID shared.UserID, result *GetDashboardResult) error {
	snapshot, err := repos.Leaderboards().GetLatest(ctx, leaderboard.ScopeGlobal, leaderboard.WindowAllTime)
	if err != nil {
		if errors.Is(err, shared.ErrSnapshotNotFound) {
			return nil
		}
		return err
	}
	if entry := snapshot.GetByID(userID); entry != nil {
		rank, score := entry.Rank, entry.Score
		result.GlobalRank = &rank
		result.GlobalScore = &score
	}
	return nil
}

func (h *GetDashboardHandler) fillActivity(ctx context.Context, repos store.Repos, userID shared.UserID, loc *time.Location, now time.Time, result *GetDashboardResult) error {
	summary, err := repos.Ledger().Summary(ctx, userID)
	if err != nil {
		return err
	}
	today, err := repos.Ledger().CountByUserSince(ctx, userID, timeutil.StartOfDay(now, loc))
	if err != nil {
		return err
	}
	week, err := repos.Ledger().CountByUserSince(ctx, userID, timeutil.StartOfWeek(now, loc))
	if err != nil {
		return err
	}

	result.Activity = ActivityDTO{
		TotalEvents: summary.TotalEvents,
		LastEventAt: summary.LastEventAt,
		EventsToday: today,
		EventsWeek:  week,
	}
	return nil
}
