package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/leaderboard"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARDS COMMAND
// Пересчитывает лидерборды вне пути записи. Каждая пара (scope, window)
// собирается и публикуется отдельно: подмена снапшота атомарна, частичный
// снапшот никогда не виден читателям. Между парами команду можно прервать
// через контекст.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache получает свежие снапшоты после пересборки.
// Реализация - Redis-кеш; nil отключает кеширование.
type LeaderboardCache interface {
	StoreSnapshot(ctx context.Context, snapshot *leaderboard.Snapshot) error
}

// RebuildLeaderboardsCommand задаёт, какие борды пересобирать.
// Пустые срезы означают "все настроенные".
type RebuildLeaderboardsCommand struct {
	Scopes  []leaderboard.Scope
	Windows []leaderboard.Window
}

// RebuildLeaderboardsResult содержит статистику пересборки.
type RebuildLeaderboardsResult struct {
	// SnapshotsBuilt - сколько снапшотов опубликовано.
	SnapshotsBuilt int `json:"snapshots_built"`

	// EntriesTotal - суммарное число записей во всех снапшотах.
	EntriesTotal int `json:"entries_total"`

	// Failed - пары scope:window, которые не удалось пересобрать.
	Failed []string `json:"failed,omitempty"`

	// Duration - сколько заняла пересборка.
	Duration time.Duration `json:"duration"`
}

// RebuildLeaderboardsHandler пересчитывает снапшоты лидербордов.
type RebuildLeaderboardsHandler struct {
	store      store.Store
	cache      LeaderboardCache
	publisher  shared.EventPublisher
	scopes     []leaderboard.Scope
	windows    []leaderboard.Window
	defaultLoc *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

// NewRebuildLeaderboardsHandler создаёт обработчик пересборки.
// categories задаёт дополнительные категорийные борды помимо глобального.
func NewRebuildLeaderboardsHandler(
	st store.Store,
	cache LeaderboardCache,
	publisher shared.EventPublisher,
	categories []string,
	defaultLoc *time.Location,
	logger *slog.Logger,
) *RebuildLeaderboardsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	scopes := []leaderboard.Scope{leaderboard.ScopeGlobal}
	for _, c := range categories {
		scopes = append(scopes, leaderboard.CategoryScope(c))
	}
	return &RebuildLeaderboardsHandler{
		store:      st,
		cache:      cache,
		publisher:  publisher,
		scopes:     scopes,
		windows:    leaderboard.AllWindows(),
		defaultLoc: defaultLoc,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle пересобирает запрошенные борды. Ошибка одной пары (scope, window)
// не останавливает остальные.
func (h *RebuildLeaderboardsHandler) Handle(ctx context.Context, cmd RebuildLeaderboardsCommand) (*RebuildLeaderboardsResult, error) {
	started := h.now()

	scopes := cmd.Scopes
	if len(scopes) == 0 {
		scopes = h.scopes
	}
	windows := cmd.Windows
	if len(windows) == 0 {
		windows = h.windows
	}

	result := &RebuildLeaderboardsResult{}
	for _, scope := range scopes {
		for _, window := range windows {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			snapshot, err := h.rebuildOne(ctx, scope, window)
			if err != nil {
				result.Failed = append(result.Failed, scope.String()+":"+window.String())
				h.logger.ErrorContext(ctx, "leaderboard rebuild failed",
					slog.String("scope", scope.String()),
					slog.String("window", window.String()),
					slog.String("error", err.Error()))
				continue
			}

			result.SnapshotsBuilt++
			result.EntriesTotal += snapshot.Count()

			if h.publisher != nil {
				ev := shared.NewLeaderboardRebuiltEvent(scope.String(), window.String(), snapshot.Count(), snapshot.ID)
				if err := h.publisher.Publish(ev); err != nil {
					h.logger.WarnContext(ctx, "failed to publish rebuild event",
						slog.String("error", err.Error()))
				}
			}
		}
	}

	result.Duration = h.now().Sub(started)
	h.logger.InfoContext(ctx, "leaderboards rebuilt",
		slog.Int("snapshots", result.SnapshotsBuilt),
		slog.Int("entries", result.EntriesTotal),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// rebuildOne собирает и атомарно публикует один снапшот.
func (h *RebuildLeaderboardsHandler) rebuildOne(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window) (*leaderboard.Snapshot, error) {
	generatedAt := h.now()

	ranking, err := h.buildRanking(ctx, scope, window, generatedAt)
	if err != nil {
		return nil, err
	}
	ranking.SortAndRank()

	snapshot := leaderboard.NewSnapshot(uuid.New().String(), scope, window, ranking, generatedAt)
	if err := h.store.View().Leaderboards().ReplaceSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.StoreSnapshot(ctx, snapshot); err != nil {
			// Кеш не источник истины, снапшот уже опубликован.
			h.logger.WarnContext(ctx, "failed to refresh leaderboard cache",
				slog.String("scope", scope.String()),
				slog.String("window", window.String()),
				slog.String("error", err.Error()))
		}
	}
	return snapshot, nil
}

// buildRanking считает очки для пары (scope, window).
//
// Глобальный all_time берётся из аккумулятора баллов (это и есть текущий
// баланс). Остальные борды считаются прямо из журнала: сумма положительных
// дельт за окно, для категорийных бордов - с фильтром по category в payload.
func (h *RebuildLeaderboardsHandler) buildRanking(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window, now time.Time) (*leaderboard.Ranking, error) {
	ranking := leaderboard.NewRanking()
	repos := h.store.View()

	if scope.IsGlobal() && window == leaderboard.WindowAllTime {
		balances, err := repos.Points().AllBalances(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range balances {
			if err := ranking.Add(b.UserID, b.Balance); err != nil {
				return nil, err
			}
		}
		return ranking, nil
	}

	rng := window.Range(now, h.defaultLoc)
	scores, err := repos.Ledger().ScoresInRange(ctx, scope.Category(), rng)
	if err != nil {
		return nil, err
	}
	for _, s := range scores {
		if err := ranking.Add(s.UserID, s.Score); err != nil {
			return nil, err
		}
	}
	return ranking, nil
}
