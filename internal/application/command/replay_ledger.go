package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPLAY LEDGER COMMAND
// Полностью пересобирает производное состояние из журнала: стирает баллы,
// серии, открытые бейджи и прогресс челленджей, затем применяет все события
// в порядке occurred_at (при равенстве - по event_id). Журнал при этом
// не меняется: награды уже лежат в нём и применяются как обычные события.
// ══════════════════════════════════════════════════════════════════════════════

// ReplayLedgerResult содержит статистику переигрывания.
type ReplayLedgerResult struct {
	// EventsReplayed - сколько событий применено.
	EventsReplayed int `json:"events_replayed"`

	// UsersTouched - сколько пользователей затронуто.
	UsersTouched int `json:"users_touched"`

	// Duration - сколько заняло переигрывание.
	Duration time.Duration `json:"duration"`
}

// ReplayLedgerHandler пересобирает производное состояние из журнала.
type ReplayLedgerHandler struct {
	store   store.Store
	applier *applier
	logger  *slog.Logger
	now     func() time.Time
}

// NewReplayLedgerHandler создаёт обработчик переигрывания журнала.
func NewReplayLedgerHandler(
	st store.Store,
	levels points.LevelTable,
	streakTypes []streak.Type,
	defaultLoc *time.Location,
	logger *slog.Logger,
) *ReplayLedgerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayLedgerHandler{
		store:   st,
		applier: newApplier(levels, streakTypes, defaultLoc),
		logger:  logger,
		now:     time.Now,
	}
}

// Handle выполняет переигрывание в одной транзакции: читатели либо видят
// старое состояние целиком, либо новое, но не смесь.
func (h *ReplayLedgerHandler) Handle(ctx context.Context) (*ReplayLedgerResult, error) {
	started := h.now()
	result := &ReplayLedgerResult{}

	err := h.store.Within(ctx, func(ctx context.Context, repos store.Repos) error {
		if err := repos.ResetDerived(ctx); err != nil {
			return err
		}

		events, err := repos.Ledger().ListAll(ctx)
		if err != nil {
			return err
		}

		// Часовой пояс пользователя читается один раз за проход.
		locations := make(map[shared.UserID]*user.Profile)
		touched := make(map[shared.UserID]struct{})

		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return err
			}

			profile, ok := locations[ev.UserID]
			if !ok {
				profile, err = repos.Users().GetByID(ctx, ev.UserID)
				if err != nil {
					if !shared.IsUnknownUser(err) {
						return err
					}
					// Событие пользователя, удалённого после записи:
					// применяем в поясе по умолчанию.
					profile = nil
				}
				locations[ev.UserID] = profile
			}

			loc := h.applier.defaultLoc
			if profile != nil {
				loc = profile.Location()
			}

			out := newApplyOutcome()
			if err := h.applier.apply(ctx, repos, ev, loc, out); err != nil {
				return err
			}

			touched[ev.UserID] = struct{}{}
			result.EventsReplayed++
		}

		result.UsersTouched = len(touched)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Duration = h.now().Sub(started)
	h.logger.InfoContext(ctx, "ledger replayed",
		slog.Int("events", result.EventsReplayed),
		slog.Int("users", result.UsersTouched),
		slog.Duration("duration", result.Duration))
	return result, nil
}
