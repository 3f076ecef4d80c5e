// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
	"github.com/listora/gamification-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT EVENT COMMAND
// Единственная точка входа для записи активности. Записывает событие в журнал
// и в той же транзакции применяет все производные эффекты: баллы, уровень,
// серии, челленджи, бейджи и их награды. Повторная отправка того же event_id
// возвращает duplicate и ничего не меняет.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitEventCommand содержит данные одного события активности.
type SubmitEventCommand struct {
	// EventID - идемпотентный ключ от вызывающей стороны.
	// Пустой ID заменяется на случайный UUID (идемпотентность теряется).
	EventID string

	// UserID - пользователь, совершивший действие.
	UserID string

	// Type - тип события: listing_posted, listing_sold, review_received,
	// daily_check_in, profile_completed, reversal и т.д.
	Type string

	// PointsDelta - изменение баллов. Для reversal должно быть <= 0.
	PointsDelta int64

	// OccurredAt - когда событие произошло (не когда дошло до движка).
	// Нулевое время заменяется текущим.
	OccurredAt time.Time

	// Payload - произвольные атрибуты события (category и прочее).
	Payload map[string]interface{}
}

// Validate проверяет корректность команды.
func (c SubmitEventCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("submit_event: user_id is required")
	}
	if c.Type == "" {
		return errors.New("submit_event: type is required")
	}
	if ledger.EventType(c.Type).IsEngineGenerated() {
		return fmt.Errorf("submit_event: type %s is reserved for engine-generated events", c.Type)
	}
	return nil
}

// SubmitEventResult описывает итог обработки события.
type SubmitEventResult struct {
	// EventID - итоговый ID события (сгенерированный, если не был задан).
	EventID string `json:"event_id"`

	// Accepted - событие записано и применено.
	Accepted bool `json:"accepted"`

	// Duplicate - событие с таким ID уже было обработано ранее.
	Duplicate bool `json:"duplicate"`

	// Balance и Tier - состояние пользователя после применения.
	Balance int64 `json:"balance"`
	Tier    int   `json:"tier"`

	// TierChanged - событие перевело пользователя на другой уровень.
	TierChanged bool `json:"tier_changed"`

	// Streaks - текущая длина затронутых серий по типу.
	Streaks map[string]int `json:"streaks,omitempty"`

	// UnlockedBadges - бейджи, открытые этим событием (включая каскад наград).
	UnlockedBadges []string `json:"unlocked_badges,omitempty"`

	// CompletedChallenges - челленджи, завершённые этим событием.
	CompletedChallenges []string `json:"completed_challenges,omitempty"`
}

// SubmitEventHandler обрабатывает команды записи событий.
type SubmitEventHandler struct {
	store     store.Store
	publisher shared.EventPublisher
	applier   *applier
	locks     *userLocks
	retrier   *retry.Retrier
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubmitEventHandler создаёт новый обработчик записи событий.
func NewSubmitEventHandler(
	st store.Store,
	publisher shared.EventPublisher,
	levels points.LevelTable,
	streakTypes []streak.Type,
	defaultLoc *time.Location,
	logger *slog.Logger,
) *SubmitEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitEventHandler{
		store:     st,
		publisher: publisher,
		applier:   newApplier(levels, streakTypes, defaultLoc),
		locks:     newUserLocks(),
		retrier:   retry.ConflictRetrier(),
		logger:    logger,
		now:       time.Now,
	}
}

// Handle записывает событие и применяет его эффекты.
//
// Возвращаемые ошибки: shared.ErrUnknownUser, shared.ErrInvalidEventPayload,
// shared.ErrStoreUnavailable, shared.ErrConcurrentModification (после
// исчерпания повторов). Дубликат ошибкой не считается.
func (h *SubmitEventHandler) Handle(ctx context.Context, cmd SubmitEventCommand) (*SubmitEventResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("ledger", "SubmitEvent", shared.ErrInvalidInput, err.Error(), shared.ErrInvalidEventPayload)
	}

	eventID := cmd.EventID
	if eventID == "" {
		eventID = uuid.New().String()
	}
	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = h.now()
	}

	ev, err := ledger.NewEvent(ledger.NewEventParams{
		ID:          eventID,
		UserID:      cmd.UserID,
		Type:        cmd.Type,
		PointsDelta: cmd.PointsDelta,
		OccurredAt:  occurredAt,
		Payload:     cmd.Payload,
	})
	if err != nil {
		return nil, err
	}

	unlock := h.locks.lock(ev.UserID)
	defer unlock()

	result := &SubmitEventResult{EventID: string(ev.ID)}
	var outcome *applyOutcome

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		outcome = nil
		txErr := h.store.Within(ctx, func(ctx context.Context, repos store.Repos) error {
			profile, err := repos.Users().GetByID(ctx, ev.UserID)
			if err != nil {
				return err
			}

			exists, err := repos.Ledger().Exists(ctx, ev.ID)
			if err != nil {
				return err
			}
			if exists {
				result.Duplicate = true
				return nil
			}

			if err := repos.Ledger().Append(ctx, ev); err != nil {
				return err
			}

			out := newApplyOutcome()
			if err := h.applier.apply(ctx, repos, ev, profile.Location(), out); err != nil {
				return err
			}
			outcome = out
			return nil
		})

		// Конфликт оптимистичной блокировки или сериализации - повторяемая
		// ошибка, всё остальное окончательное.
		if txErr != nil && shared.IsConflict(txErr) {
			return retry.Retryable(txErr)
		}
		return txErr
	})
	if err != nil {
		if shared.IsDuplicateEvent(err) {
			result.Duplicate = true
			return result, nil
		}
		return nil, err
	}

	if result.Duplicate {
		h.logger.DebugContext(ctx, "duplicate event ignored",
			slog.String("event_id", result.EventID),
			slog.String("user_id", ev.UserID.String()))
		return result, nil
	}

	result.Accepted = true
	result.Balance = outcome.balance
	result.Tier = outcome.tier
	result.TierChanged = outcome.tierChanged
	if len(outcome.streaks) > 0 {
		result.Streaks = outcome.streaks
	}
	result.UnlockedBadges = outcome.unlockedBadges
	result.CompletedChallenges = outcome.completedChallenges

	h.publish(ctx, outcome.events)

	h.logger.InfoContext(ctx, "event accepted",
		slog.String("event_id", result.EventID),
		slog.String("user_id", ev.UserID.String()),
		slog.String("type", string(ev.Type)),
		slog.Int64("delta", ev.PointsDelta),
		slog.Int64("balance", result.Balance),
		slog.Int("badges_unlocked", len(result.UnlockedBadges)),
		slog.Int("challenges_completed", len(result.CompletedChallenges)))

	return result, nil
}

// publish отправляет доменные события после коммита. Ошибки публикации
// только логируются: состояние уже сохранено, подписчики не критичны.
func (h *SubmitEventHandler) publish(ctx context.Context, events []shared.Event) {
	if h.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := h.publisher.Publish(ev); err != nil {
			h.logger.WarnContext(ctx, "failed to publish domain event",
				slog.String("event_type", string(ev.EventType())),
				slog.String("error", err.Error()))
		}
	}
}
