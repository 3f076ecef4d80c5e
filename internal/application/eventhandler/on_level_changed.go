// Package eventhandler содержит обработчики доменных событий.
//
// Обработчики подписываются на внутреннюю шину и превращают события движка
// в исходящие уведомления. Шина получает события после коммита транзакции,
// поэтому обработчики всегда видят уже сохранённое состояние. Доставка
// best-effort: сбой уведомления логируется и не влияет на движок.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/listora/gamification-engine/internal/domain/notification"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// handlerTimeout ограничивает время одной доставки: шина вызывает
// обработчики без контекста.
const handlerTimeout = 10 * time.Second

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL CHANGED HANDLER
// Уведомляет пользователя о повышении уровня. Понижение (после reversal
// события) проходит молча: отбирать уровень с фанфарами незачем.
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelChangedHandler обрабатывает событие смены уровня.
type OnLevelChangedHandler struct {
	levels points.LevelTable
	sender notification.Sender
	logger *slog.Logger
}

// NewOnLevelChangedHandler создаёт обработчик смены уровня.
func NewOnLevelChangedHandler(levels points.LevelTable, sender notification.Sender, logger *slog.Logger) *OnLevelChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLevelChangedHandler{
		levels: levels,
		sender: sender,
		logger: logger,
	}
}

// Register подписывает обработчик на шину.
func (h *OnLevelChangedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventLevelChanged, h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *OnLevelChangedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.LevelChangedEvent)
	if !ok {
		return fmt.Errorf("on_level_changed: unexpected event %T", event)
	}
	if !e.LeveledUp() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	_, label := h.levels.Resolve(e.Balance)
	err := h.sender.Send(ctx, notification.Notification{
		UserID: e.UserID,
		Kind:   notification.KindLevelUp,
		Title:  "Новый уровень!",
		Body:   fmt.Sprintf("Вы достигли уровня %d (%s)", e.NewTier, label),
		Fields: map[string]any{
			"old_tier": e.OldTier,
			"new_tier": e.NewTier,
			"balance":  e.Balance,
		},
	})
	if err != nil {
		h.logger.Warn("level-up notification failed",
			slog.String("user_id", e.UserID),
			slog.Int("new_tier", e.NewTier),
			slog.String("error", err.Error()))
	}
	return nil
}
