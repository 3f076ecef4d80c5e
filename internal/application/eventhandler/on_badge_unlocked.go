package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/notification"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON BADGE UNLOCKED HANDLER
// Уведомляет пользователя о разблокированном бейдже. Имя бейджа берётся из
// каталога определений; неизвестный ID означает рассинхрон каталога и
// журнала - уведомление уходит с ID вместо имени.
// ═══════════════════════════════════════════════════════════════════════════

// OnBadgeUnlockedHandler обрабатывает событие разблокировки бейджа.
type OnBadgeUnlockedHandler struct {
	byID   map[string]badge.Badge
	sender notification.Sender
	logger *slog.Logger
}

// NewOnBadgeUnlockedHandler создаёт обработчик разблокировки бейджа.
func NewOnBadgeUnlockedHandler(catalogue []badge.Badge, sender notification.Sender, logger *slog.Logger) *OnBadgeUnlockedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	byID := make(map[string]badge.Badge, len(catalogue))
	for _, def := range catalogue {
		byID[def.ID] = def
	}
	return &OnBadgeUnlockedHandler{
		byID:   byID,
		sender: sender,
		logger: logger,
	}
}

// Register подписывает обработчик на шину.
func (h *OnBadgeUnlockedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventBadgeUnlocked, h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *OnBadgeUnlockedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.BadgeUnlockedEvent)
	if !ok {
		return fmt.Errorf("on_badge_unlocked: unexpected event %T", event)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	name := e.BadgeID
	if def, found := h.byID[e.BadgeID]; found {
		name = def.Name
	}

	body := fmt.Sprintf("Открыт бейдж %q", name)
	if e.RewardPoints > 0 {
		body = fmt.Sprintf("Открыт бейдж %q, +%d очков", name, e.RewardPoints)
	}

	err := h.sender.Send(ctx, notification.Notification{
		UserID: e.UserID,
		Kind:   notification.KindBadgeUnlocked,
		Title:  "Новый бейдж!",
		Body:   body,
		Fields: map[string]any{
			"badge_id":      e.BadgeID,
			"category":      e.Category,
			"reward_points": e.RewardPoints,
		},
	})
	if err != nil {
		h.logger.Warn("badge notification failed",
			slog.String("user_id", e.UserID),
			slog.String("badge_id", e.BadgeID),
			slog.String("error", err.Error()))
	}
	return nil
}
