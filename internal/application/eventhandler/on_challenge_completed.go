package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/notification"
	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CHALLENGE COMPLETED HANDLER
// Уведомляет пользователя о завершённом челлендже. Событие публикуется ровно
// один раз на пару (пользователь, челлендж), поэтому обработчик не проверяет
// повторы.
// ═══════════════════════════════════════════════════════════════════════════

// OnChallengeCompletedHandler обрабатывает событие завершения челленджа.
type OnChallengeCompletedHandler struct {
	store  store.Store
	sender notification.Sender
	logger *slog.Logger
}

// NewOnChallengeCompletedHandler создаёт обработчик завершения челленджа.
func NewOnChallengeCompletedHandler(st store.Store, sender notification.Sender, logger *slog.Logger) *OnChallengeCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnChallengeCompletedHandler{
		store:  st,
		sender: sender,
		logger: logger,
	}
}

// Register подписывает обработчик на шину.
func (h *OnChallengeCompletedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventChallengeCompleted, h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *OnChallengeCompletedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.ChallengeCompletedEvent)
	if !ok {
		return fmt.Errorf("on_challenge_completed: unexpected event %T", event)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	name := e.ChallengeID
	if def, err := h.store.View().Challenges().GetDefinition(ctx, e.ChallengeID); err == nil {
		name = def.Name
	}

	body := fmt.Sprintf("Челлендж %q завершён", name)
	if e.RewardPoints > 0 {
		body = fmt.Sprintf("Челлендж %q завершён, +%d очков", name, e.RewardPoints)
	}

	err := h.sender.Send(ctx, notification.Notification{
		UserID: e.UserID,
		Kind:   notification.KindChallengeCompleted,
		Title:  "Челлендж завершён!",
		Body:   body,
		Fields: map[string]any{
			"challenge_id":  e.ChallengeID,
			"progress":      e.Progress,
			"reward_points": e.RewardPoints,
		},
	})
	if err != nil {
		h.logger.Warn("challenge notification failed",
			slog.String("user_id", e.UserID),
			slog.String("challenge_id", e.ChallengeID),
			slog.String("error", err.Error()))
	}
	return nil
}
