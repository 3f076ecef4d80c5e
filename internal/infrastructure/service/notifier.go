// Package service contains infrastructure-side service adapters: outbound
// notification delivery behind a circuit breaker.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listora/gamification-engine/internal/domain/notification"
	"github.com/listora/gamification-engine/pkg/circuitbreaker"
	"github.com/listora/gamification-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// LogNotifier writes notifications to the structured log. It is the default
// channel; real channels (email, push, chat) plug in behind the same
// notification.Sender interface.
type LogNotifier struct {
	logger *slog.Logger
}

var _ notification.Sender = (*LogNotifier)(nil)

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the notification.
func (n *LogNotifier) Send(ctx context.Context, notif notification.Notification) error {
	n.logger.InfoContext(ctx, "notification",
		slog.String("user_id", notif.UserID),
		slog.String("kind", string(notif.Kind)),
		slog.String("title", notif.Title),
		slog.String("body", notif.Body),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CIRCUIT BREAKER WRAPPER
// ══════════════════════════════════════════════════════════════════════════════

// BreakerNotifier wraps a notification.Sender with a circuit breaker so a
// failing delivery channel sheds load instead of stalling the event handlers.
type BreakerNotifier struct {
	inner   notification.Sender
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	logger  *slog.Logger
}

var _ notification.Sender = (*BreakerNotifier)(nil)

// NewBreakerNotifier wraps inner with a circuit breaker and a short retry.
func NewBreakerNotifier(inner notification.Sender, logger *slog.Logger) *BreakerNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.NotifierBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("notifier circuit state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &BreakerNotifier{
		inner:   inner,
		breaker: breaker,
		retrier: retry.NotifierRetrier(),
		logger:  logger,
	}
}

// Send delivers through the breaker. A failed delivery is retried once
// before it counts against the breaker; an open circuit drops the
// notification with an error, and callers treat that as a skipped delivery.
func (b *BreakerNotifier) Send(ctx context.Context, n notification.Notification) error {
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		return b.retrier.Do(ctx, func(ctx context.Context) error {
			if sendErr := b.inner.Send(ctx, n); sendErr != nil {
				return retry.Retryable(sendErr)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.Kind, err)
	}
	return nil
}

// State reports the current breaker state.
func (b *BreakerNotifier) State() circuitbreaker.State {
	return b.breaker.State()
}
