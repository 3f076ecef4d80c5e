package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listora/gamification-engine/internal/domain/notification"
	"github.com/listora/gamification-engine/pkg/circuitbreaker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func levelUpNotification() notification.Notification {
	return notification.Notification{
		UserID: "alice",
		Kind:   notification.KindLevelUp,
		Title:  "Level up",
		Body:   "You reached Contributor",
	}
}

// flakySender fails every delivery and counts the attempts.
type flakySender struct {
	calls int
	err   error
}

func (s *flakySender) Send(ctx context.Context, n notification.Notification) error {
	s.calls++
	return s.err
}

func TestLogNotifier_Send(t *testing.T) {
	n := NewLogNotifier(testLogger())
	require.NoError(t, n.Send(context.Background(), levelUpNotification()))
}

func TestBreakerNotifier_DeliversThrough(t *testing.T) {
	inner := &flakySender{}
	b := NewBreakerNotifier(inner, testLogger())

	require.NoError(t, b.Send(context.Background(), levelUpNotification()))
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, circuitbreaker.StateClosed, b.State())
}

func TestBreakerNotifier_RetriesOnceThenOpens(t *testing.T) {
	inner := &flakySender{err: errors.New("channel down")}
	b := NewBreakerNotifier(inner, testLogger())
	ctx := context.Background()

	// Каждая доставка повторяется один раз, затем считается отказом.
	// После трёх отказов подряд контур размыкается.
	for i := 0; i < 3; i++ {
		err := b.Send(ctx, levelUpNotification())
		require.Error(t, err)
		assert.ErrorContains(t, err, "channel down")
	}
	assert.Equal(t, 6, inner.calls)
	assert.Equal(t, circuitbreaker.StateOpen, b.State())

	// Разомкнутый контур отбрасывает уведомление, не трогая канал.
	err := b.Send(ctx, levelUpNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 6, inner.calls)
}
