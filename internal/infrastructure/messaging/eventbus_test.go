package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

type testEvent struct {
	shared.BaseEvent
}

func (e testEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"aggregate_id": e.AggregateID()}
}

func newTestEvent(eventType shared.EventType) testEvent {
	return testEvent{BaseEvent: shared.NewBaseEvent(eventType, "user-1")}
}

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, EnableMetrics: true})
}

func TestInMemoryEventBus_PublishToSubscriber(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var received []shared.EventType
	err := bus.Subscribe(shared.EventBadgeUnlocked, func(e shared.Event) error {
		received = append(received, e.EventType())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(newTestEvent(shared.EventBadgeUnlocked)))
	require.NoError(t, bus.Publish(newTestEvent(shared.EventLevelChanged)))

	// Обработчик получает только свой тип события.
	assert.Equal(t, []shared.EventType{shared.EventBadgeUnlocked}, received)
}

func TestInMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(newTestEvent(shared.EventBadgeUnlocked)))
	require.NoError(t, bus.Publish(newTestEvent(shared.EventLevelChanged)))

	assert.Equal(t, 2, count)
}

func TestInMemoryEventBus_HandlerOrderIsRegistrationOrder(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var order []string
	require.NoError(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) error {
		order = append(order, "first")
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) error {
		order = append(order, "second")
		return nil
	}))

	require.NoError(t, bus.Publish(newTestEvent(shared.EventBadgeUnlocked)))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var secondCalled bool
	require.NoError(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) error {
		secondCalled = true
		return nil
	}))

	require.NoError(t, bus.Publish(newTestEvent(shared.EventBadgeUnlocked)))

	assert.True(t, secondCalled)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Published)
	assert.Equal(t, int64(2), snap.Handled)
	assert.Equal(t, int64(1), snap.Failed)
}

func TestInMemoryEventBus_AsyncDeliversBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4})

	var mu sync.Mutex
	var count int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(newTestEvent(shared.EventLedgerAppended)))
	}

	// Close дожидается всех запущенных обработчиков.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(newTestEvent(shared.EventBadgeUnlocked)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Повторный Close безопасен.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventBadgeUnlocked, nil))
	assert.Error(t, bus.Publish(nil))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(newTestEvent(shared.EventBadgeUnlocked)))
}
