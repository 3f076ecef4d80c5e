// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Ledger events
	EventLedgerAppended EventType = "ledger.appended"

	// Points events
	EventBalanceChanged EventType = "points.balance_changed"
	EventLevelChanged   EventType = "points.level_changed"

	// Streak events
	EventStreakStarted  EventType = "streak.started"
	EventStreakExtended EventType = "streak.extended"
	EventStreakBroken   EventType = "streak.broken"

	// Badge events
	EventBadgeUnlocked EventType = "badge.unlocked"

	// Challenge events
	EventChallengeCompleted EventType = "challenge.completed"

	// Leaderboard events
	EventLeaderboardRebuilt EventType = "leaderboard.rebuilt"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Events
// ═══════════════════════════════════════════════════════════════════════════

// BalanceChangedEvent is emitted when a user's point balance changes.
type BalanceChangedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Delta      int64  `json:"delta"`
	NewBalance int64  `json:"new_balance"`
	SourceID   string `json:"source_id"` // ledger event that caused the change
	SourceType string `json:"source_type"`
}

// Payload implements Event interface.
func (e BalanceChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"delta":       e.Delta,
		"new_balance": e.NewBalance,
		"source_id":   e.SourceID,
		"source_type": e.SourceType,
	}
}

// NewBalanceChangedEvent creates a new BalanceChangedEvent.
func NewBalanceChangedEvent(userID string, delta, newBalance int64, sourceID, sourceType string) BalanceChangedEvent {
	return BalanceChangedEvent{
		BaseEvent:  NewBaseEvent(EventBalanceChanged, userID),
		UserID:     userID,
		Delta:      delta,
		NewBalance: newBalance,
		SourceID:   sourceID,
		SourceType: sourceType,
	}
}

// LevelChangedEvent is emitted when a balance change moves a user across a
// level threshold. Consumed by the badge evaluator and the notification channel.
type LevelChangedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	OldTier int    `json:"old_tier"`
	NewTier int    `json:"new_tier"`
	Balance int64  `json:"balance"`
}

// Payload implements Event interface.
func (e LevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"old_tier": e.OldTier,
		"new_tier": e.NewTier,
		"balance":  e.Balance,
	}
}

// NewLevelChangedEvent creates a new LevelChangedEvent.
func NewLevelChangedEvent(userID string, oldTier, newTier int, balance int64) LevelChangedEvent {
	return LevelChangedEvent{
		BaseEvent: NewBaseEvent(EventLevelChanged, userID),
		UserID:    userID,
		OldTier:   oldTier,
		NewTier:   newTier,
		Balance:   balance,
	}
}

// LeveledUp returns true if the user moved to a higher tier.
func (e LevelChangedEvent) LeveledUp() bool {
	return e.NewTier > e.OldTier
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakExtendedEvent is emitted when a streak grows by one day.
type StreakExtendedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	StreakType string `json:"streak_type"`
	Length     int    `json:"length"`
	Longest    int    `json:"longest"`
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"streak_type": e.StreakType,
		"length":      e.Length,
		"longest":     e.Longest,
	}
}

// NewStreakExtendedEvent creates a new StreakExtendedEvent.
func NewStreakExtendedEvent(userID, streakType string, length, longest int) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:  NewBaseEvent(EventStreakExtended, userID),
		UserID:     userID,
		StreakType: streakType,
		Length:     length,
		Longest:    longest,
	}
}

// StreakBrokenEvent is emitted when a qualifying event arrives after the
// grace window, resetting the streak to 1.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	StreakType     string `json:"streak_type"`
	PreviousLength int    `json:"previous_length"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"streak_type":     e.StreakType,
		"previous_length": e.PreviousLength,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID, streakType string, previousLength, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		UserID:         userID,
		StreakType:     streakType,
		PreviousLength: previousLength,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeUnlockedEvent is emitted when a badge's criteria newly become satisfied.
type BadgeUnlockedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	BadgeID      string `json:"badge_id"`
	Category     string `json:"category"`
	RewardPoints int64  `json:"reward_points"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"badge_id":      e.BadgeID,
		"category":      e.Category,
		"reward_points": e.RewardPoints,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(userID, badgeID, category string, rewardPoints int64) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent:    NewBaseEvent(EventBadgeUnlocked, userID),
		UserID:       userID,
		BadgeID:      badgeID,
		Category:     category,
		RewardPoints: rewardPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Challenge Events
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeCompletedEvent is emitted exactly once per (user, challenge)
// when accumulated progress reaches the challenge threshold.
type ChallengeCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	ChallengeID  string `json:"challenge_id"`
	Progress     int64  `json:"progress"`
	RewardPoints int64  `json:"reward_points"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"challenge_id":  e.ChallengeID,
		"progress":      e.Progress,
		"reward_points": e.RewardPoints,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID, challengeID string, progress, rewardPoints int64) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:    NewBaseEvent(EventChallengeCompleted, userID),
		UserID:       userID,
		ChallengeID:  challengeID,
		Progress:     progress,
		RewardPoints: rewardPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardRebuiltEvent is emitted after a snapshot replace.
type LeaderboardRebuiltEvent struct {
	BaseEvent
	Scope      string `json:"scope"`
	Window     string `json:"window"`
	EntryCount int    `json:"entry_count"`
	SnapshotID string `json:"snapshot_id"`
}

// Payload implements Event interface.
func (e LeaderboardRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"scope":       e.Scope,
		"window":      e.Window,
		"entry_count": e.EntryCount,
		"snapshot_id": e.SnapshotID,
	}
}

// NewLeaderboardRebuiltEvent creates a new LeaderboardRebuiltEvent.
func NewLeaderboardRebuiltEvent(scope, window string, entryCount int, snapshotID string) LeaderboardRebuiltEvent {
	return LeaderboardRebuiltEvent{
		BaseEvent:  NewBaseEvent(EventLeaderboardRebuilt, scope),
		Scope:      scope,
		Window:     window,
		EntryCount: entryCount,
		SnapshotID: snapshotID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
