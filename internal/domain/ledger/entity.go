// Package ledger implements the append-only event ledger, the single source
// of truth for all derived gamification state. Events are immutable once
// written; corrections are compensating reversal events, never edits.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// EventID uniquely identifies a ledger event. Caller-supplied or derived
// deterministically, which is what makes ingestion idempotent under
// at-least-once delivery.
type EventID string

// IsValid checks that the event ID is non-empty and within bounds.
func (id EventID) IsValid() bool {
	s := string(id)
	return s != "" && len(s) <= 128 && strings.TrimSpace(s) == s
}

// String returns the string representation.
func (id EventID) String() string {
	return string(id)
}

// EventType categorizes a point-worthy action.
type EventType string

// Well-known event types. The ledger accepts any non-empty type; these are
// the ones the default streak, badge, and challenge catalogues recognize.
const (
	TypeListingPosted    EventType = "listing_posted"
	TypeListingSold      EventType = "listing_sold"
	TypeReviewReceived   EventType = "review_received"
	TypeDailyCheckIn     EventType = "daily_check_in"
	TypeProfileCompleted EventType = "profile_completed"

	// TypeReversal marks a compensating correction. Always carries a
	// non-positive points delta.
	TypeReversal EventType = "reversal"

	// Reward types generated by the engine itself.
	TypeChallengeReward EventType = "challenge_reward"
	TypeBadgeReward     EventType = "badge_reward"
)

// IsValid checks that the event type is well-formed.
func (t EventType) IsValid() bool {
	s := string(t)
	return s != "" && len(s) <= 64 && strings.TrimSpace(s) == s
}

// String returns the string representation.
func (t EventType) String() string {
	return string(t)
}

// IsEngineGenerated reports whether events of this type are minted by the
// engine rather than submitted by collaborators.
func (t EventType) IsEngineGenerated() bool {
	return t == TypeChallengeReward || t == TypeBadgeReward
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Event is one immutable ledger record.
type Event struct {
	ID          EventID
	UserID      shared.UserID
	Type        EventType
	PointsDelta int64
	OccurredAt  time.Time
	Payload     map[string]any

	// Seq is the durably assigned sequence position, set by the store on
	// append. Zero until the event is recorded.
	Seq int64

	RecordedAt time.Time
}

// NewEventParams contains parameters for creating a ledger event.
type NewEventParams struct {
	ID          string
	UserID      string
	Type        string
	PointsDelta int64
	OccurredAt  time.Time
	Payload     map[string]any
}

// NewEvent creates a validated ledger event.
// Returns shared.ErrInvalidEventPayload on malformed input.
func NewEvent(params NewEventParams) (*Event, error) {
	userID, err := shared.NewUserID(params.UserID)
	if err != nil {
		return nil, invalid("user_id is required and must be well-formed")
	}

	id := EventID(strings.TrimSpace(params.ID))
	if !id.IsValid() {
		return nil, invalid("event_id is required")
	}

	typ := EventType(strings.TrimSpace(params.Type))
	if !typ.IsValid() {
		return nil, invalid("type is required")
	}

	if params.OccurredAt.IsZero() {
		return nil, invalid("occurred_at is required")
	}

	if typ == TypeReversal && params.PointsDelta > 0 {
		return nil, invalid("reversal events must carry a non-positive delta")
	}

	ev := &Event{
		ID:          id,
		UserID:      userID,
		Type:        typ,
		PointsDelta: params.PointsDelta,
		OccurredAt:  params.OccurredAt.UTC(),
		Payload:     clonePayload(params.Payload),
	}
	return ev, nil
}

// NewRewardEventParams describes an engine-generated reward.
type NewRewardEventParams struct {
	ID         EventID
	UserID     shared.UserID
	Type       EventType
	Delta      int64
	OccurredAt time.Time
	Source     string
}

// NewRewardEvent constructs a reward event issued by the engine itself.
// Reward IDs are deterministic, so a repeated append is a no-op, not an error.
func NewRewardEvent(params NewRewardEventParams) *Event {
	return &Event{
		ID:          params.ID,
		UserID:      params.UserID,
		Type:        params.Type,
		PointsDelta: params.Delta,
		OccurredAt:  params.OccurredAt.UTC(),
		Payload: map[string]any{
			"source":           params.Source,
			"engine_generated": true,
		},
	}
}

func invalid(msg string) error {
	return shared.WrapError("ledger", "NewEvent", shared.ErrInvalidInput, msg, shared.ErrInvalidEventPayload)
}

// IsReversal reports whether the event is a compensating correction.
func (e *Event) IsReversal() bool {
	return e.Type == TypeReversal
}

// Category returns the marketplace category carried in the payload, if any.
// Used for per-category leaderboard scopes.
func (e *Event) Category() string {
	if e.Payload == nil {
		return ""
	}
	if c, ok := e.Payload["category"].(string); ok {
		return strings.TrimSpace(c)
	}
	return ""
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Payload = clonePayload(e.Payload)
	return &clone
}

// String returns a short human-readable description.
func (e *Event) String() string {
	return fmt.Sprintf("Event{%s user=%s type=%s delta=%d at=%s}",
		e.ID, e.UserID, e.Type, e.PointsDelta, e.OccurredAt.Format(time.RFC3339))
}

func clonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	clone := make(map[string]any, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// ══════════════════════════════════════════════════════════════════════════════
// REPLAY ORDER
// ══════════════════════════════════════════════════════════════════════════════

// SortForReplay orders events by occurred_at ascending, ties broken by
// event_id. Replaying in this order from empty state must reproduce all
// derived state exactly.
func SortForReplay(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
}

// DeterministicRewardID derives the event ID for an engine-generated reward.
// The same trigger always produces the same ID, so reward appends are
// idempotent across retries and replay.
func DeterministicRewardID(kind string, sourceID, userID string) EventID {
	return EventID(fmt.Sprintf("%s:%s:%s:reward", kind, sourceID, userID))
}

// RepeatableRewardID derives the reward ID for the n-th unlock of a
// repeatable badge.
func RepeatableRewardID(kind string, sourceID, userID string, n int) EventID {
	return EventID(fmt.Sprintf("%s:%s:%s:reward:%d", kind, sourceID, userID, n))
}
