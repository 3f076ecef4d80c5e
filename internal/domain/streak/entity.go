// Package streak implements per-user streak tracking over calendar days.
// Day boundaries are evaluated in the user's configured time zone; a
// configurable grace window past midnight keeps late-night activity from
// breaking a streak.
package streak

import (
	"fmt"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Type is an enumerated streak category.
type Type struct {
	ID string

	// ResetGraceHours is the tolerance window past the midnight on which
	// the streak would otherwise break. An event landing inside the window
	// still counts as a continuation.
	ResetGraceHours int

	// EventTypes lists the ledger event types that qualify for this streak.
	// Empty means every event qualifies.
	EventTypes []string
}

// Qualifies reports whether an event of the given type feeds this streak.
func (t Type) Qualifies(eventType string) bool {
	if len(t.EventTypes) == 0 {
		return true
	}
	for _, et := range t.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// Grace returns the grace window as a duration.
func (t Type) Grace() time.Duration {
	return time.Duration(t.ResetGraceHours) * time.Hour
}

// Built-in streak type IDs.
const (
	TypeDailyActivity = "daily_activity"
	TypeDailyCheckIn  = "daily_check_in"
)

// DefaultTypes returns the built-in streak catalogue.
func DefaultTypes() []Type {
	return []Type{
		{ID: TypeDailyActivity, ResetGraceHours: 6},
		{ID: TypeDailyCheckIn, ResetGraceHours: 0, EventTypes: []string{"daily_check_in"}},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// USER STREAK
// ══════════════════════════════════════════════════════════════════════════════

// Outcome describes what a qualifying event did to a streak.
type Outcome int

const (
	// OutcomeUnchanged means the day was already counted.
	OutcomeUnchanged Outcome = iota
	// OutcomeStarted means this is the first counted day ever.
	OutcomeStarted
	// OutcomeExtended means the streak grew by one day.
	OutcomeExtended
	// OutcomeReset means the gap exceeded the grace window and the streak
	// restarted at 1 (the triggering event itself counts).
	OutcomeReset
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeStarted:
		return "started"
	case OutcomeExtended:
		return "extended"
	case OutcomeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// UserStreak tracks one user's streak of a given type.
// Invariant: CurrentLength <= LongestLength.
type UserStreak struct {
	UserID        shared.UserID
	TypeID        string
	CurrentLength int
	LongestLength int

	// LastCountedDate is midnight of the last counted calendar day in the
	// user's zone. Zero until the first qualifying event.
	LastCountedDate time.Time

	UpdatedAt time.Time
}

// NewUserStreak creates an empty streak record.
func NewUserStreak(userID shared.UserID, typeID string) *UserStreak {
	return &UserStreak{UserID: userID, TypeID: typeID}
}

// RecordResult carries the outcome of applying one qualifying event.
type RecordResult struct {
	Outcome        Outcome
	PreviousLength int
	DaysMissed     int
}

// RecordActivity applies one qualifying event at occurredAt, with day
// boundaries taken in loc and the type's grace window.
//
// Same day: no change. Next calendar day, or within the grace window past
// the midnight that would have broken the streak: increment. Anything
// later: reset to 1.
func (s *UserStreak) RecordActivity(occurredAt time.Time, loc *time.Location, grace time.Duration) RecordResult {
	day := timeutil.StartOfDay(occurredAt, loc)
	res := RecordResult{PreviousLength: s.CurrentLength}

	switch {
	case s.LastCountedDate.IsZero():
		s.CurrentLength = 1
		res.Outcome = OutcomeStarted

	default:
		daysDiff := timeutil.DaysBetween(s.LastCountedDate, day, loc)
		switch {
		case daysDiff <= 0:
			// Same day (or an out-of-order earlier event): already counted.
			res.Outcome = OutcomeUnchanged
			return res

		case daysDiff == 1:
			s.CurrentLength++
			res.Outcome = OutcomeExtended

		case daysDiff == 2 && grace > 0 && occurredAt.In(loc).Sub(day) < grace:
			// Past the breaking midnight but inside the grace window.
			s.CurrentLength++
			res.Outcome = OutcomeExtended

		default:
			res.DaysMissed = daysDiff - 1
			s.CurrentLength = 1
			res.Outcome = OutcomeReset
		}
	}

	if s.CurrentLength > s.LongestLength {
		s.LongestLength = s.CurrentLength
	}
	s.LastCountedDate = day
	s.UpdatedAt = occurredAt
	return res
}

// IsBrokenAt reports whether the streak would be considered broken if no
// qualifying event arrives before t.
func (s *UserStreak) IsBrokenAt(t time.Time, loc *time.Location, grace time.Duration) bool {
	if s.LastCountedDate.IsZero() || s.CurrentLength == 0 {
		return false
	}
	daysDiff := timeutil.DaysBetween(s.LastCountedDate, t, loc)
	if daysDiff <= 1 {
		return false
	}
	if daysDiff == 2 && grace > 0 {
		return t.In(loc).Sub(timeutil.StartOfDay(t, loc)) >= grace
	}
	return true
}

// Clone returns a deep copy.
func (s *UserStreak) Clone() *UserStreak {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// String returns a short human-readable description.
func (s *UserStreak) String() string {
	return fmt.Sprintf("UserStreak{%s %s current=%d longest=%d}",
		s.UserID, s.TypeID, s.CurrentLength, s.LongestLength)
}
