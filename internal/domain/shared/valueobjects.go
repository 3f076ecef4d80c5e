// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a stable user identifier supplied by the authentication
// collaborator. The engine never mints these itself.
type UserID string

// Regular expression for valid user ID format.
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,63}$`)

// IsValid checks if the user ID is valid.
func (u UserID) IsValid() bool {
	return userIDRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// Normalize returns a normalized (lowercase) version of the user ID.
func (u UserID) Normalize() UserID {
	return UserID(strings.ToLower(string(u)))
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Time Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a half-open time interval [From, To).
// A zero To means the range is unbounded on the right.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// NewTimeRange creates a validated time range.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	if !to.IsZero() && !from.Before(to) {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrValueOutOfRange, "range start must precede end")
	}
	return TimeRange{From: from, To: to}, nil
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if t.Before(r.From) {
		return false
	}
	if r.To.IsZero() {
		return true
	}
	return t.Before(r.To)
}

// IsBounded reports whether the range has an upper bound.
func (r TimeRange) IsBounded() bool {
	return !r.To.IsZero()
}

// Duration returns the length of a bounded range, zero otherwise.
func (r TimeRange) Duration() time.Duration {
	if !r.IsBounded() {
		return 0
	}
	return r.To.Sub(r.From)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

// Pagination describes a limit/offset page request.
type Pagination struct {
	Limit  int
	Offset int
}

// Normalize clamps the page request into sane bounds.
func (p Pagination) Normalize(defaultLimit, maxLimit int) Pagination {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
