// Package challenge implements time-boxed challenges: per-user progress
// against a metric threshold inside a fixed window, with a points reward
// granted through the ledger on completion.
package challenge

import (
	"fmt"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Metric selects what a challenge counts.
type Metric string

const (
	// MetricPointsEarned sums positive point deltas of qualifying events.
	MetricPointsEarned Metric = "points_earned"
	// MetricEventCount counts qualifying events.
	MetricEventCount Metric = "event_count"
)

// IsValid checks whether the metric is a known one.
func (m Metric) IsValid() bool {
	return m == MetricPointsEarned || m == MetricEventCount
}

// Challenge is a challenge definition. Evaluation only considers events with
// occurred_at inside [WindowStart, WindowEnd).
type Challenge struct {
	ID        string
	Name      string
	Metric    Metric
	Threshold int64

	// EventType restricts which events contribute. Empty means any event.
	EventType string

	Window       shared.TimeRange
	RewardPoints int64
}

// NewChallengeParams contains parameters for defining a challenge.
type NewChallengeParams struct {
	ID           string
	Name         string
	Metric       Metric
	Threshold    int64
	EventType    string
	WindowStart  time.Time
	WindowEnd    time.Time
	RewardPoints int64
}

// NewChallenge creates a validated challenge definition.
func NewChallenge(params NewChallengeParams) (*Challenge, error) {
	if params.ID == "" {
		return nil, shared.WrapError("challenge", "NewChallenge", shared.ErrEmptyValue, "challenge id is required", shared.ErrInvalidChallengeWindow)
	}
	if !params.Metric.IsValid() {
		return nil, shared.NewDomainError("challenge", "NewChallenge", shared.ErrInvalidInput, "unknown challenge metric")
	}
	if params.Threshold <= 0 {
		return nil, shared.NewDomainError("challenge", "NewChallenge", shared.ErrValueOutOfRange, "threshold must be positive")
	}
	if params.RewardPoints < 0 {
		return nil, shared.NewDomainError("challenge", "NewChallenge", shared.ErrValueOutOfRange, "reward points cannot be negative")
	}
	window, err := shared.NewTimeRange(params.WindowStart, params.WindowEnd)
	if err != nil {
		return nil, shared.ErrInvalidChallengeWindow
	}
	if !window.IsBounded() {
		return nil, shared.ErrInvalidChallengeWindow
	}
	return &Challenge{
		ID:           params.ID,
		Name:         params.Name,
		Metric:       params.Metric,
		Threshold:    params.Threshold,
		EventType:    params.EventType,
		Window:       window,
		RewardPoints: params.RewardPoints,
	}, nil
}

// IsActiveAt reports whether the window is open at t.
func (c *Challenge) IsActiveAt(t time.Time) bool {
	return c.Window.Contains(t)
}

// IsExpiredAt reports whether the window has closed by t.
func (c *Challenge) IsExpiredAt(t time.Time) bool {
	return c.Window.IsBounded() && !t.Before(c.Window.To)
}

// Contribution returns how much an event advances this challenge.
// Zero means the event is irrelevant.
func (c *Challenge) Contribution(eventType string, pointsDelta int64, occurredAt time.Time) int64 {
	if !c.Window.Contains(occurredAt) {
		return 0
	}
	if c.EventType != "" && c.EventType != eventType {
		return 0
	}
	switch c.Metric {
	case MetricPointsEarned:
		if pointsDelta > 0 {
			return pointsDelta
		}
		return 0
	case MetricEventCount:
		return 1
	default:
		return 0
	}
}

// Clone returns a copy of the definition.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a short human-readable description.
func (c *Challenge) String() string {
	return fmt.Sprintf("Challenge{%s %s>=%d window=[%s,%s)}",
		c.ID, c.Metric, c.Threshold,
		c.Window.From.Format(time.RFC3339), c.Window.To.Format(time.RFC3339))
}

// ══════════════════════════════════════════════════════════════════════════════
// USER CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// UserChallenge tracks one user's progress against one challenge.
// Progress is monotonically non-decreasing inside the window; CompletedAt is
// set at most once and never cleared.
type UserChallenge struct {
	UserID      shared.UserID
	ChallengeID string
	Progress    int64
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// NewUserChallenge creates an empty progress record.
func NewUserChallenge(userID shared.UserID, challengeID string) *UserChallenge {
	return &UserChallenge{UserID: userID, ChallengeID: challengeID}
}

// IsCompleted reports whether the challenge has been completed.
func (uc *UserChallenge) IsCompleted() bool {
	return uc.CompletedAt != nil
}

// Advance adds a contribution at the given time. Returns true exactly once,
// on the event that pushes progress to the threshold. Progress freezes after
// completion: a completed challenge remains completed permanently.
func (uc *UserChallenge) Advance(contribution int64, threshold int64, at time.Time) (completedNow bool) {
	if contribution <= 0 || uc.IsCompleted() {
		return false
	}
	uc.Progress += contribution
	uc.UpdatedAt = at
	if uc.Progress >= threshold {
		completed := at
		uc.CompletedAt = &completed
		return true
	}
	return false
}

// Clone returns a deep copy.
func (uc *UserChallenge) Clone() *UserChallenge {
	if uc == nil {
		return nil
	}
	clone := *uc
	if uc.CompletedAt != nil {
		t := *uc.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}

// String returns a short human-readable description.
func (uc *UserChallenge) String() string {
	status := "in_progress"
	if uc.IsCompleted() {
		status = "completed"
	}
	return fmt.Sprintf("UserChallenge{%s %s progress=%d %s}", uc.UserID, uc.ChallengeID, uc.Progress, status)
}
