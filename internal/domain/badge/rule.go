// Package badge implements the badge evaluator: a closed set of tagged
// comparison rules over derived state, unlocked exactly once per user unless
// the badge is repeatable.
package badge

import (
	"fmt"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA RULES
// Criteria are data, not code: a metric, an operator, and a threshold.
// That keeps evaluation deterministic and replay-safe.
// ══════════════════════════════════════════════════════════════════════════════

// Metric names a single observable of a user's derived state.
type Metric string

const (
	MetricBalance             Metric = "balance"
	MetricLifetimeEarned      Metric = "lifetime_earned"
	MetricTier                Metric = "tier"
	MetricStreakCurrent       Metric = "streak_current"
	MetricStreakLongest       Metric = "streak_longest"
	MetricChallengesCompleted Metric = "challenges_completed"
	MetricEventsOfType        Metric = "events_of_type"
)

// IsValid checks whether the metric is a known one.
func (m Metric) IsValid() bool {
	switch m {
	case MetricBalance, MetricLifetimeEarned, MetricTier,
		MetricStreakCurrent, MetricStreakLongest,
		MetricChallengesCompleted, MetricEventsOfType:
		return true
	}
	return false
}

// Operator compares a metric value against a threshold.
type Operator string

const (
	OpGTE Operator = ">="
	OpGT  Operator = ">"
	OpEQ  Operator = "=="
	OpLTE Operator = "<="
	OpLT  Operator = "<"
)

// IsValid checks whether the operator is a known one.
func (o Operator) IsValid() bool {
	switch o {
	case OpGTE, OpGT, OpEQ, OpLTE, OpLT:
		return true
	}
	return false
}

// Compare applies the operator.
func (o Operator) Compare(value, threshold int64) bool {
	switch o {
	case OpGTE:
		return value >= threshold
	case OpGT:
		return value > threshold
	case OpEQ:
		return value == threshold
	case OpLTE:
		return value <= threshold
	case OpLT:
		return value < threshold
	default:
		return false
	}
}

// Rule is one declarative criterion.
type Rule struct {
	Metric    Metric
	Operator  Operator
	Threshold int64

	// StreakType qualifies the streak metrics.
	StreakType string

	// EventType qualifies MetricEventsOfType.
	EventType string
}

// Validate checks the rule shape.
func (r Rule) Validate() error {
	if !r.Metric.IsValid() {
		return shared.ErrUnknownBadgeMetric
	}
	if !r.Operator.IsValid() {
		return shared.ErrUnknownBadgeOperator
	}
	switch r.Metric {
	case MetricStreakCurrent, MetricStreakLongest:
		if r.StreakType == "" {
			return shared.WrapError("badge", "Validate", shared.ErrInvalidInput,
				"streak metrics require a streak type", shared.ErrInvalidBadgeRule)
		}
	case MetricEventsOfType:
		if r.EventType == "" {
			return shared.WrapError("badge", "Validate", shared.ErrInvalidInput,
				"events_of_type requires an event type", shared.ErrInvalidBadgeRule)
		}
	}
	return nil
}

// String returns a short human-readable description.
func (r Rule) String() string {
	qualifier := ""
	switch r.Metric {
	case MetricStreakCurrent, MetricStreakLongest:
		qualifier = "(" + r.StreakType + ")"
	case MetricEventsOfType:
		qualifier = "(" + r.EventType + ")"
	}
	return fmt.Sprintf("%s%s %s %d", r.Metric, qualifier, r.Operator, r.Threshold)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE VIEW
// ══════════════════════════════════════════════════════════════════════════════

// StreakView is a streak's lengths as seen by the evaluator.
type StreakView struct {
	Current int64
	Longest int64
}

// StateView is the slice of derived state a rule can observe. The evaluator
// compares the view before and after an event: a badge unlocks when its rule
// newly becomes satisfied.
type StateView struct {
	Balance             int64
	LifetimeEarned      int64
	Tier                int64
	Streaks             map[string]StreakView
	ChallengesCompleted int64
	EventCounts         map[string]int64
}

// Value extracts the metric observed by the rule.
func (v StateView) Value(r Rule) int64 {
	switch r.Metric {
	case MetricBalance:
		return v.Balance
	case MetricLifetimeEarned:
		return v.LifetimeEarned
	case MetricTier:
		return v.Tier
	case MetricStreakCurrent:
		return v.Streaks[r.StreakType].Current
	case MetricStreakLongest:
		return v.Streaks[r.StreakType].Longest
	case MetricChallengesCompleted:
		return v.ChallengesCompleted
	case MetricEventsOfType:
		return v.EventCounts[r.EventType]
	default:
		return 0
	}
}

// Satisfied evaluates the rule against a view.
func (r Rule) Satisfied(view StateView) bool {
	return r.Operator.Compare(view.Value(r), r.Threshold)
}

// NewlySatisfied reports a false-to-true transition between two views.
// Repeatable badges fire on every transition; non-repeatable ones are
// additionally guarded by existing unlock records.
func (r Rule) NewlySatisfied(before, after StateView) bool {
	return !r.Satisfied(before) && r.Satisfied(after)
}
