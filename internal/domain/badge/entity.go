package badge

import (
	"fmt"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// Category is a grouping label with no behavior.
type Category string

const (
	CategoryMilestone Category = "milestone"
	CategoryStreak    Category = "streak"
	CategorySeller    Category = "seller"
	CategoryCommunity Category = "community"
)

// Badge is a badge definition.
type Badge struct {
	ID       string
	Name     string
	Category Category
	Criteria Rule

	// Repeatable badges may unlock more than once, each unlock with its
	// own timestamp.
	Repeatable bool

	// RewardPoints, when positive, is granted through a new ledger event
	// on unlock - never by mutating the balance directly.
	RewardPoints int64
}

// Validate checks the definition.
func (b Badge) Validate() error {
	if b.ID == "" {
		return shared.WrapError("badge", "Validate", shared.ErrEmptyValue, "badge id is required", shared.ErrInvalidBadgeRule)
	}
	if b.RewardPoints < 0 {
		return shared.WrapError("badge", "Validate", shared.ErrValueOutOfRange, "reward points cannot be negative", shared.ErrInvalidBadgeRule)
	}
	return b.Criteria.Validate()
}

// UserBadge is one unlock record. Unique per (user, badge) unless the badge
// is repeatable.
type UserBadge struct {
	UserID     shared.UserID
	BadgeID    string
	UnlockedAt time.Time
}

// String returns a short human-readable description.
func (ub UserBadge) String() string {
	return fmt.Sprintf("UserBadge{%s %s at=%s}", ub.UserID, ub.BadgeID, ub.UnlockedAt.Format(time.RFC3339))
}

// DefaultCatalogue returns the built-in badge definitions.
func DefaultCatalogue() []Badge {
	return []Badge{
		{
			ID:       "first_listing",
			Name:     "First Listing",
			Category: CategorySeller,
			Criteria: Rule{Metric: MetricEventsOfType, Operator: OpGTE, Threshold: 1, EventType: "listing_posted"},
		},
		{
			ID:           "ten_listings",
			Name:         "Power Seller",
			Category:     CategorySeller,
			Criteria:     Rule{Metric: MetricEventsOfType, Operator: OpGTE, Threshold: 10, EventType: "listing_posted"},
			RewardPoints: 50,
		},
		{
			ID:       "streak_3",
			Name:     "Warming Up",
			Category: CategoryStreak,
			Criteria: Rule{Metric: MetricStreakCurrent, Operator: OpGTE, Threshold: 3, StreakType: "daily_activity"},
		},
		{
			ID:           "streak_7",
			Name:         "One Week Strong",
			Category:     CategoryStreak,
			Criteria:     Rule{Metric: MetricStreakCurrent, Operator: OpGTE, Threshold: 7, StreakType: "daily_activity"},
			RewardPoints: 25,
		},
		{
			ID:           "streak_30",
			Name:         "Iron Habit",
			Category:     CategoryStreak,
			Criteria:     Rule{Metric: MetricStreakLongest, Operator: OpGTE, Threshold: 30, StreakType: "daily_activity"},
			RewardPoints: 100,
		},
		{
			ID:       "points_500",
			Name:     "Half a Thousand",
			Category: CategoryMilestone,
			Criteria: Rule{Metric: MetricLifetimeEarned, Operator: OpGTE, Threshold: 500},
		},
		{
			ID:       "tier_5",
			Name:     "Expert",
			Category: CategoryMilestone,
			Criteria: Rule{Metric: MetricTier, Operator: OpGTE, Threshold: 5},
		},
		{
			ID:       "challenger",
			Name:     "Challenger",
			Category: CategoryCommunity,
			Criteria: Rule{Metric: MetricChallengesCompleted, Operator: OpGTE, Threshold: 1},
		},
		{
			ID:         "weekly_regular",
			Name:       "Weekly Regular",
			Category:   CategoryCommunity,
			Criteria:   Rule{Metric: MetricChallengesCompleted, Operator: OpGTE, Threshold: 3},
			Repeatable: false,
		},
	}
}
