package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperator_Compare(t *testing.T) {
	assert.True(t, OpGTE.Compare(10, 10))
	assert.True(t, OpGTE.Compare(11, 10))
	assert.False(t, OpGTE.Compare(9, 10))

	assert.True(t, OpGT.Compare(11, 10))
	assert.False(t, OpGT.Compare(10, 10))

	assert.True(t, OpEQ.Compare(10, 10))
	assert.False(t, OpEQ.Compare(11, 10))

	assert.True(t, OpLTE.Compare(10, 10))
	assert.False(t, OpLTE.Compare(11, 10))

	assert.True(t, OpLT.Compare(9, 10))
	assert.False(t, OpLT.Compare(10, 10))

	// Неизвестный оператор никогда не срабатывает.
	assert.False(t, Operator("~=").Compare(10, 10))
}

func TestRule_Validate(t *testing.T) {
	good := Rule{Metric: MetricBalance, Operator: OpGTE, Threshold: 100}
	assert.NoError(t, good.Validate())

	bad := Rule{Metric: "karma", Operator: OpGTE}
	assert.Error(t, bad.Validate())

	bad = Rule{Metric: MetricBalance, Operator: "~="}
	assert.Error(t, bad.Validate())

	// Стриковые метрики требуют типа серии.
	bad = Rule{Metric: MetricStreakCurrent, Operator: OpGTE, Threshold: 3}
	assert.Error(t, bad.Validate())
	assert.NoError(t, Rule{Metric: MetricStreakCurrent, Operator: OpGTE, Threshold: 3, StreakType: "daily_activity"}.Validate())

	bad = Rule{Metric: MetricEventsOfType, Operator: OpGTE, Threshold: 1}
	assert.Error(t, bad.Validate())
	assert.NoError(t, Rule{Metric: MetricEventsOfType, Operator: OpGTE, Threshold: 1, EventType: "listing_posted"}.Validate())
}

func TestStateView_Value(t *testing.T) {
	view := StateView{
		Balance:             70,
		LifetimeEarned:      120,
		Tier:                2,
		Streaks:             map[string]StreakView{"daily_activity": {Current: 4, Longest: 9}},
		ChallengesCompleted: 1,
		EventCounts:         map[string]int64{"listing_posted": 3},
	}

	assert.Equal(t, int64(70), view.Value(Rule{Metric: MetricBalance}))
	assert.Equal(t, int64(120), view.Value(Rule{Metric: MetricLifetimeEarned}))
	assert.Equal(t, int64(2), view.Value(Rule{Metric: MetricTier}))
	assert.Equal(t, int64(4), view.Value(Rule{Metric: MetricStreakCurrent, StreakType: "daily_activity"}))
	assert.Equal(t, int64(9), view.Value(Rule{Metric: MetricStreakLongest, StreakType: "daily_activity"}))
	assert.Equal(t, int64(1), view.Value(Rule{Metric: MetricChallengesCompleted}))
	assert.Equal(t, int64(3), view.Value(Rule{Metric: MetricEventsOfType, EventType: "listing_posted"}))

	// Отсутствующие серии и счётчики читаются как ноль.
	assert.Equal(t, int64(0), view.Value(Rule{Metric: MetricStreakCurrent, StreakType: "daily_check_in"}))
	assert.Equal(t, int64(0), view.Value(Rule{Metric: MetricEventsOfType, EventType: "review_posted"}))
}

func TestRule_NewlySatisfied(t *testing.T) {
	rule := Rule{Metric: MetricLifetimeEarned, Operator: OpGTE, Threshold: 500}

	before := StateView{LifetimeEarned: 480}
	after := StateView{LifetimeEarned: 510}

	assert.True(t, rule.NewlySatisfied(before, after))

	// Уже выполненное правило повторно не срабатывает.
	assert.False(t, rule.NewlySatisfied(after, StateView{LifetimeEarned: 600}))

	// И тем более не срабатывает, когда порог так и не достигнут.
	assert.False(t, rule.NewlySatisfied(before, StateView{LifetimeEarned: 499}))
}

func TestBadge_Validate(t *testing.T) {
	good := Badge{
		ID:       "first_listing",
		Name:     "First Listing",
		Criteria: Rule{Metric: MetricEventsOfType, Operator: OpGTE, Threshold: 1, EventType: "listing_posted"},
	}
	assert.NoError(t, good.Validate())

	bad := good
	bad.ID = ""
	assert.Error(t, bad.Validate())

	bad = good
	bad.RewardPoints = -10
	assert.Error(t, bad.Validate())
}

func TestDefaultCatalogue(t *testing.T) {
	catalogue := DefaultCatalogue()

	require.NotEmpty(t, catalogue)
	seen := make(map[string]bool, len(catalogue))
	for _, b := range catalogue {
		assert.NoError(t, b.Validate(), "badge %s", b.ID)
		assert.False(t, seen[b.ID], "duplicate badge id %s", b.ID)
		seen[b.ID] = true
	}
}
