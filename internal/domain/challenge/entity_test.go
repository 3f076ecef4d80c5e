package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekOf(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 7)
}

func TestNewChallenge(t *testing.T) {
	from, to := weekOf(t)

	c, err := NewChallenge(NewChallengeParams{
		ID:           "weekly_sales",
		Name:         "Weekly Sales Sprint",
		Metric:       MetricPointsEarned,
		Threshold:    200,
		EventType:    "sale_completed",
		WindowStart:  from,
		WindowEnd:    to,
		RewardPoints: 50,
	})

	require.NoError(t, err)
	assert.Equal(t, "weekly_sales", c.ID)
	assert.Equal(t, int64(200), c.Threshold)
}

func TestNewChallenge_Validation(t *testing.T) {
	from, to := weekOf(t)
	base := NewChallengeParams{
		ID:          "c1",
		Metric:      MetricEventCount,
		Threshold:   5,
		WindowStart: from,
		WindowEnd:   to,
	}

	params := base
	params.ID = ""
	_, err := NewChallenge(params)
	assert.Error(t, err)

	params = base
	params.Metric = "clicks"
	_, err = NewChallenge(params)
	assert.Error(t, err)

	params = base
	params.Threshold = 0
	_, err = NewChallenge(params)
	assert.Error(t, err)

	params = base
	params.RewardPoints = -1
	_, err = NewChallenge(params)
	assert.Error(t, err)

	// Окно обязано быть непустым и ограниченным с обеих сторон.
	params = base
	params.WindowEnd = from
	_, err = NewChallenge(params)
	assert.Error(t, err)

	params = base
	params.WindowEnd = time.Time{}
	_, err = NewChallenge(params)
	assert.Error(t, err)
}

func TestChallenge_WindowEdges(t *testing.T) {
	from, to := weekOf(t)
	c, err := NewChallenge(NewChallengeParams{
		ID: "c1", Metric: MetricEventCount, Threshold: 5,
		WindowStart: from, WindowEnd: to,
	})
	require.NoError(t, err)

	// Начало включается, конец исключается.
	assert.True(t, c.IsActiveAt(from))
	assert.True(t, c.IsActiveAt(to.Add(-time.Second)))
	assert.False(t, c.IsActiveAt(to))
	assert.False(t, c.IsActiveAt(from.Add(-time.Second)))

	assert.False(t, c.IsExpiredAt(to.Add(-time.Second)))
	assert.True(t, c.IsExpiredAt(to))
}

func TestChallenge_Contribution(t *testing.T) {
	from, to := weekOf(t)
	c, err := NewChallenge(NewChallengeParams{
		ID: "c1", Metric: MetricPointsEarned, Threshold: 200,
		EventType: "sale_completed", WindowStart: from, WindowEnd: to,
	})
	require.NoError(t, err)

	inside := from.Add(24 * time.Hour)

	assert.Equal(t, int64(30), c.Contribution("sale_completed", 30, inside))

	// Чужой тип события, событие вне окна и отрицательная дельта не в счёт.
	assert.Equal(t, int64(0), c.Contribution("listing_posted", 30, inside))
	assert.Equal(t, int64(0), c.Contribution("sale_completed", 30, to))
	assert.Equal(t, int64(0), c.Contribution("sale_completed", -30, inside))
}

func TestChallenge_Contribution_EventCount(t *testing.T) {
	from, to := weekOf(t)
	c, err := NewChallenge(NewChallengeParams{
		ID: "c1", Metric: MetricEventCount, Threshold: 5,
		WindowStart: from, WindowEnd: to,
	})
	require.NoError(t, err)

	// Без фильтра по типу считается любое событие, очки не важны.
	assert.Equal(t, int64(1), c.Contribution("listing_posted", 0, from))
	assert.Equal(t, int64(1), c.Contribution("sale_completed", -10, from))
}

func TestUserChallenge_Advance(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	uc := NewUserChallenge("user-1", "c1")

	assert.False(t, uc.Advance(100, 200, now))
	assert.Equal(t, int64(100), uc.Progress)
	assert.False(t, uc.IsCompleted())

	// Порог достигнут: завершение срабатывает ровно один раз.
	assert.True(t, uc.Advance(150, 200, now.Add(time.Hour)))
	require.NotNil(t, uc.CompletedAt)
	assert.Equal(t, now.Add(time.Hour), *uc.CompletedAt)

	// После завершения прогресс заморожен.
	assert.False(t, uc.Advance(50, 200, now.Add(2*time.Hour)))
	assert.Equal(t, int64(250), uc.Progress)
	assert.Equal(t, now.Add(time.Hour), *uc.CompletedAt)
}

func TestUserChallenge_Advance_IgnoresZeroContribution(t *testing.T) {
	uc := NewUserChallenge("user-1", "c1")

	assert.False(t, uc.Advance(0, 10, time.Now()))
	assert.False(t, uc.Advance(-5, 10, time.Now()))
	assert.Equal(t, int64(0), uc.Progress)
}
