package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(10*time.Minute), s.Next(now))
	assert.Equal(t, "@every 10m0s", s.String())
}

func TestParseCronSchedule(t *testing.T) {
	cs, err := ParseCronSchedule("0 3 * * *")
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", cs.String())

	_, err = ParseCronSchedule("0 3 * *")
	assert.Error(t, err)

	_, err = ParseCronSchedule("61 3 * * *")
	assert.Error(t, err)

	_, err = ParseCronSchedule("x 3 * * *")
	assert.Error(t, err)
}

func TestCronSchedule_Next_Daily(t *testing.T) {
	cs, err := ParseCronSchedule(EveryDay3AM)
	require.NoError(t, err)

	after := time.Date(2025, 3, 5, 12, 30, 0, 0, time.UTC)
	next := cs.Next(after)
	assert.Equal(t, time.Date(2025, 3, 6, 3, 0, 0, 0, time.UTC), next)

	// До трёх ночи того же дня.
	after = time.Date(2025, 3, 5, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 3, 0, 0, 0, time.UTC), cs.Next(after))
}

func TestCronSchedule_Next_EveryFiveMinutes(t *testing.T) {
	cs, err := ParseCronSchedule("*/5 * * * *")
	require.NoError(t, err)

	after := time.Date(2025, 3, 5, 12, 2, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 12, 5, 0, 0, time.UTC), cs.Next(after))

	// С точного совпадения переходим к следующему слоту.
	after = time.Date(2025, 3, 5, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 12, 10, 0, 0, time.UTC), cs.Next(after))
}

func TestCronSchedule_Next_Weekday(t *testing.T) {
	cs, err := ParseCronSchedule(EverySunday)
	require.NoError(t, err)

	// Среда 5 марта 2025; ближайшее воскресенье - 9 марта.
	after := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), cs.Next(after))
}

func TestParseCronSchedule_RangesAndLists(t *testing.T) {
	cs, err := ParseCronSchedule("0 9-11 * * *")
	require.NoError(t, err)

	after := time.Date(2025, 3, 5, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC), cs.Next(after))

	cs, err = ParseCronSchedule("0 0,12 * * *")
	require.NoError(t, err)
	after = time.Date(2025, 3, 5, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC), cs.Next(after))
}
