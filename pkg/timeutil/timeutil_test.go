package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2025, 3, 5, 17, 45, 12, 500, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), StartOfDay(ts, time.UTC))

	almaty, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)
	// 22:00 UTC в Алматы (UTC+5) - это уже следующий день.
	late := time.Date(2025, 3, 5, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 6, 0, 0, 0, 0, almaty), StartOfDay(late, almaty))
}

func TestEndOfDay(t *testing.T) {
	ts := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	end := EndOfDay(ts, time.UTC)

	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
	assert.Equal(t, 5, end.Day())
}

func TestStartOfWeek(t *testing.T) {
	// Среда.
	wed := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), StartOfWeek(wed, time.UTC))

	// Воскресенье относится к неделе, начавшейся в предыдущий понедельник.
	sun := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), StartOfWeek(sun, time.UTC))

	// Понедельник - начало своей же недели.
	mon := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, StartOfWeek(mon, time.UTC))
}

func TestStartOfMonth(t *testing.T) {
	ts := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(ts, time.UTC))
}

func TestIsSameDay(t *testing.T) {
	a := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 5, 23, 59, 59, 0, time.UTC)
	c := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsSameDay(a, b, time.UTC))
	assert.False(t, IsSameDay(b, c, time.UTC))

	// Один и тот же момент может попадать в разные календарные дни
	// в зависимости от зоны.
	almaty, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)
	utcLate := time.Date(2025, 3, 5, 21, 0, 0, 0, time.UTC)
	utcMorning := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	assert.True(t, IsSameDay(utcLate, utcMorning, time.UTC))
	assert.False(t, IsSameDay(utcLate, utcMorning, almaty))
}

func TestIsConsecutiveDay(t *testing.T) {
	a := time.Date(2025, 3, 5, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 6, 1, 0, 0, 0, time.UTC)

	assert.True(t, IsConsecutiveDay(a, b, time.UTC))
	assert.False(t, IsConsecutiveDay(a, a, time.UTC))
	assert.False(t, IsConsecutiveDay(b, a, time.UTC))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 5, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 3, 6, 0, 1, 0, 0, time.UTC)

	// Считаются пересечения границ суток, а не полные 24 часа.
	assert.Equal(t, 1, DaysBetween(a, b, time.UTC))
	assert.Equal(t, 0, DaysBetween(a, a, time.UTC))
	assert.Equal(t, -1, DaysBetween(b, a, time.UTC))
	assert.Equal(t, 3, DaysBetween(a, a.AddDate(0, 0, 3), time.UTC))
}

func TestDaysBetween_DSTTransitions(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Переход на летнее время: местные сутки 8 марта длятся 23 часа,
	// но это всё равно ровно один календарный день.
	springBefore := time.Date(2026, 3, 8, 12, 0, 0, 0, ny)
	springAfter := time.Date(2026, 3, 9, 12, 0, 0, 0, ny)
	assert.Equal(t, 1, DaysBetween(springBefore, springAfter, ny))

	// Переход на зимнее время: сутки 1 ноября длятся 25 часов.
	fallBefore := time.Date(2026, 11, 1, 12, 0, 0, 0, ny)
	fallAfter := time.Date(2026, 11, 2, 12, 0, 0, 0, ny)
	assert.Equal(t, 1, DaysBetween(fallBefore, fallAfter, ny))

	// Через саму границу перевода стрелок.
	assert.Equal(t, 2, DaysBetween(springBefore, time.Date(2026, 3, 10, 0, 30, 0, 0, ny), ny))
}

func TestLocationOrDefault(t *testing.T) {
	assert.Equal(t, time.UTC, LocationOrDefault(""))
	assert.Equal(t, time.UTC, LocationOrDefault("Neverland/Nowhere"))

	loc := LocationOrDefault("Asia/Almaty")
	assert.Equal(t, "Asia/Almaty", loc.String())
}

func TestFormatAndParseDate(t *testing.T) {
	ts := time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-05", FormatDateStr(ts, time.UTC))

	parsed, err := ParseDate("2025-03-05", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), parsed)

	_, err = ParseDate("not-a-date", time.UTC)
	assert.Error(t, err)
}
