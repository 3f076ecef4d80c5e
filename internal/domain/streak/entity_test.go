package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStreak_RecordActivity_StartsAtOne(t *testing.T) {
	s := NewUserStreak("user-1", TypeDailyActivity)

	res := s.RecordActivity(time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC), time.UTC, 0)

	assert.Equal(t, OutcomeStarted, res.Outcome)
	assert.Equal(t, 0, res.PreviousLength)
	assert.Equal(t, 1, s.CurrentLength)
	assert.Equal(t, 1, s.LongestLength)
}

func TestUserStreak_RecordActivity_SameDayIsIdempotent(t *testing.T) {
	s := NewUserStreak("user-1", TypeDailyActivity)
	s.RecordActivity(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.UTC, 0)

	res := s.RecordActivity(time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC), time.UTC, 0)

	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	assert.Equal(t, 1, s.CurrentLength)
}

func TestUserStreak_RecordActivity_ConsecutiveDaysExtend(t *testing.T) {
	s := NewUserStreak("user-1", TypeDailyActivity)
	s.RecordActivity(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), time.UTC, 0)

	res := s.RecordActivity(time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), time.UTC, 0)
	assert.Equal(t, OutcomeExtended, res.Outcome)

	res = s.RecordActivity(time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), time.UTC, 0)
	assert.Equal(t, OutcomeExtended, res.Outcome)
	assert.Equal(t, 3, s.CurrentLength)
	assert.Equal(t, 3, s.LongestLength)
}

func TestUserStreak_RecordActivity_ExtendsAcrossDSTSpringForward(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := NewUserStreak("user-1", TypeDailyActivity)

	// 8 марта 2026 в Нью-Йорке длится 23 часа из-за перевода стрелок.
	// Следующий местный календарный день всё равно продлевает серию.
	s.RecordActivity(time.Date(2026, 3, 8, 9, 0, 0, 0, ny), ny, 0)
	res := s.RecordActivity(time.Date(2026, 3, 9, 9, 0, 0, 0, ny), ny, 0)

	assert.Equal(t, OutcomeExtended, res.Outcome)
	assert.Equal(t, 2, s.CurrentLength)
}

func TestUserStreak_RecordActivity_ExtendsAcrossDSTFallBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := NewUserStreak("user-1", TypeDailyActivity)

	// 1 ноября 2026 длится 25 часов. Сутки спустя - один день, не два.
	s.RecordActivity(time.Date(2026, 11, 1, 9, 0, 0, 0, ny), ny, 0)
	res := s.RecordActivity(time.Date(2026, 11, 2, 9, 0, 0, 0, ny), ny, 0)

	assert.Equal(t, OutcomeExtended, res.Outcome)
	assert.Equal(t, 2, s.CurrentLength)
}

func TestUserStreak_RecordActivity_GraceWindowExtends(t *testing.T) {
	grace := 6 * time.Hour
	s := NewUserStreak("user-1", TypeDailyActivity)
	s.RecordActivity(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), time.UTC, grace)

	// Второе марта пропущено, но событие пришло 3 марта в 02:00,
	// внутри шестичасового льготного окна.
	res := s.RecordActivity(time.Date(2025, 3, 3, 2, 0, 0, 0, time.UTC), time.UTC, grace)

	assert.Equal(t, OutcomeExtended, res.Outcome)
	assert.Equal(t, 2, s.CurrentLength)
}

func TestUserStreak_RecordActivity_PastGraceResets(t *testing.T) {
	grace := 6 * time.Hour
	s := NewUserStreak("user-1", TypeDailyActivity)
	s.RecordActivity(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), time.UTC, grace)
	s.RecordActivity(time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), time.UTC, grace)

	res := s.RecordActivity(time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC), time.UTC, grace)

	assert.Equal(t, OutcomeReset, res.Outcome)
	assert.Equal(t, 2, res.PreviousLength)
	assert.Equal(t, 1, res.DaysMissed)
	assert.Equal(t, 1, s.CurrentLength)
	// Рекорд сохраняется после сброса.
	assert.Equal(t, 2, s.LongestLength)
}

func TestUserStreak_RecordActivity_ZeroGraceResetsNextMorning(t *testing.T) {
	s := NewUserStreak("user-1", TypeDailyCheckIn)
	s.RecordActivity(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), time.UTC, 0)

	res := s.RecordActivity(time.Date(2025, 3, 3, 0, 30, 0, 0, time.UTC), time.UTC, 0)

	assert.Equal(t, OutcomeReset, res.Outcome)
	assert.Equal(t, 1, s.CurrentLength)
}

func TestUserStreak_RecordActivity_UserTimezone(t *testing.T) {
	almaty, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)

	s := NewUserStreak("user-1", TypeDailyActivity)
	// 20:00 UTC 1 марта — это уже 2 марта 01:00 в Алматы (UTC+5).
	s.RecordActivity(time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC), almaty, 0)

	// 12:00 UTC 2 марта — всё ещё 2 марта в Алматы: тот же день.
	res := s.RecordActivity(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC), almaty, 0)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)

	// А вот 3 марта по Алматы продлевает серию.
	res = s.RecordActivity(time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC), almaty, 0)
	assert.Equal(t, OutcomeExtended, res.Outcome)
	assert.Equal(t, 2, s.CurrentLength)
}

func TestUserStreak_IsBrokenAt(t *testing.T) {
	grace := 6 * time.Hour
	s := NewUserStreak("user-1", TypeDailyActivity)

	// Пустая серия ломаться не может.
	assert.False(t, s.IsBrokenAt(time.Now(), time.UTC, grace))

	s.RecordActivity(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), time.UTC, grace)

	assert.False(t, s.IsBrokenAt(time.Date(2025, 3, 2, 23, 0, 0, 0, time.UTC), time.UTC, grace))
	assert.False(t, s.IsBrokenAt(time.Date(2025, 3, 3, 5, 0, 0, 0, time.UTC), time.UTC, grace))
	assert.True(t, s.IsBrokenAt(time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC), time.UTC, grace))
	assert.True(t, s.IsBrokenAt(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), time.UTC, grace))
}

func TestType_Qualifies(t *testing.T) {
	anyEvents := Type{ID: TypeDailyActivity}
	assert.True(t, anyEvents.Qualifies("listing_created"))
	assert.True(t, anyEvents.Qualifies("daily_check_in"))

	checkIn := Type{ID: TypeDailyCheckIn, EventTypes: []string{"daily_check_in"}}
	assert.True(t, checkIn.Qualifies("daily_check_in"))
	assert.False(t, checkIn.Qualifies("listing_created"))
}

func TestDefaultTypes(t *testing.T) {
	types := DefaultTypes()

	require.Len(t, types, 2)
	assert.Equal(t, TypeDailyActivity, types[0].ID)
	assert.Equal(t, 6*time.Hour, types[0].Grace())
	assert.Equal(t, TypeDailyCheckIn, types[1].ID)
	assert.Equal(t, time.Duration(0), types[1].Grace())
}
