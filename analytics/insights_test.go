package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rjoshi/habitflow/lib/dates"
	"github.com/rjoshi/habitflow/models"
)

// makeHabit builds an active binary habit for tests.
func makeHabit(title string) models.Habit {
	return models.Habit{
		ID:       primitive.NewObjectID(),
		UserID:   primitive.NewObjectID(),
		Title:    title,
		GoalType: models.GoalBinary,
		Active:   true,
	}
}

// completedOn builds one completed record per day key for the habit.
func completedOn(habit models.Habit, days ...string) []models.CompletionRecord {
	records := make([]models.CompletionRecord, 0, len(days))
	for _, d := range days {
		records = append(records, models.CompletionRecord{
			HabitID:   habit.ID,
			UserID:    habit.UserID,
			Date:      d,
			Completed: true,
		})
	}
	return records
}

func TestCompletionRateZeroHabits(t *testing.T) {
	// An account with zero active habits yields a defined zero rate,
	// not a division fault.
	rate := CompletionRate(0, nil, day("2024-01-01"), day("2024-01-07"))
	assert.Equal(t, 0, rate.Completed)
	assert.Equal(t, 0, rate.Possible)
	assert.Equal(t, 0.0, rate.Rate)
}

func TestCompletionRatePerfectWeek(t *testing.T) {
	// 3 active habits over a 7-day range with 21 completed records.
	habits := []models.Habit{makeHabit("a"), makeHabit("b"), makeHabit("c")}
	var records []models.CompletionRecord
	for _, h := range habits {
		for i := 0; i < 7; i++ {
			records = append(records, completedOn(h, dates.Format(dates.AddDays(day("2024-01-01"), i)))...)
		}
	}

	rate := CompletionRate(3, records, day("2024-01-01"), day("2024-01-07"))
	assert.Equal(t, 21, rate.Completed)
	assert.Equal(t, 21, rate.Possible)
	assert.Equal(t, 1.0, rate.Rate)
}

func TestCompletionRateIgnoresIncompleteRecords(t *testing.T) {
	h := makeHabit("run")
	records := completedOn(h, "2024-01-01", "2024-01-02")
	records = append(records, models.CompletionRecord{
		HabitID: h.ID, UserID: h.UserID, Date: "2024-01-03", Completed: false,
	})

	rate := CompletionRate(1, records, day("2024-01-01"), day("2024-01-04"))
	assert.Equal(t, 2, rate.Completed)
	assert.Equal(t, 4, rate.Possible)
	assert.InDelta(t, 0.5, rate.Rate, 1e-9)
	assert.GreaterOrEqual(t, rate.Rate, 0.0)
	assert.LessOrEqual(t, rate.Rate, 1.0)
}

func TestWeeklyBreakdownPreSeedsEmptyWeeks(t *testing.T) {
	h := makeHabit("read")
	// Activity only in the first week of a three-week range.
	records := completedOn(h, "2024-01-01", "2024-01-02")

	// 2024-01-01 is a Monday; its week starts Sunday 2023-12-31.
	weeks := WeeklyBreakdown(1, records, day("2024-01-01"), day("2024-01-15"))

	assert.Len(t, weeks, 3, "Every week-start spanning the range appears")
	assert.Equal(t, "2023-12-31", weeks[0].WeekStart)
	assert.Equal(t, "2024-01-07", weeks[1].WeekStart)
	assert.Equal(t, "2024-01-14", weeks[2].WeekStart)

	assert.Equal(t, 2, weeks[0].Completed)
	assert.Equal(t, 0, weeks[1].Completed, "A week with zero records still appears")
	assert.Equal(t, 0, weeks[2].Completed)

	// The denominator is fixed at activeHabits*7 for every bucket,
	// including trailing partial weeks.
	for _, w := range weeks {
		assert.Equal(t, 7, w.Possible)
	}
}

func TestWeeklyBreakdownAssignsBucketsByWeekStart(t *testing.T) {
	h := makeHabit("stretch")
	// Saturday and the following Sunday land in different buckets.
	records := completedOn(h, "2024-01-06", "2024-01-07")

	weeks := WeeklyBreakdown(1, records, day("2024-01-01"), day("2024-01-08"))
	assert.Len(t, weeks, 2)
	assert.Equal(t, 1, weeks[0].Completed)
	assert.Equal(t, 1, weeks[1].Completed)
}

func TestWeeklyBreakdownZeroHabits(t *testing.T) {
	weeks := WeeklyBreakdown(0, nil, day("2024-01-01"), day("2024-01-07"))
	for _, w := range weeks {
		assert.Equal(t, 0, w.Possible)
		assert.Equal(t, 0.0, w.CompletionRate)
	}
}

func TestSummarizeHabits(t *testing.T) {
	running := makeHabit("run")
	reading := makeHabit("read")

	records := []models.CompletionRecord{
		{HabitID: running.ID, Date: "2024-01-01", Completed: true, Value: 5},
		{HabitID: running.ID, Date: "2024-01-02", Completed: true, Value: 3},
		{HabitID: running.ID, Date: "2024-01-03", Completed: false, Value: 99},
	}

	summaries := SummarizeHabits([]models.Habit{running, reading}, records)
	assert.Len(t, summaries, 2)

	assert.Equal(t, 2, summaries[0].CountLogged)
	assert.Equal(t, 8.0, summaries[0].SumValue)
	assert.Equal(t, 4.0, summaries[0].AvgPerActiveDay)

	// A habit with nothing logged keeps zero values, no division fault.
	assert.Equal(t, "read", summaries[1].Title)
	assert.Equal(t, 0, summaries[1].CountLogged)
	assert.Equal(t, 0.0, summaries[1].AvgPerActiveDay)
}

func TestRankHabitsOrdersByRate(t *testing.T) {
	a, b, c := makeHabit("a"), makeHabit("b"), makeHabit("c")

	var records []models.CompletionRecord
	records = append(records, completedOn(a, "2024-01-01")...)
	records = append(records, completedOn(b, "2024-01-01", "2024-01-02", "2024-01-03")...)
	records = append(records, completedOn(c, "2024-01-01", "2024-01-02")...)

	streaks := map[string]StreakInfo{
		b.ID.Hex(): {CurrentStreak: 3, LongestStreak: 3},
	}

	ranked := RankHabits([]models.Habit{a, b, c}, records, day("2024-01-01"), day("2024-01-07"), streaks, 0)
	assert.Equal(t, []string{"b", "c", "a"}, []string{ranked[0].Title, ranked[1].Title, ranked[2].Title})
	assert.Equal(t, 3, ranked[0].CurrentStreak)
	assert.Equal(t, 3, ranked[0].LongestStreak)
	assert.InDelta(t, 3.0/7.0, ranked[0].CompletionRate, 1e-9)
}

func TestRankHabitsStableOnTies(t *testing.T) {
	// No secondary sort key is defined, so equal rates must preserve the
	// original habit order to stay deterministic.
	a, b, c := makeHabit("first"), makeHabit("second"), makeHabit("third")
	var records []models.CompletionRecord
	for _, h := range []models.Habit{a, b, c} {
		records = append(records, completedOn(h, "2024-01-01", "2024-01-02")...)
	}

	ranked := RankHabits([]models.Habit{a, b, c}, records, day("2024-01-01"), day("2024-01-07"), nil, 0)
	assert.Equal(t, "first", ranked[0].Title)
	assert.Equal(t, "second", ranked[1].Title)
	assert.Equal(t, "third", ranked[2].Title)
}

func TestRankHabitsTruncatesToLimit(t *testing.T) {
	habits := []models.Habit{makeHabit("a"), makeHabit("b"), makeHabit("c"), makeHabit("d")}
	ranked := RankHabits(habits, nil, day("2024-01-01"), day("2024-01-07"), nil, 2)
	assert.Len(t, ranked, 2)
}
