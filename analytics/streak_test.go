package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rjoshi/habitflow/lib/dates"
)

func day(s string) time.Time {
	t, err := dates.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeStreakEmpty(t *testing.T) {
	info := ComputeStreak(nil, day("2024-01-07"))
	assert.Equal(t, 0, info.CurrentStreak)
	assert.Equal(t, 0, info.LongestStreak)
	assert.Equal(t, "", info.LastCompletedDate)
}

func TestComputeStreakSingleDay(t *testing.T) {
	// A single completed day is a streak of length 1.
	info := ComputeStreak([]string{"2024-01-07"}, day("2024-01-07"))
	assert.Equal(t, 1, info.CurrentStreak)
	assert.Equal(t, 1, info.LongestStreak)

	// The same day seen from far in the future only counts historically.
	info = ComputeStreak([]string{"2024-01-07"}, day("2024-02-01"))
	assert.Equal(t, 0, info.CurrentStreak)
	assert.Equal(t, 1, info.LongestStreak)
}

func TestComputeStreakBrokenRun(t *testing.T) {
	// Completed Jan 1-5, missed the 6th, completed the 7th.
	completed := []string{
		"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05",
		"2024-01-07",
	}
	info := ComputeStreak(completed, day("2024-01-07"))
	assert.Equal(t, 1, info.CurrentStreak)
	assert.Equal(t, 5, info.LongestStreak)
	assert.Equal(t, "2024-01-07", info.LastCompletedDate)
}

func TestComputeStreakGracePeriod(t *testing.T) {
	completed := []string{"2024-01-04", "2024-01-05", "2024-01-06"}

	// Most recent completion was yesterday: the streak is still alive.
	info := ComputeStreak(completed, day("2024-01-07"))
	assert.Equal(t, 3, info.CurrentStreak)

	// Two days ago: broken, but the longest streak stands.
	info = ComputeStreak(completed, day("2024-01-08"))
	assert.Equal(t, 0, info.CurrentStreak)
	assert.Equal(t, 3, info.LongestStreak)
}

func TestComputeStreakUnorderedInput(t *testing.T) {
	// Storage order is not trusted; the sort is mandatory.
	shuffled := []string{"2024-01-03", "2024-01-01", "2024-01-04", "2024-01-02"}
	info := ComputeStreak(shuffled, day("2024-01-04"))
	assert.Equal(t, 4, info.CurrentStreak)
	assert.Equal(t, 4, info.LongestStreak)
}

func TestComputeStreakDeduplicates(t *testing.T) {
	completed := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	withDupes := append([]string{"2024-01-02", "2024-01-02"}, completed...)

	clean := ComputeStreak(completed, day("2024-01-03"))
	dirty := ComputeStreak(withDupes, day("2024-01-03"))
	assert.Equal(t, clean, dirty, "Duplicate dates must not inflate a run")
}

func TestComputeStreakConsecutiveEndingToday(t *testing.T) {
	// n gap-free days ending today: current == longest == n.
	today := day("2024-03-10")
	for n := 1; n <= 10; n++ {
		var completed []string
		for i := 0; i < n; i++ {
			completed = append(completed, dates.Format(dates.AddDays(today, -i)))
		}
		info := ComputeStreak(completed, today)
		assert.Equal(t, n, info.CurrentStreak)
		assert.Equal(t, n, info.LongestStreak)
	}
}

func TestComputeStreakLongestNeverBelowCurrent(t *testing.T) {
	cases := [][]string{
		{"2024-01-01"},
		{"2024-01-05", "2024-01-06", "2024-01-07"},
		{"2024-01-01", "2024-01-03", "2024-01-06", "2024-01-07"},
		{"2023-12-30", "2023-12-31", "2024-01-01", "2024-01-06", "2024-01-07"},
	}
	for _, completed := range cases {
		info := ComputeStreak(completed, day("2024-01-07"))
		assert.GreaterOrEqual(t, info.LongestStreak, info.CurrentStreak)
	}
}

func TestComputeStreakEarlierLongerRun(t *testing.T) {
	// A long historical run must survive a shorter live run.
	completed := []string{
		"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04",
		"2024-01-10", "2024-01-11",
	}
	info := ComputeStreak(completed, day("2024-01-11"))
	assert.Equal(t, 2, info.CurrentStreak)
	assert.Equal(t, 4, info.LongestStreak)
}
