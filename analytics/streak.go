package analytics

import (
	"sort"
	"time"

	"github.com/rjoshi/habitflow/lib/dates"
)

// StreakInfo summarizes the consecutive-day completion runs of one habit.
type StreakInfo struct {
	CurrentStreak     int    `json:"current_streak"`
	LongestStreak     int    `json:"longest_streak"`
	LastCompletedDate string `json:"last_completed_date,omitempty"`
}

// ComputeStreak derives the current and longest streak for a single habit
// from the set of day keys on which it was marked completed.
//
// The input may be unordered and may contain duplicates; both are handled
// here because storage order is not trusted and a duplicate day must never
// inflate a run. The reference day is passed in by the caller instead of
// being read from the wall clock so the computation stays deterministic.
//
// The current streak stays alive through a one-day grace period: it is
// non-zero only if the most recent completion is on the reference day or the
// day before, so a streak is not reported broken before the user's day has
// ended.
func ComputeStreak(completedDates []string, today time.Time) StreakInfo {
	if len(completedDates) == 0 {
		return StreakInfo{}
	}

	// Deduplicate, then sort; lexicographic order on canonical keys is
	// chronological order.
	uniq := make(map[string]struct{}, len(completedDates))
	for _, d := range completedDates {
		uniq[d] = struct{}{}
	}
	days := make([]string, 0, len(uniq))
	for d := range uniq {
		days = append(days, d)
	}
	sort.Strings(days)

	parsed := make([]time.Time, len(days))
	for i, d := range days {
		t, err := dates.Parse(d)
		if err != nil {
			// Malformed keys cannot come from the canonical write path;
			// treat the whole set as empty rather than guess.
			return StreakInfo{}
		}
		parsed[i] = t
	}

	info := StreakInfo{LongestStreak: 1, LastCompletedDate: days[len(days)-1]}

	run := 1
	for i := 1; i < len(parsed); i++ {
		if dates.DaysBetween(parsed[i-1], parsed[i]) == 1 {
			run++
			if run > info.LongestStreak {
				info.LongestStreak = run
			}
		} else {
			run = 1
		}
	}

	latest := parsed[len(parsed)-1]
	gap := dates.DaysBetween(latest, dates.Truncate(today))
	if gap != 0 && gap != 1 {
		// Most recent completion is older than yesterday: the current
		// streak is broken even though the longest stands.
		return info
	}

	info.CurrentStreak = 1
	for i := len(parsed) - 2; i >= 0; i-- {
		if dates.DaysBetween(parsed[i], parsed[i+1]) != 1 {
			break
		}
		info.CurrentStreak++
	}
	return info
}
