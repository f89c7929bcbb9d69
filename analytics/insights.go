package analytics

import (
	"sort"
	"time"

	"github.com/rjoshi/habitflow/lib/dates"
	"github.com/rjoshi/habitflow/models"
)

// RateSummary is the overall completion rate of a user over a closed date
// range. Possible is activeHabits multiplied by the inclusive day count;
// Rate is always in [0,1] and defined as 0 when Possible is 0.
type RateSummary struct {
	Completed int     `json:"completed"`
	Possible  int     `json:"possible"`
	Rate      float64 `json:"rate"`
}

// WeeklyStats is one pre-seeded weekly bucket. Possible uses a fixed
// activeHabits*7 denominator even for a trailing partial week: a short week
// intentionally cannot reach 100%.
type WeeklyStats struct {
	WeekStart      string  `json:"week_start"`
	Completed      int     `json:"completed"`
	Possible       int     `json:"possible"`
	CompletionRate float64 `json:"completion_rate"`
}

// HabitSummary aggregates the logged values of one habit over the range.
type HabitSummary struct {
	HabitID         string  `json:"habit_id"`
	Title           string  `json:"title"`
	CountLogged     int     `json:"count_logged"`
	SumValue        float64 `json:"sum_value"`
	AvgPerActiveDay float64 `json:"avg_per_active_day"`
}

// RankedHabit is a habit ordered by completion rate with its streak data
// attached.
type RankedHabit struct {
	HabitID        string  `json:"habit_id"`
	Title          string  `json:"title"`
	CompletedCount int     `json:"completed_count"`
	CompletionRate float64 `json:"completion_rate"`
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
}

// Period is the closed date range an InsightsSummary was computed over.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// InsightsSummary bundles every derived aggregate for one user and period.
// It is a plain serializable structure with no behavior.
type InsightsSummary struct {
	Period                Period         `json:"period"`
	OverallCompletionRate float64        `json:"overall_completion_rate"`
	TotalCompleted        int            `json:"total_completed"`
	TotalPossible         int            `json:"total_possible"`
	Weekly                []WeeklyStats  `json:"weekly"`
	TopHabits             []RankedHabit  `json:"top_habits"`
	HabitSummaries        []HabitSummary `json:"habit_summaries"`
}

// CompletionRate computes the overall rate for a closed [start, end] range.
// Zero active habits (or an empty range) yields a defined zero-valued
// summary, never a division fault.
func CompletionRate(activeHabits int, records []models.CompletionRecord, start, end time.Time) RateSummary {
	possible := activeHabits * dates.InclusiveDays(start, end)
	completed := 0
	for _, r := range records {
		if r.Completed {
			completed++
		}
	}
	summary := RateSummary{Completed: completed, Possible: possible}
	if possible > 0 {
		summary.Rate = float64(completed) / float64(possible)
	}
	return summary
}

// WeeklyBreakdown buckets records by the Sunday starting their week. Every
// week-start from StartOfWeek(start) through end appears, pre-seeded to
// zero, so a week with no activity still shows up in charts instead of being
// silently dropped.
func WeeklyBreakdown(activeHabits int, records []models.CompletionRecord, start, end time.Time) []WeeklyStats {
	var weeks []WeeklyStats
	index := make(map[string]int)
	possible := activeHabits * 7
	for ws := dates.StartOfWeek(start); !ws.After(dates.Truncate(end)); ws = dates.AddDays(ws, 7) {
		key := dates.Format(ws)
		index[key] = len(weeks)
		weeks = append(weeks, WeeklyStats{WeekStart: key, Possible: possible})
	}

	for _, r := range records {
		day, err := dates.Parse(r.Date)
		if err != nil {
			continue
		}
		i, ok := index[dates.Format(dates.StartOfWeek(day))]
		if !ok {
			continue
		}
		if r.Completed {
			weeks[i].Completed++
		}
	}

	for i := range weeks {
		if weeks[i].Possible > 0 {
			weeks[i].CompletionRate = float64(weeks[i].Completed) / float64(weeks[i].Possible)
		}
	}
	return weeks
}

// SummarizeHabits produces one HabitSummary per habit, in the order the
// habits were given. Only completed records contribute to the counts and
// value sums.
func SummarizeHabits(habits []models.Habit, records []models.CompletionRecord) []HabitSummary {
	summaries := make([]HabitSummary, len(habits))
	index := make(map[string]int, len(habits))
	for i, h := range habits {
		summaries[i] = HabitSummary{HabitID: h.ID.Hex(), Title: h.Title}
		index[h.ID.Hex()] = i
	}

	for _, r := range records {
		if !r.Completed {
			continue
		}
		i, ok := index[r.HabitID.Hex()]
		if !ok {
			continue
		}
		summaries[i].CountLogged++
		summaries[i].SumValue += r.Value
	}

	for i := range summaries {
		if summaries[i].CountLogged > 0 {
			summaries[i].AvgPerActiveDay = summaries[i].SumValue / float64(summaries[i].CountLogged)
		}
	}
	return summaries
}

// RankHabits orders habits descending by completion rate over the closed
// range, attaches streak data, and truncates to limit. The sort is stable:
// habits with equal rates keep their original order, which is what makes the
// ranking deterministic since no secondary key is defined.
func RankHabits(habits []models.Habit, records []models.CompletionRecord, start, end time.Time, streaks map[string]StreakInfo, limit int) []RankedHabit {
	days := dates.InclusiveDays(start, end)

	completedByHabit := make(map[string]int)
	for _, r := range records {
		if r.Completed {
			completedByHabit[r.HabitID.Hex()]++
		}
	}

	ranked := make([]RankedHabit, 0, len(habits))
	for _, h := range habits {
		id := h.ID.Hex()
		entry := RankedHabit{
			HabitID:        id,
			Title:          h.Title,
			CompletedCount: completedByHabit[id],
		}
		if days > 0 {
			entry.CompletionRate = float64(entry.CompletedCount) / float64(days)
		}
		if s, ok := streaks[id]; ok {
			entry.CurrentStreak = s.CurrentStreak
			entry.LongestStreak = s.LongestStreak
		}
		ranked = append(ranked, entry)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompletionRate > ranked[j].CompletionRate
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
