package analytics

import (
	"sort"
	"strconv"

	"github.com/rjoshi/habitflow/models"
)

// ExportHeader is the column header row for completion-record exports.
var ExportHeader = []string{"date", "habit", "category", "completed", "value", "notes"}

// ExportRows projects completion records into flat CSV rows sorted ascending
// by date. This is a direct, undecorated projection for the export
// subsystem, not an aggregate; rows for unknown habits (e.g. deleted with an
// account merge) are skipped.
func ExportRows(habits []models.Habit, records []models.CompletionRecord) [][]string {
	titles := make(map[string]models.Habit, len(habits))
	for _, h := range habits {
		titles[h.ID.Hex()] = h
	}

	sorted := make([]models.CompletionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		habit, ok := titles[r.HabitID.Hex()]
		if !ok {
			continue
		}
		completed := "no"
		if r.Completed {
			completed = "yes"
		}
		value := ""
		if r.Value != 0 {
			value = strconv.FormatFloat(r.Value, 'f', -1, 64)
		}
		rows = append(rows, []string{
			r.Date,
			habit.Title,
			string(habit.GoalType),
			completed,
			value,
			r.Note,
		})
	}
	return rows
}
