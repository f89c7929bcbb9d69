package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse(Layout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFormatParseRoundTrip(t *testing.T) {
	d, err := Parse("2024-03-09")
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-09", Format(d))

	_, err = Parse("03/09/2024")
	assert.Error(t, err, "Should reject a non-canonical key")
}

func TestCanonicalKeysSortChronologically(t *testing.T) {
	// The whole analytics layer leans on this property.
	assert.True(t, "2023-12-31" < "2024-01-01")
	assert.True(t, "2024-01-09" < "2024-01-10")
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, "2024-01-08", Format(AddDays(day("2024-01-01"), 7)))
	assert.Equal(t, "2023-12-31", Format(AddDays(day("2024-01-01"), -1)))
	// Month and year boundaries roll over.
	assert.Equal(t, "2024-03-01", Format(AddDays(day("2024-02-29"), 1)))
}

func TestStartOfWeekIsSunday(t *testing.T) {
	// 2024-01-07 is a Sunday.
	assert.Equal(t, "2024-01-07", Format(StartOfWeek(day("2024-01-07"))))
	assert.Equal(t, "2024-01-07", Format(StartOfWeek(day("2024-01-08"))))
	assert.Equal(t, "2024-01-07", Format(StartOfWeek(day("2024-01-13"))))
	assert.Equal(t, "2024-01-14", Format(StartOfWeek(day("2024-01-14"))))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(day("2024-01-01"), day("2024-01-01")))
	assert.Equal(t, 1, DaysBetween(day("2024-01-01"), day("2024-01-02")))
	assert.Equal(t, -1, DaysBetween(day("2024-01-02"), day("2024-01-01")))
	assert.Equal(t, 31, DaysBetween(day("2024-01-01"), day("2024-02-01")))
}

func TestInclusiveDays(t *testing.T) {
	assert.Equal(t, 1, InclusiveDays(day("2024-01-01"), day("2024-01-01")))
	assert.Equal(t, 7, InclusiveDays(day("2024-01-01"), day("2024-01-07")))
	assert.Equal(t, 0, InclusiveDays(day("2024-01-07"), day("2024-01-01")), "An inverted range has no days")
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	night := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	assert.True(t, SameDay(morning, night))
	assert.False(t, SameDay(morning, night.Add(time.Minute)))
}

func TestTruncateDropsTimeOfDay(t *testing.T) {
	noon := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Truncate(noon))
}
