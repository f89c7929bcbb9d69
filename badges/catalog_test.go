package badges

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogReturnsCopy(t *testing.T) {
	defs := Catalog()
	assert.NotEmpty(t, defs)

	defs[0].Title = "scribbled over"
	fresh := Catalog()
	assert.NotEqual(t, "scribbled over", fresh[0].Title)
}

func TestCatalogIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range Catalog() {
		assert.False(t, seen[def.ID], "duplicate badge id %s", def.ID)
		seen[def.ID] = true
	}
}

func TestLookup(t *testing.T) {
	def, ok := Lookup("streak_7")
	assert.True(t, ok)
	assert.Equal(t, CriteriaLongestStreak, def.Criteria)
	assert.Equal(t, 7, def.Requirement)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestThresholdsAscendWithinCriteria(t *testing.T) {
	last := make(map[CriteriaType]int)
	for _, def := range Catalog() {
		if def.Criteria == CriteriaManual || def.Criteria == CriteriaPerfectWeek {
			continue
		}
		assert.Greater(t, def.Requirement, last[def.Criteria])
		last[def.Criteria] = def.Requirement
	}
}
