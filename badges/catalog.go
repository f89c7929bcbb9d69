package badges

// Category groups badges for display purposes.
type Category string

const (
	CategoryStreak     Category = "streak"
	CategoryCompletion Category = "completion"
	CategoryMilestone  Category = "milestone"
	CategorySpecial    Category = "special"
)

// CriteriaType selects which aggregate a badge's requirement is compared
// against during an evaluation pass.
type CriteriaType string

const (
	CriteriaLongestStreak   CriteriaType = "longest_streak"
	CriteriaHabitCount      CriteriaType = "habit_count"
	CriteriaCompletionCount CriteriaType = "completion_count"
	CriteriaPerfectWeek     CriteriaType = "perfect_week"
	// CriteriaManual badges are granted through an explicit call
	// (Engine.AwardSpecial), never by the threshold scan.
	CriteriaManual CriteriaType = "manual"
)

// BadgeDefinition is one entry of the static badge catalog. The catalog is
// code, versioned with the binary; changing a threshold is a code change and
// existing awards are never revoked when a threshold later increases.
type BadgeDefinition struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    Category     `json:"category"`
	Criteria    CriteriaType `json:"criteria"`
	Requirement int          `json:"requirement"`
}

// catalog is the ordered, fixed badge catalog. Evaluation order does not
// affect correctness (rules are independent) but the order is kept stable
// so responses and award sequences are deterministic.
var catalog = []BadgeDefinition{
	{ID: "streak_7", Title: "Week Warrior", Description: "Kept a habit going for 7 days straight", Category: CategoryStreak, Criteria: CriteriaLongestStreak, Requirement: 7},
	{ID: "streak_30", Title: "Monthly Master", Description: "Kept a habit going for 30 days straight", Category: CategoryStreak, Criteria: CriteriaLongestStreak, Requirement: 30},
	{ID: "streak_100", Title: "Century Club", Description: "Kept a habit going for 100 days straight", Category: CategoryStreak, Criteria: CriteriaLongestStreak, Requirement: 100},
	{ID: "habits_1", Title: "First Step", Description: "Created your first habit", Category: CategoryMilestone, Criteria: CriteriaHabitCount, Requirement: 1},
	{ID: "habits_5", Title: "Habit Builder", Description: "Tracking 5 habits", Category: CategoryMilestone, Criteria: CriteriaHabitCount, Requirement: 5},
	{ID: "habits_10", Title: "Habit Collector", Description: "Tracking 10 habits", Category: CategoryMilestone, Criteria: CriteriaHabitCount, Requirement: 10},
	{ID: "completions_50", Title: "Half Century", Description: "Completed habits 50 times", Category: CategoryMilestone, Criteria: CriteriaCompletionCount, Requirement: 50},
	{ID: "completions_100", Title: "Centurion", Description: "Completed habits 100 times", Category: CategoryMilestone, Criteria: CriteriaCompletionCount, Requirement: 100},
	{ID: "completions_500", Title: "Relentless", Description: "Completed habits 500 times", Category: CategoryMilestone, Criteria: CriteriaCompletionCount, Requirement: 500},
	{ID: "completions_1000", Title: "Thousand Strong", Description: "Completed habits 1000 times", Category: CategoryMilestone, Criteria: CriteriaCompletionCount, Requirement: 1000},
	{ID: "perfect_week", Title: "Perfect Week", Description: "Completed every active habit every day for a week", Category: CategoryCompletion, Criteria: CriteriaPerfectWeek, Requirement: 7},
	{ID: "early_bird", Title: "Early Bird", Description: "Joined during the early days", Category: CategorySpecial, Criteria: CriteriaManual},
}

// Catalog returns the ordered badge catalog. The returned slice is a copy;
// the catalog itself is immutable at runtime.
func Catalog() []BadgeDefinition {
	out := make([]BadgeDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the definition for a badge id, if it exists.
func Lookup(id string) (BadgeDefinition, bool) {
	for _, def := range catalog {
		if def.ID == id {
			return def, true
		}
	}
	return BadgeDefinition{}, false
}
