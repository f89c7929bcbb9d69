package badges

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rjoshi/habitflow/lib/dates"
	"github.com/rjoshi/habitflow/models"
	"github.com/rjoshi/habitflow/storage"
)

// Engine evaluates the badge catalog against a user's aggregates and
// performs idempotent awarding through the record store.
type Engine struct {
	store storage.StorageInterface
}

// NewEngine creates a new Engine backed by the given record store.
func NewEngine(store storage.StorageInterface) *Engine {
	return &Engine{store: store}
}

// facts holds the per-category aggregates one evaluation pass compares
// requirements against. Each field has a matching ok flag: a category whose
// store read failed is skipped for this pass instead of aborting the others.
type facts struct {
	habitCount      int64
	habitCountOK    bool
	completionCount int64
	completionsOK   bool
	perfectWeek     bool
	activeHabits    int64
	perfectWeekOK   bool
	weekStart       string
}

// Evaluate runs the threshold rules of the catalog for one user and returns
// the definitions of the badges that were newly awarded, in catalog order.
// An empty result is the common case.
//
// bestLongestStreak is the user's best longest streak across habits, already
// reduced by the analytics layer; the engine only compares the scalar. The
// reference day is threaded in for the trailing-week window so passes are
// deterministic and testable.
//
// The awarded set is read fresh at the start of every pass and each award
// still goes through the store's AwardBadgeIfAbsent, so two passes racing on
// the same user cannot double-award: the loser's duplicate insert collapses
// into a no-op. Running Evaluate twice on identical state never changes the
// awarded set on the second run.
func (e *Engine) Evaluate(ctx context.Context, userID primitive.ObjectID, bestLongestStreak int, today time.Time) ([]BadgeDefinition, error) {
	awarded, err := e.store.ListAwardedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := e.gatherFacts(ctx, userID, today)

	var earned []BadgeDefinition
	for _, def := range catalog {
		satisfied, ok := ruleSatisfied(def, bestLongestStreak, f)
		if !ok || !satisfied || awarded[def.ID] {
			continue
		}

		award := &models.BadgeAward{
			UserID:    userID,
			BadgeID:   def.ID,
			AwardedAt: time.Now(),
			Metadata:  awardMetadata(def, bestLongestStreak, f),
		}
		created, err := e.store.AwardBadgeIfAbsent(ctx, award)
		if err != nil {
			// One rule failing to persist must not sink the rest of
			// the pass.
			log.Printf("badge %s: award failed for user %s: %v", def.ID, userID.Hex(), err)
			continue
		}
		if created {
			earned = append(earned, def)
		}
	}

	return earned, nil
}

// AwardSpecial grants a special-category badge through a direct call, e.g.
// the early-bird badge at account creation. It is as idempotent as the
// threshold path: repeating the call never creates a second award.
func (e *Engine) AwardSpecial(ctx context.Context, userID primitive.ObjectID, badgeID string) (bool, error) {
	def, ok := Lookup(badgeID)
	if !ok {
		return false, errors.New("unknown badge id " + badgeID)
	}
	if def.Criteria != CriteriaManual {
		return false, errors.New("badge " + badgeID + " is not manually awardable")
	}

	award := &models.BadgeAward{
		UserID:    userID,
		BadgeID:   def.ID,
		AwardedAt: time.Now(),
	}
	return e.store.AwardBadgeIfAbsent(ctx, award)
}

// gatherFacts fetches the aggregates the threshold rules need. Failures are
// logged and leave the matching ok flag unset; they never abort the pass.
func (e *Engine) gatherFacts(ctx context.Context, userID primitive.ObjectID, today time.Time) facts {
	var f facts

	habitCount, err := e.store.CountHabits(ctx, userID, false)
	if err != nil {
		log.Printf("badges: habit count unavailable for user %s: %v", userID.Hex(), err)
	} else {
		f.habitCount = habitCount
		f.habitCountOK = true
	}

	completions, err := e.store.CountCompletedRecords(ctx, userID)
	if err != nil {
		log.Printf("badges: completion count unavailable for user %s: %v", userID.Hex(), err)
	} else {
		f.completionCount = completions
		f.completionsOK = true
	}

	e.gatherPerfectWeek(ctx, userID, today, &f)
	return f
}

// gatherPerfectWeek checks whether the trailing 7 days ending today were a
// perfect week: every active habit completed on every one of the 7 days,
// with no partial credit.
//
// The denominator samples the active habit count at evaluation time, not the
// count that was active throughout the window; deactivating a habit mid-week
// lowers the bar retroactively. That matches the product's historical
// behavior and is kept deliberate here rather than silently changed.
func (e *Engine) gatherPerfectWeek(ctx context.Context, userID primitive.ObjectID, today time.Time, f *facts) {
	activeHabits, err := e.store.CountHabits(ctx, userID, true)
	if err != nil {
		log.Printf("badges: active habit count unavailable for user %s: %v", userID.Hex(), err)
		return
	}

	windowStart := dates.AddDays(today, -6)
	records, err := e.store.ListCompletionRecords(ctx, userID, dates.Format(windowStart), dates.Format(today))
	if err != nil {
		log.Printf("badges: trailing week records unavailable for user %s: %v", userID.Hex(), err)
		return
	}

	completed := 0
	for _, r := range records {
		if r.Completed {
			completed++
		}
	}

	f.activeHabits = activeHabits
	f.perfectWeek = activeHabits > 0 && int64(completed) == activeHabits*7
	f.perfectWeekOK = true
	f.weekStart = dates.Format(windowStart)
}

// ruleSatisfied reports whether a catalog rule's requirement is met. The
// second return is false when the aggregate the rule depends on could not be
// gathered this pass.
func ruleSatisfied(def BadgeDefinition, bestLongestStreak int, f facts) (satisfied, ok bool) {
	switch def.Criteria {
	case CriteriaLongestStreak:
		return bestLongestStreak >= def.Requirement, true
	case CriteriaHabitCount:
		return f.habitCount >= int64(def.Requirement), f.habitCountOK
	case CriteriaCompletionCount:
		return f.completionCount >= int64(def.Requirement), f.completionsOK
	case CriteriaPerfectWeek:
		return f.perfectWeek, f.perfectWeekOK
	default:
		// Manual badges are never granted by the scan.
		return false, true
	}
}

// awardMetadata snapshots the aggregate that triggered the award.
func awardMetadata(def BadgeDefinition, bestLongestStreak int, f facts) models.AwardMetadata {
	switch def.Criteria {
	case CriteriaLongestStreak:
		return models.AwardMetadata{StreakLength: bestLongestStreak}
	case CriteriaHabitCount:
		return models.AwardMetadata{HabitCount: int(f.habitCount)}
	case CriteriaCompletionCount:
		return models.AwardMetadata{CompletionCount: int(f.completionCount)}
	case CriteriaPerfectWeek:
		return models.AwardMetadata{WeekStart: f.weekStart, HabitCount: int(f.activeHabits)}
	default:
		return models.AwardMetadata{}
	}
}
