package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rjoshi/habitflow/lib/dates"
	"github.com/rjoshi/habitflow/models"
	"github.com/rjoshi/habitflow/storage"
	"github.com/rjoshi/habitflow/storage/cache"
)

// insightsCacheTTL bounds how stale a cached summary can get. Summaries are
// cheap to recompute, so the window is kept short.
const insightsCacheTTL = time.Minute

// DefaultTopHabits is the ranking truncation used when the caller does not
// ask for a specific limit.
const DefaultTopHabits = 5

// HabitStreak pairs a habit with its streak info for the streak listing.
type HabitStreak struct {
	HabitID string `json:"habit_id"`
	Title   string `json:"title"`
	StreakInfo
}

// Service assembles insight summaries from the record store, delegating the
// arithmetic to the pure functions in this package. All I/O goes through the
// store and cache interfaces; a failed read aborts only the computation that
// needed it.
type Service struct {
	store storage.StorageInterface
	cache cache.CacheInterface
}

// NewService creates a new analytics Service. The cache may be nil, in which
// case every summary is recomputed on demand.
func NewService(store storage.StorageInterface, c cache.CacheInterface) *Service {
	return &Service{store: store, cache: c}
}

// HabitStreaks computes StreakInfo for each of the given habits from their
// full completion histories.
func (s *Service) HabitStreaks(ctx context.Context, userID primitive.ObjectID, habits []models.Habit, today time.Time) (map[string]StreakInfo, error) {
	streaks := make(map[string]StreakInfo, len(habits))
	for _, h := range habits {
		days, err := s.store.ListCompletedDates(ctx, h.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("listing completed dates for habit %s: %w", h.ID.Hex(), err)
		}
		streaks[h.ID.Hex()] = ComputeStreak(days, today)
	}
	return streaks, nil
}

// StreakList returns the per-habit streaks of a user's active habits in
// stable habit order.
func (s *Service) StreakList(ctx context.Context, userID primitive.ObjectID, today time.Time) ([]HabitStreak, error) {
	habits, err := s.store.FindHabits(ctx, bson.M{"user_id": userID, "active": true})
	if err != nil {
		return nil, err
	}
	streaks, err := s.HabitStreaks(ctx, userID, habits, today)
	if err != nil {
		return nil, err
	}

	list := make([]HabitStreak, 0, len(habits))
	for _, h := range habits {
		list = append(list, HabitStreak{
			HabitID:    h.ID.Hex(),
			Title:      h.Title,
			StreakInfo: streaks[h.ID.Hex()],
		})
	}
	return list, nil
}

// BestLongestStreak reduces a streak map to the best longest streak across
// habits, the scalar the achievement engine's streak rules compare against.
func BestLongestStreak(streaks map[string]StreakInfo) int {
	best := 0
	for _, s := range streaks {
		if s.LongestStreak > best {
			best = s.LongestStreak
		}
	}
	return best
}

// BuildInsights computes the full InsightsSummary for a user over the closed
// range [start, end], serving a cached copy when one is fresh enough.
//
// Cache failures only cost the shortcut: a failed Get falls through to
// recomputation and a failed Set is logged and dropped. Store failures are
// propagated unchanged; no partial summary is fabricated.
func (s *Service) BuildInsights(ctx context.Context, userID primitive.ObjectID, start, end, today time.Time) (*InsightsSummary, error) {
	key := fmt.Sprintf("insights:%s:%s:%s", userID.Hex(), dates.Format(start), dates.Format(end))

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			summary := &InsightsSummary{}
			if err := json.Unmarshal(raw, summary); err == nil {
				return summary, nil
			}
			// A corrupt entry is recomputed and overwritten below.
		} else if err != cache.ErrCacheMiss {
			log.Printf("insights cache read failed: %v", err)
		}
	}

	habits, err := s.store.FindHabits(ctx, bson.M{"user_id": userID, "active": true})
	if err != nil {
		return nil, fmt.Errorf("listing active habits: %w", err)
	}

	records, err := s.store.ListCompletionRecords(ctx, userID, dates.Format(start), dates.Format(end))
	if err != nil {
		return nil, fmt.Errorf("listing completion records: %w", err)
	}

	streaks, err := s.HabitStreaks(ctx, userID, habits, today)
	if err != nil {
		return nil, err
	}

	rate := CompletionRate(len(habits), records, start, end)
	summary := &InsightsSummary{
		Period:                Period{Start: dates.Format(start), End: dates.Format(end)},
		OverallCompletionRate: rate.Rate,
		TotalCompleted:        rate.Completed,
		TotalPossible:         rate.Possible,
		Weekly:                WeeklyBreakdown(len(habits), records, start, end),
		TopHabits:             RankHabits(habits, records, start, end, streaks, DefaultTopHabits),
		HabitSummaries:        SummarizeHabits(habits, records),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, insightsCacheTTL); err != nil {
			log.Printf("insights cache write failed: %v", err)
		}
	}

	return summary, nil
}
