package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rjoshi/habitflow/models"
	"github.com/rjoshi/habitflow/storage/cache"
)

// stubStore backs the service tests with fixed data. Only the reads the
// service performs are implemented; the rest return zero values.
type stubStore struct {
	habits           []models.Habit
	records          []models.CompletionRecord
	completedByHabit map[string][]string

	findHabitsErr error
	listDatesErr  error
}

func (s *stubStore) Connect(dbName, uri string) error { return nil }
func (s *stubStore) Disconnect() error                { return nil }

func (s *stubStore) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	return user, nil
}

func (s *stubStore) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	return nil, nil
}

func (s *stubStore) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	return habit, nil
}

func (s *stubStore) FindHabits(ctx context.Context, filter interface{}) ([]models.Habit, error) {
	if s.findHabitsErr != nil {
		return nil, s.findHabitsErr
	}
	return s.habits, nil
}

func (s *stubStore) DeactivateHabit(ctx context.Context, habitID, userID primitive.ObjectID) error {
	return nil
}

func (s *stubStore) CountHabits(ctx context.Context, userID primitive.ObjectID, activeOnly bool) (int64, error) {
	return int64(len(s.habits)), nil
}

func (s *stubStore) UpsertCompletionRecord(ctx context.Context, record *models.CompletionRecord) (*models.CompletionRecord, error) {
	return record, nil
}

func (s *stubStore) ListCompletionRecords(ctx context.Context, userID primitive.ObjectID, start, end string) ([]models.CompletionRecord, error) {
	var out []models.CompletionRecord
	for _, r := range s.records {
		if r.Date >= start && r.Date <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) ListCompletedDates(ctx context.Context, habitID, userID primitive.ObjectID) ([]string, error) {
	if s.listDatesErr != nil {
		return nil, s.listDatesErr
	}
	return s.completedByHabit[habitID.Hex()], nil
}

func (s *stubStore) CountCompletedRecords(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return 0, nil
}

func (s *stubStore) ListAwardedBadgeIDs(ctx context.Context, userID primitive.ObjectID) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (s *stubStore) ListBadgeAwards(ctx context.Context, userID primitive.ObjectID) ([]models.BadgeAward, error) {
	return nil, nil
}

func (s *stubStore) AwardBadgeIfAbsent(ctx context.Context, award *models.BadgeAward) (bool, error) {
	return false, nil
}

// stubCache records Set calls and serves a single canned Get response.
type stubCache struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string][]byte)}
}

func (c *stubCache) Connect(url string) error { return nil }
func (c *stubCache) Disconnect() error        { return nil }

func (c *stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

func (c *stubCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return raw, nil
}

func (c *stubCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *stubCache) Clear(ctx context.Context) error {
	c.data = make(map[string][]byte)
	return nil
}

func TestHabitStreaks(t *testing.T) {
	h := makeHabit("run")
	store := &stubStore{
		habits: []models.Habit{h},
		completedByHabit: map[string][]string{
			h.ID.Hex(): {"2024-01-05", "2024-01-06", "2024-01-07"},
		},
	}
	svc := NewService(store, nil)

	streaks, err := svc.HabitStreaks(context.Background(), h.UserID, store.habits, day("2024-01-07"))
	require.NoError(t, err)
	assert.Equal(t, 3, streaks[h.ID.Hex()].CurrentStreak)
}

func TestHabitStreaksPropagatesStoreError(t *testing.T) {
	h := makeHabit("run")
	store := &stubStore{habits: []models.Habit{h}, listDatesErr: errors.New("down")}
	svc := NewService(store, nil)

	_, err := svc.HabitStreaks(context.Background(), h.UserID, store.habits, day("2024-01-07"))
	assert.Error(t, err)
}

func TestBestLongestStreak(t *testing.T) {
	streaks := map[string]StreakInfo{
		"a": {LongestStreak: 3},
		"b": {LongestStreak: 12},
		"c": {LongestStreak: 7},
	}
	assert.Equal(t, 12, BestLongestStreak(streaks))
	assert.Equal(t, 0, BestLongestStreak(nil))
}

func TestBuildInsightsComposesSummary(t *testing.T) {
	h := makeHabit("read")
	store := &stubStore{
		habits:  []models.Habit{h},
		records: completedOn(h, "2024-01-01", "2024-01-02", "2024-01-03"),
		completedByHabit: map[string][]string{
			h.ID.Hex(): {"2024-01-01", "2024-01-02", "2024-01-03"},
		},
	}
	svc := NewService(store, nil)

	summary, err := svc.BuildInsights(context.Background(), h.UserID, day("2024-01-01"), day("2024-01-07"), day("2024-01-07"))
	require.NoError(t, err)

	assert.Equal(t, Period{Start: "2024-01-01", End: "2024-01-07"}, summary.Period)
	assert.Equal(t, 3, summary.TotalCompleted)
	assert.Equal(t, 7, summary.TotalPossible)
	assert.InDelta(t, 3.0/7.0, summary.OverallCompletionRate, 1e-9)
	require.Len(t, summary.TopHabits, 1)
	assert.Equal(t, 3, summary.TopHabits[0].LongestStreak)
	assert.Len(t, summary.HabitSummaries, 1)
	assert.NotEmpty(t, summary.Weekly)
}

func TestBuildInsightsServesCachedCopy(t *testing.T) {
	h := makeHabit("read")
	store := &stubStore{habits: []models.Habit{h}}
	c := newStubCache()
	svc := NewService(store, c)
	ctx := context.Background()

	first, err := svc.BuildInsights(ctx, h.UserID, day("2024-01-01"), day("2024-01-07"), day("2024-01-07"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.sets)

	// Break the store: a cached summary must still come back.
	store.findHabitsErr = errors.New("down")
	second, err := svc.BuildInsights(ctx, h.UserID, day("2024-01-01"), day("2024-01-07"), day("2024-01-07"))
	require.NoError(t, err)
	assert.Equal(t, first.Period, second.Period)
	assert.Equal(t, 1, c.sets, "The cached path recomputes nothing")
}

func TestBuildInsightsCacheFailureFallsThrough(t *testing.T) {
	h := makeHabit("read")
	store := &stubStore{habits: []models.Habit{h}}
	c := newStubCache()
	c.getErr = errors.New("redis down")
	svc := NewService(store, c)

	summary, err := svc.BuildInsights(context.Background(), h.UserID, day("2024-01-01"), day("2024-01-07"), day("2024-01-07"))
	require.NoError(t, err)
	assert.NotNil(t, summary)
}

func TestBuildInsightsPropagatesStoreError(t *testing.T) {
	store := &stubStore{findHabitsErr: errors.New("down")}
	svc := NewService(store, nil)

	_, err := svc.BuildInsights(context.Background(), primitive.NewObjectID(), day("2024-01-01"), day("2024-01-07"), day("2024-01-07"))
	assert.Error(t, err)
}
