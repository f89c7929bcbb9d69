package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rjoshi/habitflow/models"
)

// StorageInterface defines the set of methods the record store needs to
// implement. It is the only place the analytics and badge layers touch
// persistence; timeouts and retries for the underlying I/O live behind it.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error

	// Adds a new user to the storage backend.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// Finds a user in the storage backend using a filter.
	FindUser(ctx context.Context, filter interface{}) (*models.User, error)

	// Adds a new habit to the storage backend.
	AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)
	// Finds habits in the storage backend using a filter.
	FindHabits(ctx context.Context, filter interface{}) ([]models.Habit, error)
	// Soft-deactivates a habit so historical aggregates survive.
	DeactivateHabit(ctx context.Context, habitID, userID primitive.ObjectID) error
	// Counts a user's habits, optionally only the active ones.
	CountHabits(ctx context.Context, userID primitive.ObjectID, activeOnly bool) (int64, error)

	// Creates or replaces the completion record for (habit, user, date).
	// The unique index on that triple is the de-duplication authority.
	UpsertCompletionRecord(ctx context.Context, record *models.CompletionRecord) (*models.CompletionRecord, error)
	// Lists a user's completion records whose date falls in [start, end].
	ListCompletionRecords(ctx context.Context, userID primitive.ObjectID, start, end string) ([]models.CompletionRecord, error)
	// Lists the day keys on which a habit was marked completed.
	ListCompletedDates(ctx context.Context, habitID, userID primitive.ObjectID) ([]string, error)
	// Counts a user's lifetime completed records.
	CountCompletedRecords(ctx context.Context, userID primitive.ObjectID) (int64, error)

	// Returns the set of badge ids already awarded to a user.
	ListAwardedBadgeIDs(ctx context.Context, userID primitive.ObjectID) (map[string]bool, error)
	// Lists a user's badge awards.
	ListBadgeAwards(ctx context.Context, userID primitive.ObjectID) ([]models.BadgeAward, error)
	// Inserts a badge award unless one already exists for (user, badge).
	// Returns false with a nil error when the award was already present;
	// a duplicate attempt is expected state, not a failure.
	AwardBadgeIfAbsent(ctx context.Context, award *models.BadgeAward) (bool, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	store := NewMongoStorage()
	err := store.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
