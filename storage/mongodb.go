package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rjoshi/habitflow/models"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the various
// collections backing the habit tracker.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI
// and database name, and sets up indexes and unique constraints.
//
// Two of the unique indexes are load-bearing for correctness, not just for
// lookups: completions (user_id, habit_id, date) makes concurrent record
// writes collapse into one row, and badge_awards (user_id, badge_id) is the
// guard that makes badge awarding idempotent under concurrent evaluation.
func (m *MongoStorage) Connect(dbName, uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	usersCollection := m.client.Database(m.dbName).Collection("users")

	// Unique email and username, same as any account system.
	for _, field := range []string{"email", "username"} {
		indexModel := mongo.IndexModel{
			Keys:    bson.M{field: 1},
			Options: options.Index().SetUnique(true),
		}
		if _, err = usersCollection.Indexes().CreateOne(ctx, indexModel); err != nil {
			return fmt.Errorf("error creating %s index: %v", field, err)
		}
	}

	habitsCollection := m.client.Database(m.dbName).Collection("habits")

	// A user can't have two habits with the same title.
	habitTitleIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "title", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err = habitsCollection.Indexes().CreateOne(ctx, habitTitleIndexModel); err != nil {
		return fmt.Errorf("error creating user_id and title index: %v", err)
	}

	completionsCollection := m.client.Database(m.dbName).Collection("completions")

	// One record per (user, habit, calendar day). Upserts replace, never
	// duplicate, even when two clients race on the same day.
	completionKeyIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "habit_id", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err = completionsCollection.Indexes().CreateOne(ctx, completionKeyIndexModel); err != nil {
		return fmt.Errorf("error creating completion key index: %v", err)
	}

	// Range scans over a user's records by day key.
	completionDateIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index(),
	}
	if _, err = completionsCollection.Indexes().CreateOne(ctx, completionDateIndexModel); err != nil {
		return fmt.Errorf("error creating completion date index: %v", err)
	}

	awardsCollection := m.client.Database(m.dbName).Collection("badge_awards")

	// At most one award per (user, badge); first writer wins.
	awardKeyIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "badge_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err = awardsCollection.Indexes().CreateOne(ctx, awardKeyIndexModel); err != nil {
		return fmt.Errorf("error creating badge award key index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

// isDuplicateKey reports whether err is a unique-index violation (Mongo
// write error code 11000).
func isDuplicateKey(err error) bool {
	var writeException mongo.WriteException
	if errors.As(err, &writeException) {
		for _, writeError := range writeException.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// AddUser adds a new user document to the 'users' collection.
// Returns the added user instance and an error if the insert operation fails.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result, err := collection.InsertOne(ctx, user)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, errors.New("a user with that username or email already exists")
		}
		return nil, err
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUser finds a user document in the 'users' collection that matches the
// given filter.
func (m *MongoStorage) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result := collection.FindOne(ctx, filter)
	user := &models.User{}
	err := result.Decode(user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddHabit adds a new habit document to the 'habits' collection.
// Returns the added habit instance and an error if the insert operation fails.
func (m *MongoStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	if habit.Title == "" || habit.UserID.IsZero() {
		return nil, errors.New("invalid habit fields")
	}
	switch habit.GoalType {
	case models.GoalBinary, models.GoalDuration, models.GoalQuantity:
	default:
		return nil, fmt.Errorf("invalid goal type %q", habit.GoalType)
	}

	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.InsertOne(ctx, habit)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("a habit titled '%s' already exists for the user", habit.Title)
		}
		return nil, err
	}
	habit.ID = result.InsertedID.(primitive.ObjectID)
	return habit, nil
}

// FindHabits finds habit documents in the 'habits' collection that match the
// given filter, in insertion order.
func (m *MongoStorage) FindHabits(ctx context.Context, filter interface{}) ([]models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	cursor, err := collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var habits []models.Habit
	for cursor.Next(ctx) {
		var habit models.Habit
		if err := cursor.Decode(&habit); err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}

	return habits, cursor.Err()
}

// DeactivateHabit clears the active flag on a habit. The document and its
// completion records are kept so historical aggregates are preserved.
func (m *MongoStorage) DeactivateHabit(ctx context.Context, habitID, userID primitive.ObjectID) error {
	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.UpdateOne(
		ctx,
		bson.M{"_id": habitID, "user_id": userID},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("habit does not exist")
	}
	return nil
}

// CountHabits returns the number of habits a user owns. With activeOnly set
// it counts only habits that have not been deactivated.
func (m *MongoStorage) CountHabits(ctx context.Context, userID primitive.ObjectID, activeOnly bool) (int64, error) {
	filter := bson.M{"user_id": userID}
	if activeOnly {
		filter["active"] = true
	}
	collection := m.client.Database(m.dbName).Collection("habits")
	return collection.CountDocuments(ctx, filter)
}

// UpsertCompletionRecord creates or replaces the completion record for the
// record's (user, habit, date) triple. Replaying the same day updates the
// existing row in place; the unique index guarantees there is never more
// than one.
func (m *MongoStorage) UpsertCompletionRecord(ctx context.Context, record *models.CompletionRecord) (*models.CompletionRecord, error) {
	if record.Date == "" || record.UserID.IsZero() || record.HabitID.IsZero() {
		return nil, errors.New("invalid completion record fields")
	}

	collection := m.client.Database(m.dbName).Collection("completions")
	filter := bson.M{
		"user_id":  record.UserID,
		"habit_id": record.HabitID,
		"date":     record.Date,
	}
	update := bson.M{
		"$set": bson.M{
			"completed": record.Completed,
			"value":     record.Value,
			"note":      record.Note,
		},
		"$setOnInsert": bson.M{
			"user_id":    record.UserID,
			"habit_id":   record.HabitID,
			"date":       record.Date,
			"created_at": time.Now(),
		},
	}
	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}

	saved := &models.CompletionRecord{}
	if err := collection.FindOne(ctx, filter).Decode(saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// ListCompletionRecords returns a user's completion records with a date in
// the closed range [start, end], sorted ascending by day key.
func (m *MongoStorage) ListCompletionRecords(ctx context.Context, userID primitive.ObjectID, start, end string) ([]models.CompletionRecord, error) {
	collection := m.client.Database(m.dbName).Collection("completions")
	filter := bson.M{
		"user_id": userID,
		"date":    bson.M{"$gte": start, "$lte": end},
	}
	cursor, err := collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.CompletionRecord
	for cursor.Next(ctx) {
		var record models.CompletionRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, cursor.Err()
}

// ListCompletedDates returns the day keys on which the habit was marked
// completed, in no particular order. The streak calculator sorts and
// deduplicates on its side.
func (m *MongoStorage) ListCompletedDates(ctx context.Context, habitID, userID primitive.ObjectID) ([]string, error) {
	collection := m.client.Database(m.dbName).Collection("completions")
	filter := bson.M{
		"user_id":   userID,
		"habit_id":  habitID,
		"completed": true,
	}
	cursor, err := collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"date": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var days []string
	for cursor.Next(ctx) {
		var row struct {
			Date string `bson:"date"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		days = append(days, row.Date)
	}

	return days, cursor.Err()
}

// CountCompletedRecords returns the lifetime count of a user's completed
// records across all habits, active or not.
func (m *MongoStorage) CountCompletedRecords(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	collection := m.client.Database(m.dbName).Collection("completions")
	return collection.CountDocuments(ctx, bson.M{"user_id": userID, "completed": true})
}

// ListAwardedBadgeIDs returns the set of badge ids already awarded to the
// user. The achievement engine queries this fresh at the start of every
// evaluation pass; it is the authoritative guard, not an in-memory flag.
func (m *MongoStorage) ListAwardedBadgeIDs(ctx context.Context, userID primitive.ObjectID) (map[string]bool, error) {
	collection := m.client.Database(m.dbName).Collection("badge_awards")
	cursor, err := collection.Find(ctx, bson.M{"user_id": userID}, options.Find().SetProjection(bson.M{"badge_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	awarded := make(map[string]bool)
	for cursor.Next(ctx) {
		var row struct {
			BadgeID string `bson:"badge_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		awarded[row.BadgeID] = true
	}

	return awarded, cursor.Err()
}

// ListBadgeAwards returns a user's badge awards, oldest first.
func (m *MongoStorage) ListBadgeAwards(ctx context.Context, userID primitive.ObjectID) ([]models.BadgeAward, error) {
	collection := m.client.Database(m.dbName).Collection("badge_awards")
	cursor, err := collection.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "awarded_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var awards []models.BadgeAward
	for cursor.Next(ctx) {
		var award models.BadgeAward
		if err := cursor.Decode(&award); err != nil {
			return nil, err
		}
		awards = append(awards, award)
	}

	return awards, cursor.Err()
}

// AwardBadgeIfAbsent inserts a badge award unless one already exists for the
// (user, badge) pair. Two concurrent evaluation passes can both reach the
// insert; the unique index resolves the race and the loser's duplicate-key
// error is reported as created=false with a nil error. First writer wins,
// no retry, and the existing award's timestamp is never touched.
func (m *MongoStorage) AwardBadgeIfAbsent(ctx context.Context, award *models.BadgeAward) (bool, error) {
	collection := m.client.Database(m.dbName).Collection("badge_awards")
	result, err := collection.InsertOne(ctx, award)
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}

	award.ID = result.InsertedID.(primitive.ObjectID)
	return true, nil
}
