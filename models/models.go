package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoalType describes how a habit's daily completion is measured.
type GoalType string

const (
	GoalBinary   GoalType = "binary"
	GoalDuration GoalType = "duration"
	GoalQuantity GoalType = "quantity"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Email        string             `bson:"email" json:"email"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// Habit is a tracked behavior definition. Habits are soft-deactivated rather
// than deleted so historical aggregates stay intact; hard deletion only
// happens on full account erasure.
type Habit struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title      string             `bson:"title" json:"title"`
	GoalType   GoalType           `bson:"goal_type" json:"goal_type"`
	GoalTarget float64            `bson:"goal_target,omitempty" json:"goal_target,omitempty"`
	Unit       string             `bson:"unit,omitempty" json:"unit,omitempty"`
	Active     bool               `bson:"active" json:"active"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// CompletionRecord is one row per (habit, calendar day). Date is the
// canonical "YYYY-MM-DD" key in the user's tracking timezone; the unique
// index on (user_id, habit_id, date) makes upserts replace, never duplicate.
type CompletionRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	HabitID   primitive.ObjectID `bson:"habit_id" json:"habit_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Date      string             `bson:"date" json:"date"`
	Completed bool               `bson:"completed" json:"completed"`
	Value     float64            `bson:"value,omitempty" json:"value,omitempty"`
	Note      string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// AwardMetadata is the snapshot stored alongside a badge award. It is a
// fixed-shape struct rather than an open map; each badge category fills in
// at most one field and the rest are omitted from the document.
type AwardMetadata struct {
	StreakLength    int    `bson:"streak_length,omitempty" json:"streak_length,omitempty"`
	HabitCount      int    `bson:"habit_count,omitempty" json:"habit_count,omitempty"`
	CompletionCount int    `bson:"completion_count,omitempty" json:"completion_count,omitempty"`
	WeekStart       string `bson:"week_start,omitempty" json:"week_start,omitempty"`
}

// BadgeAward records that a badge from the static catalog was granted to a
// user. At most one award exists per (user_id, badge_id); awards are created
// once by the achievement engine and never mutated.
type BadgeAward struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	BadgeID   string             `bson:"badge_id" json:"badge_id"`
	AwardedAt time.Time          `bson:"awarded_at" json:"awarded_at"`
	Metadata  AwardMetadata      `bson:"metadata,omitempty" json:"metadata,omitempty"`
}
