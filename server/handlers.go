package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rjoshi/habitflow/analytics"
	"github.com/rjoshi/habitflow/badges"
	"github.com/rjoshi/habitflow/lib/dates"
	"github.com/rjoshi/habitflow/models"
	appqueue "github.com/rjoshi/habitflow/queue"
	"github.com/rjoshi/habitflow/server/auth"
	contextKey "github.com/rjoshi/habitflow/server/context_key"
)

// defaultInsightsDays is the range served when the caller does not supply
// one: the trailing 30 days including today.
const defaultInsightsDays = 30

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AuthToken    string `json:"auth_token"`
	RefreshToken string `json:"refresh_token"`
}

type createHabitRequest struct {
	Title      string  `json:"title"`
	GoalType   string  `json:"goal_type"`
	GoalTarget float64 `json:"goal_target"`
	Unit       string  `json:"unit"`
}

type upsertRecordRequest struct {
	Date      string  `json:"date"`
	Completed bool    `json:"completed"`
	Value     float64 `json:"value"`
	Note      string  `json:"note"`
}

type recordResponse struct {
	Record    *models.CompletionRecord `json:"record"`
	NewBadges []badges.BadgeDefinition `json:"new_badges"`
}

type badgeStatus struct {
	badges.BadgeDefinition
	Earned    bool       `json:"earned"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// userIDFrom extracts the authenticated user's id injected by the JWT
// middleware. It returns an error when the request carries no valid token.
func userIDFrom(r *http.Request) (primitive.ObjectID, error) {
	raw, ok := r.Context().Value(contextKey.UserIDKey).(string)
	if !ok || raw == "" {
		return primitive.NilObjectID, errors.New("authentication required")
	}
	return primitive.ObjectIDFromHex(raw)
}

func handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	authToken, refreshToken, err := auth.SignUp(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{AuthToken: authToken, RefreshToken: refreshToken})
}

func handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	authToken, refreshToken, err := auth.SignIn(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: authToken, RefreshToken: refreshToken})
}

func handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req createHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GoalType == "" {
		req.GoalType = string(models.GoalBinary)
	}

	habit := &models.Habit{
		UserID:     userID,
		Title:      req.Title,
		GoalType:   models.GoalType(req.GoalType),
		GoalTarget: req.GoalTarget,
		Unit:       req.Unit,
		Active:     true,
		CreatedAt:  time.Now(),
	}

	habit, err = store.AddHabit(r.Context(), habit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Habit-count milestones can fire on creation; streak data is
	// irrelevant to them, so the best-streak scalar is passed as zero.
	earned, err := engine.Evaluate(r.Context(), userID, 0, time.Now())
	if err != nil {
		log.Printf("badge evaluation after habit create failed: %v", err)
	}
	notifyBadges(r.Context(), userID, earned)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"habit":      habit,
		"new_badges": earned,
	})
}

func handleListHabits(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	habits, err := store.FindHabits(r.Context(), bson.M{"user_id": userID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if habits == nil {
		habits = []models.Habit{}
	}

	writeJSON(w, http.StatusOK, habits)
}

func handleDeactivateHabit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	habitID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	if err := store.DeactivateHabit(r.Context(), habitID, userID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpsertRecord writes a completion record and then runs the
// recomputation pass inline: per-habit streaks are rebuilt, the best longest
// streak is reduced for the streak rules, and the achievement engine
// evaluates the catalog. The newly earned badges ride back on the response.
func handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	habitID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	var req upsertRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Boundary validation: the analytics layer assumes canonical keys.
	if _, err := dates.Parse(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	habits, err := store.FindHabits(r.Context(), bson.M{"_id": habitID, "user_id": userID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(habits) == 0 {
		writeError(w, http.StatusNotFound, "habit does not exist")
		return
	}

	record := &models.CompletionRecord{
		HabitID:   habitID,
		UserID:    userID,
		Date:      req.Date,
		Completed: req.Completed,
		Value:     req.Value,
		Note:      req.Note,
	}
	record, err = store.UpsertCompletionRecord(r.Context(), record)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	earned := evaluateAfterWrite(r, userID)

	writeJSON(w, http.StatusOK, recordResponse{Record: record, NewBadges: earned})
}

// evaluateAfterWrite runs the streak reduction and badge pass that follows
// a completion write. Failures are logged, not surfaced: the record write
// already succeeded and a missed badge is picked up by the next pass.
func evaluateAfterWrite(r *http.Request, userID primitive.ObjectID) []badges.BadgeDefinition {
	today := time.Now()

	activeHabits, err := store.FindHabits(r.Context(), bson.M{"user_id": userID, "active": true})
	if err != nil {
		log.Printf("recompute pass: listing habits failed: %v", err)
		return nil
	}
	streaks, err := insights.HabitStreaks(r.Context(), userID, activeHabits, today)
	if err != nil {
		log.Printf("recompute pass: streaks failed: %v", err)
		return nil
	}

	earned, err := engine.Evaluate(r.Context(), userID, analytics.BestLongestStreak(streaks), today)
	if err != nil {
		log.Printf("recompute pass: badge evaluation failed: %v", err)
		return nil
	}

	notifyBadges(r.Context(), userID, earned)
	return earned
}

// notifyBadges publishes a notification message for each newly earned
// badge. Publishing is best-effort and never affects the awards themselves.
func notifyBadges(ctx context.Context, userID primitive.ObjectID, earned []badges.BadgeDefinition) {
	if notificationQueue == nil || len(earned) == 0 {
		return
	}

	user, err := store.FindUser(ctx, bson.M{"_id": userID})
	if err != nil {
		log.Printf("notify badges: finding user failed: %v", err)
		return
	}

	for _, def := range earned {
		msg := &appqueue.NotificationMessage{
			Id:         uuid.NewString(),
			To:         user.Email,
			BadgeID:    def.ID,
			BadgeTitle: def.Title,
		}
		if err := appqueue.PublishNotification(msg, notificationQueue); err != nil {
			log.Printf("notify badges: publish failed for %s: %v", def.ID, err)
		}
	}
}

func handleInsights(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	today := dates.Truncate(time.Now())
	start, end, err := parseRange(r, dates.AddDays(today, -(defaultInsightsDays-1)), today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := insights.BuildInsights(r.Context(), userID, start, end, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func handleStreaks(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	list, err := insights.StreakList(r.Context(), userID, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func handleBadges(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	awards, err := store.ListBadgeAwards(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	awardedAt := make(map[string]time.Time, len(awards))
	for _, a := range awards {
		awardedAt[a.BadgeID] = a.AwardedAt
	}

	statuses := make([]badgeStatus, 0)
	for _, def := range badges.Catalog() {
		status := badgeStatus{BadgeDefinition: def}
		if at, ok := awardedAt[def.ID]; ok {
			status.Earned = true
			t := at
			status.AwardedAt = &t
		}
		statuses = append(statuses, status)
	}

	writeJSON(w, http.StatusOK, statuses)
}

// handleExport streams the user's completion records for the range as CSV,
// a direct projection sorted ascending by date.
func handleExport(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	today := dates.Truncate(time.Now())
	start, end, err := parseRange(r, dates.AddDays(today, -364), today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	habits, err := store.FindHabits(r.Context(), bson.M{"user_id": userID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	records, err := store.ListCompletionRecords(r.Context(), userID, dates.Format(start), dates.Format(end))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=completions.csv")

	cw := csv.NewWriter(w)
	if err := cw.Write(analytics.ExportHeader); err != nil {
		log.Printf("export: writing header failed: %v", err)
		return
	}
	for _, row := range analytics.ExportRows(habits, records) {
		if err := cw.Write(row); err != nil {
			log.Printf("export: writing row failed: %v", err)
			return
		}
	}
	cw.Flush()
}

// parseRange reads optional start/end query parameters, falling back to the
// given defaults. It validates the keys and their ordering.
func parseRange(r *http.Request, defaultStart, defaultEnd time.Time) (time.Time, time.Time, error) {
	start, end := defaultStart, defaultEnd

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := dates.Parse(raw)
		if err != nil {
			return start, end, errors.New("start must be formatted YYYY-MM-DD")
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := dates.Parse(raw)
		if err != nil {
			return start, end, errors.New("end must be formatted YYYY-MM-DD")
		}
		end = parsed
	}
	if end.Before(start) {
		return start, end, errors.New("end must not precede start")
	}
	return start, end, nil
}
