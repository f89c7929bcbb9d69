package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/rjoshi/habitflow/analytics"
	"github.com/rjoshi/habitflow/badges"
	contextKey "github.com/rjoshi/habitflow/server/context_key"
	"github.com/rjoshi/habitflow/storage"

	appqueue "github.com/rjoshi/habitflow/queue"
)

// store holds the shared storage backend used by the request handlers.
var store storage.StorageInterface

// insights holds the analytics service that assembles summaries.
var insights *analytics.Service

// engine holds the achievement engine run after completion writes.
var engine *badges.Engine

// notificationQueue holds the queue badge notifications are published to.
// It may be nil when the broker is not configured; awards still happen,
// only the congratulation email is skipped.
var notificationQueue *appqueue.Queue

// InitServer wires the request handlers to their collaborators. It must be
// called before Start.
func InitServer(s storage.StorageInterface, svc *analytics.Service, e *badges.Engine, q *appqueue.Queue) {
	store = s
	insights = svc
	engine = e
	notificationQueue = q
}

// jwtMiddleware is a middleware function that performs JWT validation.
//
// It reads the JWT from the Authorization header of the HTTP request. If a
// valid token is present, it injects the user's ID extracted from the claims
// into the request's context under contextKey.UserIDKey; a parse error is
// injected under contextKey.JwtErrorKey instead.
//
// The middleware never stops request processing itself: it always calls the
// next handler and leaves it to the handlers to interpret the context and
// reject unauthenticated requests.
func jwtMiddleware(signingKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			splitToken := strings.Split(authHeader, "Bearer ")
			if len(splitToken) == 2 {
				token, err := jwt.Parse(splitToken[1], func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					return []byte(signingKey), nil
				})
				if err != nil {
					ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, err)
					r = r.WithContext(ctx)
				} else if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
					ctx := context.WithValue(r.Context(), contextKey.UserIDKey, claims["id"])
					r = r.WithContext(ctx)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and provides a generic error
// message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server on the host of serverURL.
// The completion-record write endpoint is the trigger for the recomputation
// pass: streaks, then badge evaluation, then notification publishing.
func Start(serverURL, signingKey string) {
	r := mux.NewRouter()

	r.HandleFunc("/auth/signup", handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", handleSignIn).Methods(http.MethodPost)

	r.HandleFunc("/habits", handleCreateHabit).Methods(http.MethodPost)
	r.HandleFunc("/habits", handleListHabits).Methods(http.MethodGet)
	r.HandleFunc("/habits/{id}/deactivate", handleDeactivateHabit).Methods(http.MethodPost)
	r.HandleFunc("/habits/{id}/records", handleUpsertRecord).Methods(http.MethodPut)

	r.HandleFunc("/insights", handleInsights).Methods(http.MethodGet)
	r.HandleFunc("/streaks", handleStreaks).Methods(http.MethodGet)
	r.HandleFunc("/badges", handleBadges).Methods(http.MethodGet)
	r.HandleFunc("/export", handleExport).Methods(http.MethodGet)

	var root http.Handler = recoveryMiddleware(jwtMiddleware(signingKey, r))

	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	root = handlers.CORS(corsOrigins, corsMethods, corsHeaders)(root)

	root = handlers.LoggingHandler(os.Stdout, root)

	u, err := url.Parse(serverURL)
	if err != nil {
		panic(err)
	}

	srv := &http.Server{
		Handler:      root,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Fatal(srv.ListenAndServe())
}
