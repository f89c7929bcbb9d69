package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/rjoshi/habitflow/badges"
	"github.com/rjoshi/habitflow/lib/utils"
	"github.com/rjoshi/habitflow/models"
	"github.com/rjoshi/habitflow/storage"
)

// store holds an interface to the storage system (database).
var store storage.StorageInterface

// jwtSigningKey holds the key used for signing and verifying JWT tokens.
var jwtSigningKey string

// engine holds the achievement engine used to grant the signup badge.
var engine *badges.Engine

// InitAuth initializes the authentication system with the shared storage
// backend, the JWT signing key, and the achievement engine used for the
// account-creation badge.
func InitAuth(s storage.StorageInterface, signingKey string, e *badges.Engine) {
	store = s
	jwtSigningKey = signingKey
	engine = e
}

// CreateAuthToken creates a signed JWT token for a user.
//
// The function creates a JWT token with the user's ID and an expiration
// time. It returns a signed JWT token or an error if there was a problem
// during the token creation.
func CreateAuthToken(userId string) (string, error) {
	claims := jwt.MapClaims{
		"id":  userId,
		"exp": time.Now().Add(time.Minute * 15).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(jwtSigningKey))

	if err != nil {
		return "", errors.New("failed to create auth token")
	}

	return signedToken, nil
}

// CreateRefreshToken creates a refresh JWT token for a user with a longer
// expiration than the auth token.
func CreateRefreshToken(userId string) (string, error) {
	claims := jwt.MapClaims{
		"id":  userId,
		"exp": time.Now().Add(time.Hour * 24 * 7).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(jwtSigningKey))

	if err != nil {
		return "", errors.New("failed to create refresh token")
	}

	return signedToken, nil
}

// CreateTokens creates both an auth token and a refresh token for a user.
func CreateTokens(userId string) (string, string, error) {
	authToken, authErr := CreateAuthToken(userId)
	if authErr != nil {
		return "", "", authErr
	}

	refreshToken, refreshErr := CreateRefreshToken(userId)
	if refreshErr != nil {
		return "", "", refreshErr
	}

	return authToken, refreshToken, nil
}

// SignIn authenticates a user by username and password.
//
// It finds the user in the database by their username, compares the stored
// bcrypt hash with the provided password, and generates a new pair of
// tokens. Authentication failures are reported with a generic error so the
// caller cannot distinguish a wrong username from a wrong password.
func SignIn(username string, password string) (string, string, error) {
	if len(username) < 2 {
		return "", "", errors.New("invalid username")
	}

	foundUser, err := store.FindUser(context.Background(), bson.M{"username": username})
	if err != nil {
		return "", "", errors.New("authentication failed")
	}

	err = bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(password))
	if err != nil {
		return "", "", errors.New("authentication failed")
	}

	return CreateTokens(foundUser.ID.Hex())
}

// SignUp registers a new user.
//
// It validates the username, email format and password complexity, checks
// for existing accounts, hashes the password, and creates the user. The
// early-bird badge is granted here through the engine's direct special-award
// path, once per account ever; a failure to grant it is logged but does not
// fail the signup.
//
// The function returns an authentication token, a refresh token, and an
// error if there was a problem with any step of the process.
func SignUp(username string, email string, password string) (string, string, error) {
	if len(username) < 2 {
		return "", "", errors.New("invalid username")
	}

	if !utils.ValidateEmail(email) {
		return "", "", errors.New("invalid email format")
	}

	if !utils.ValidatePassword(password) {
		return "", "", errors.New("password must be at least 8 characters and contain both letters and numbers")
	}

	foundUser, err := store.FindUser(context.Background(), bson.M{"email": email})
	if err != nil && err != mongo.ErrNoDocuments {
		return "", "", err
	}
	if foundUser != nil {
		return "", "", errors.New("an account with this email already exists")
	}

	foundUser, err = store.FindUser(context.Background(), bson.M{"username": username})
	if err != nil && err != mongo.ErrNoDocuments {
		return "", "", err
	}
	if foundUser != nil {
		return "", "", errors.New("username is taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
	}

	user, err = store.AddUser(context.Background(), user)
	if err != nil {
		return "", "", err
	}

	if _, err := engine.AwardSpecial(context.Background(), user.ID, "early_bird"); err != nil {
		log.Printf("early bird badge for user %s: %v", user.ID.Hex(), err)
	}

	return CreateTokens(user.ID.Hex())
}
