package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rjoshi/habitflow/analytics"
	"github.com/rjoshi/habitflow/badges"
	"github.com/rjoshi/habitflow/queue"
	"github.com/rjoshi/habitflow/server"
	"github.com/rjoshi/habitflow/server/auth"
	"github.com/rjoshi/habitflow/server/notifications/email"
	"github.com/rjoshi/habitflow/storage"
	"github.com/rjoshi/habitflow/storage/cache"
)

func main() {
	// Load the .env file.
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables from the .env file using os.Getenv.
	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token generation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	smtpEmail := os.Getenv("SMTP_EMAIL")       // The email address used for sending badge emails
	smtpPassword := os.Getenv("SMTP_PASS")     // The password for the email account
	redisURL := os.Getenv("REDIS_URL")         // The Redis URL for caching
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // The URL for the RabbitMQ message broker
	numProducers := 1                          // The number of notification producers
	numConsumers := 2                          // The number of notification consumers
	ctx := context.Background()

	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatal("error initializing storage: ", err)
	}
	defer store.Disconnect()

	appCache, err := cache.NewCache(redisURL)
	if err != nil {
		log.Fatal("error initializing cache: ", err)
	}
	defer appCache.Disconnect()

	// The notification pipeline is optional: without a broker the engine
	// still awards badges, users just don't get the email.
	var notificationQueue *queue.Queue
	if rabbitMQURL != "" {
		if _, err := email.InitEmailService(smtpEmail, smtpPassword); err != nil {
			log.Printf("email service unavailable: %v", err)
		}

		notificationQueue, err = queue.BuildNotificationQueue(rabbitMQURL, numProducers, numConsumers, appCache)
		if err != nil {
			log.Fatal("error building notification queue: ", err)
		}

		if _, err := notificationQueue.StartConsumers(ctx); err != nil {
			log.Fatal("error starting queue consumers: ", err)
		}
	}

	engine := badges.NewEngine(store)
	insights := analytics.NewService(store, appCache)

	auth.InitAuth(store, signingKey, engine)
	server.InitServer(store, insights, engine, notificationQueue)

	// Start the core server
	go server.Start(serverURL, signingKey)

	// Setting up the signal interrupt handler to gracefully shutdown our server
	sigs := make(chan os.Signal, 1)

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		fmt.Println()
		fmt.Println(sig)
		os.Exit(0)
	}()

	select {}
}
