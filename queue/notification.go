package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"

	"github.com/rjoshi/habitflow/server/notifications/email"
	"github.com/rjoshi/habitflow/storage/cache"
)

// notificationDedupTTL is how long a delivered message id is remembered.
// Redeliveries past this window would mail twice; the broker redelivers
// within seconds, so three days is a comfortable margin.
const notificationDedupTTL = 72 * time.Hour

// globalCount is used by the round robin algorithm that assigns a producer
// to each notification message.
var globalCount int

// NotificationProducerFactory creates new NotificationProducer instances.
type NotificationProducerFactory struct{}

// NotificationConsumerFactory creates new NotificationConsumer instances.
// It carries the cache used to de-duplicate deliveries.
type NotificationConsumerFactory struct {
	Cache cache.CacheInterface
}

// NotificationProducer manages the connection, channel and queue of the AMQP
// message producer for badge notifications.
type NotificationProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// NotificationConsumer manages the connection, channel, queue and cache of
// the AMQP message consumer for badge notifications.
type NotificationConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   cache.CacheInterface
}

// NotificationMessage is the payload published when a user earns a badge.
// Id is a uuid generated at publish time; the consumer side uses it to make
// delivery idempotent even when the broker redelivers.
type NotificationMessage struct {
	Id         string `json:"id"`
	To         string `json:"to"`
	BadgeID    string `json:"badge_id"`
	BadgeTitle string `json:"badge_title"`
}

// CreateProducer instantiates a new NotificationProducer for the declared
// queue.
func (f *NotificationProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &NotificationProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer instantiates a new NotificationConsumer for the declared
// queue, wired to the delivery de-duplication cache.
func (f *NotificationConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &NotificationConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		cache:   f.Cache,
	}, nil
}

// Publish publishes a message body to the notification queue.
func (np *NotificationProducer) Publish(body []byte) error {
	err := np.channel.Publish(
		"",            // exchange
		np.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume sets up a consumer on the queue and launches a goroutine that
// continuously reads from it. Each message is unmarshalled, checked against
// the cache so a redelivered message is not mailed twice, and then sent as a
// congratulation email. Transient errors are nacked back onto the queue.
func (nc *NotificationConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := nc.channel.Consume(
		nc.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}

				message := &NotificationMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal notification message: %v", err)
					d.Nack(false, true)
					continue
				}

				processed, err := nc.cache.Get(ctx, "notify_"+message.Id)
				if err != nil && err != cache.ErrCacheMiss {
					log.Printf("error checking cache: %v", err)
					d.Nack(false, true)
					continue
				}

				if processed != nil {
					d.Ack(false)
					continue
				}

				if err := email.SendBadgeEmail(message.To, message.BadgeTitle); err != nil {
					log.Printf("failed to send badge email: %v", err)
					d.Nack(false, true)
				} else {
					d.Ack(false)
					if err := nc.cache.Set(ctx, "notify_"+message.Id, true, notificationDedupTTL); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildNotificationQueue initializes a Queue for badge notifications with
// the requested numbers of producers and consumers.
func BuildNotificationQueue(rabbitMQURL string, numProducers, numConsumers int, dedupCache cache.CacheInterface) (*Queue, error) {
	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &NotificationProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &NotificationConsumerFactory{Cache: dedupCache}
	}

	return InitQueue(rabbitMQURL, "badgeNotifications", prodFactories, consFactories)
}

// InitNotificationCache initializes the cache used to de-duplicate
// notification deliveries.
func InitNotificationCache(url string) (cache.CacheInterface, error) {
	c, err := cache.NewCache(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to cache: %w", err)
	}
	return c, nil
}

// PublishNotification serializes a notification message and publishes it
// onto the queue using one of the producers in a round-robin manner.
// Publishing is fire-and-forget relative to badge awarding: a failure here
// never rolls an award back.
func PublishNotification(msg *NotificationMessage, notificationQueue *Queue) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.New("failed to marshal notification message: " + err.Error())
	}

	producerCount := len(notificationQueue.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := notificationQueue.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish notification message: " + err.Error())
	}

	return nil
}
