package queue

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// Producer interface provides the Publish method to publish messages to
// RabbitMQ. Publish sends a message body as a byte array and returns an
// error if there was a problem.
type Producer interface {
	Publish(body []byte) error
}

// Consumer interface provides the Consume method to consume messages from
// RabbitMQ. Consume listens to messages and handles the message stream.
type Consumer interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

// ProducerFactory instantiates new producers for a declared queue.
type ProducerFactory interface {
	CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error)
}

// ConsumerFactory instantiates new consumers for a declared queue.
type ConsumerFactory interface {
	CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error)
}

// Queue holds slices of Producers and Consumers which can be used to send
// and consume messages.
type Queue struct {
	Producers []Producer
	Consumers []Consumer
}

// connect establishes a connection to RabbitMQ and opens a channel in
// confirm mode. The function listens for closure of the connection and logs
// any closure error.
func connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	if err = ch.Confirm(false); err != nil {
		return nil, nil, err
	}

	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)

	go func() {
		err := <-notifyClose
		if err != nil {
			log.Fatalf("RabbitMQ connection closed: %v", err)
		}
	}()

	return conn, ch, nil
}

// InitQueue connects to RabbitMQ, declares a durable queue with the given
// name, and builds producers and consumers for it from the provided
// factories.
func InitQueue(url string, queueName string, prodFactories []ProducerFactory, consFactories []ConsumerFactory) (*Queue, error) {
	conn, ch, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to RabbitMQ: %w", err)
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return nil, fmt.Errorf("error declaring queue: %w", err)
	}

	var producers []Producer
	var consumers []Consumer

	for _, prodFactory := range prodFactories {
		producer, err := prodFactory.CreateProducer(conn, ch, &queue)
		if err != nil {
			return nil, fmt.Errorf("error creating producer: %w", err)
		}
		producers = append(producers, producer)
	}

	for _, consFactory := range consFactories {
		consumer, err := consFactory.CreateConsumer(conn, ch, &queue)
		if err != nil {
			return nil, fmt.Errorf("error creating consumer: %w", err)
		}
		consumers = append(consumers, consumer)
	}

	return &Queue{
		Producers: producers,
		Consumers: consumers,
	}, nil
}

// StartConsumers starts every consumer of the queue in its own goroutine so
// they process messages independently and concurrently. Cancelling the
// context stops them; the returned WaitGroup can be used to wait for all
// consumers to finish.
func (q *Queue) StartConsumers(ctx context.Context) (*sync.WaitGroup, error) {
	var wg sync.WaitGroup

	for _, consumer := range q.Consumers {
		wg.Add(1)

		go func(c Consumer) {
			defer wg.Done()

			if _, err := c.Consume(ctx); err != nil {
				log.Printf("Error starting consumer: %v", err)
			}
		}(consumer)
	}

	return &wg, nil
}
