// Package queue wraps the RabbitMQ channel used for asynchronous mail
// delivery. The queue is an at-least-once channel: the worker must tolerate
// duplicate deliveries.
package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/pkg/errors"
)

// Queue holds a connection and a channel with the mail queue declared.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string
}

// Connect dials RabbitMQ and declares the durable queue.
func Connect(rabbitURL, queueName string) (*Queue, error) {
	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare queue")
	}

	return &Queue{conn: conn, channel: channel, name: queueName}, nil
}

// Publish sends a persistent JSON message to the queue.
func (q *Queue) Publish(ctx context.Context, body []byte) error {
	return q.channel.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume returns the delivery channel for the worker process. Messages must
// be acked individually.
func (q *Queue) Consume() (<-chan amqp.Delivery, error) {
	return q.channel.Consume(q.name, "", false, false, false, false, nil)
}

// Close shuts down the channel and connection.
func (q *Queue) Close() error {
	if err := q.channel.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
