package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Sink delivers serialized events to a transport.
type Sink interface {
	Send(ctx context.Context, eventType EventType, payload []byte) error
	Close() error
}

// RedisSink publishes every event on one Redis channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Send(ctx context.Context, _ EventType, payload []byte) error {
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// Close leaves the shared client open.
func (s *RedisSink) Close() error { return nil }

// AmqpSink publishes to a topic exchange with the event type as routing key.
type AmqpSink struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAmqpSink(uri, exchange string) (*AmqpSink, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AmqpSink{conn: conn, channel: ch, exchange: exchange}, nil
}

func (s *AmqpSink) Send(ctx context.Context, eventType EventType, payload []byte) error {
	return s.channel.PublishWithContext(ctx,
		s.exchange,        // exchange
		string(eventType), // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         payload,
		},
	)
}

func (s *AmqpSink) Close() error {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// NopSink drops events.
type NopSink struct{}

func (NopSink) Send(context.Context, EventType, []byte) error { return nil }
func (NopSink) Close() error                                  { return nil }
