// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	SeriesDeletedQueue   = "series.deleted"
	OrphansDetectedQueue = "orphans.detected"
)

// SeriesDeleted is sent after a recurrence pattern is removed.
type SeriesDeleted struct {
	UserID           string    `json:"userId"`
	PatternID        string    `json:"patternId"`
	InstancesDeleted int64     `json:"instancesDeleted"`
	DeletedAt        time.Time `json:"deletedAt"`
}

// OrphansDetected summarizes an orphan scan of one user.
type OrphansDetected struct {
	UserID     string         `json:"userId"`
	Count      int            `json:"count"`
	ByPattern  map[string]int `json:"byPattern"`
	DetectedAt time.Time      `json:"detectedAt"`
}

// Publisher sends an event to the queue of the same name.
type Publisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// AMQPPublisher opens a short-lived connection per event.
type AMQPPublisher struct {
	url string
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url}
}

// New returns an AMQP publisher for url, or Nop when url is empty.
func New(url string) Publisher {
	if url == "" {
		return Nop{}
	}
	return NewAMQPPublisher(url)
}

func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event any) error {
	msg, err := newPublishing(event, time.Now())
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	log.Printf("[info] published %s", queue)
	return nil
}

func newPublishing(event any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}
