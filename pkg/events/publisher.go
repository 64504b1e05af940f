package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"microblog/pkg/domain"
)

const tweetEventQueue = "tweet-events"

// Event types published on the tweet lifecycle.
const (
	TweetCreated = "tweet.created"
	TweetUpdated = "tweet.updated"
	TweetDeleted = "tweet.deleted"
)

// TweetEvent is the message body published for each lifecycle change.
type TweetEvent struct {
	Type       string    `json:"type"`
	TweetID    string    `json:"tweetId"`
	OwnerID    string    `json:"ownerId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits tweet lifecycle events.
type Publisher interface {
	PublishTweetEvent(ctx context.Context, eventType string, tweet domain.Tweet) error
	Close() error
}

// RabbitPublisher publishes events to a RabbitMQ queue.
type RabbitPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher dials RabbitMQ and declares the tweet event queue.
func NewRabbitPublisher(url string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(tweetEventQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitPublisher{conn: conn, ch: ch}, nil
}

// PublishTweetEvent sends a persistent JSON message to the tweet event queue.
func (p *RabbitPublisher) PublishTweetEvent(ctx context.Context, eventType string, tweet domain.Tweet) error {
	body, err := json.Marshal(TweetEvent{
		Type:       eventType,
		TweetID:    tweet.ID,
		OwnerID:    tweet.OwnerID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.ch.PublishWithContext(ctx,
		"",              // default exchange
		tweetEventQueue, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher discards events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishTweetEvent(context.Context, string, domain.Tweet) error { return nil }
func (NopPublisher) Close() error                                                  { return nil }
