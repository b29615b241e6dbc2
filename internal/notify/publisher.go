// Package notify delivers outbox events to guests and hosts.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/config"
	"github.com/fairyhunter13/stays-ledger/internal/model"
)

// Publisher hands one event to the delivery channel.
type Publisher interface {
	Publish(ctx context.Context, ev *model.OutboxEvent) error
}

// Envelope is the message published for each event.
type Envelope struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	RecipientID string          `json:"recipient_id"`
	BookingID   *string         `json:"booking_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

func envelope(ev *model.OutboxEvent) Envelope {
	return Envelope{
		ID:          ev.ID,
		Topic:       ev.Topic,
		RecipientID: ev.RecipientID,
		BookingID:   ev.BookingID,
		Payload:     ev.Payload,
	}
}

// RedisPubSub is the part of *redis.Client the publisher uses.
type RedisPubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes events on "<prefix>:<topic>" channels.
type RedisPublisher struct {
	client RedisPubSub
	prefix string
}

// NewRedisClient opens a client for cfg. It does not dial until first use.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(client RedisPubSub, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel an event topic is published on.
func (p *RedisPublisher) Channel(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + ":" + topic
}

// Publish sends the event envelope as JSON.
func (p *RedisPublisher) Publish(ctx context.Context, ev *model.OutboxEvent) error {
	msg, err := json.Marshal(envelope(ev))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.Topic), msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Topic, err)
	}
	return nil
}

// LogPublisher writes events to the application log. Used when no Redis
// address is configured.
type LogPublisher struct{}

// Publish logs the event.
func (LogPublisher) Publish(_ context.Context, ev *model.OutboxEvent) error {
	log.Info().
		Str("event_id", ev.ID).
		Str("topic", ev.Topic).
		Str("recipient_id", ev.RecipientID).
		RawJSON("payload", ev.Payload).
		Msg("notification")
	return nil
}
