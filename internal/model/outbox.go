package model

import (
	"encoding/json"
	"time"
)

// Notification topics emitted on booking transitions.
const (
	TopicBookingConfirmed = "booking.confirmed"
	TopicBookingRejected  = "booking.rejected"
	TopicBookingCancelled = "booking.cancelled"
	TopicSystemMessage    = "chat.system_message"
)

// Outbox event statuses.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusFailed    = "failed"
)

// OutboxEvent is an advisory side effect recorded in the same transaction
// as the state change that caused it and delivered later.
type OutboxEvent struct {
	ID             string          `json:"id"`
	Topic          string          `json:"topic"`
	RecipientID    string          `json:"recipient_id"`
	BookingID      *string         `json:"booking_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BookingNotice is the payload for booking transition notifications.
type BookingNotice struct {
	BookingID    string        `json:"booking_id"`
	ListingID    string        `json:"listing_id"`
	Status       BookingStatus `json:"status"`
	TotalPrice   int64         `json:"total_cents"`
	RefundAmount int64         `json:"refund_cents,omitempty"`
	Message      string        `json:"message"`
}
