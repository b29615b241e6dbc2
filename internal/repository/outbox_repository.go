package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// OutboxPoolInterface defines the database operations needed by the dispatcher side.
type OutboxPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxRepository stores advisory side effects until they are delivered.
type OutboxRepository struct {
	pool OutboxPoolInterface
}

// NewOutboxRepository creates a new OutboxRepository with the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// NewOutboxRepositoryWithPool creates a new OutboxRepository with a custom pool interface.
// This is primarily used for testing.
func NewOutboxRepositoryWithPool(pool OutboxPoolInterface) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Enqueue inserts an event inside the caller's transaction. A repeated
// idempotency key is ignored so retried transitions never double-notify.
func (r *OutboxRepository) Enqueue(ctx context.Context, q database.TxQuerier, ev *model.OutboxEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := q.Exec(ctx,
		`INSERT INTO outbox_events (id, topic, recipient_id, booking_id, payload, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		ev.ID, ev.Topic, ev.RecipientID, ev.BookingID, []byte(ev.Payload), ev.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("enqueue outbox event %s: %w", ev.IdempotencyKey, err)
	}
	return nil
}

// ClaimDue leases up to limit pending events whose next attempt is due.
// Leasing pushes next_attempt_at forward and counts the attempt, so a worker
// that dies mid-delivery only delays the event until the lease runs out.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1, next_attempt_at = NOW() + make_interval(secs => $2)
		 WHERE id IN (
		     SELECT id FROM outbox_events
		     WHERE status = 'pending' AND next_attempt_at <= NOW()
		     ORDER BY next_attempt_at
		     FOR UPDATE SKIP LOCKED
		     LIMIT $1
		 )
		 RETURNING id::text, topic, recipient_id, booking_id::text, payload, idempotency_key, attempts, created_at`,
		limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	events := []*model.OutboxEvent{}
	for rows.Next() {
		var ev model.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.RecipientID, &ev.BookingID, &payload, &ev.IdempotencyKey, &ev.Attempts, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		ev.Payload = payload
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkDelivered records a successful delivery.
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET status = 'delivered', delivered_at = NOW(), last_error = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %s delivered: %w", id, err)
	}
	return nil
}

// MarkRetry schedules another attempt at next.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id string, next time.Time, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET next_attempt_at = $2, last_error = $3 WHERE id = $1`, id, next, reason)
	if err != nil {
		return fmt.Errorf("reschedule outbox event %s: %w", id, err)
	}
	return nil
}

// MarkFailed parks an event that exhausted its attempts.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET status = 'failed', last_error = $2 WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("mark outbox event %s failed: %w", id, err)
	}
	return nil
}
