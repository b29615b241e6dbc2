package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/stays-ledger/internal/config"
	"github.com/fairyhunter13/stays-ledger/internal/model"
)

const (
	// DefaultLease is how long a claimed event is hidden from other dispatchers.
	DefaultLease = 30 * time.Second

	baseBackoff = time.Second
	maxBackoff  = 10 * time.Minute
)

// Store is the outbox as seen by the dispatcher.
type Store interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, next time.Time, reason string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// Dispatcher polls the outbox and delivers due events with a bounded pool
// of workers. Delivery is at least once.
type Dispatcher struct {
	store     Store
	publisher Publisher
	cfg       config.OutboxConfig
	lease     time.Duration
	now       func() time.Time
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(store Store, publisher Publisher, cfg config.OutboxConfig) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		lease:     DefaultLease,
		now:       time.Now,
	}
}

// Run dispatches on every poll interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Info().
		Dur("interval", d.cfg.PollInterval).
		Int("workers", d.cfg.Workers).
		Msg("outbox dispatcher started")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("outbox dispatch failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce claims one batch of due events and delivers it. It returns
// how many events were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	events, err := d.store.ClaimDue(ctx, d.cfg.BatchSize, d.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	delivered := make([]bool, len(events))
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i, ev := range events {
		g.Go(func() error {
			delivered[i] = d.deliver(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range delivered {
		if ok {
			n++
		}
	}
	log.Debug().Int("claimed", len(events)).Int("delivered", n).Msg("outbox batch dispatched")
	return n, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev *model.OutboxEvent) bool {
	pubErr := d.publisher.Publish(ctx, ev)
	if pubErr == nil {
		if err := d.store.MarkDelivered(ctx, ev.ID); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID).Msg("delivered event not marked; it will be sent again")
		}
		return true
	}

	logger := log.With().
		Err(pubErr).
		Str("event_id", ev.ID).
		Str("topic", ev.Topic).
		Int("attempts", ev.Attempts).
		Logger()

	if ev.Attempts >= d.cfg.MaxAttempts {
		if err := d.store.MarkFailed(ctx, ev.ID, pubErr.Error()); err != nil {
			logger.Error().AnErr("mark_error", err).Msg("failed to park outbox event")
			return false
		}
		logger.Error().Msg("outbox event failed permanently")
		return false
	}

	next := d.now().Add(Backoff(ev.Attempts))
	if err := d.store.MarkRetry(ctx, ev.ID, next, pubErr.Error()); err != nil {
		logger.Error().AnErr("mark_error", err).Msg("failed to reschedule outbox event")
		return false
	}
	logger.Warn().Time("next_attempt_at", next).Msg("outbox event delivery failed, will retry")
	return false
}

// Backoff returns the delay before the next attempt after attempts tries:
// one second doubled per attempt, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		return baseBackoff
	}
	delay := baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
