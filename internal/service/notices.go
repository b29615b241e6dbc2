package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

type notice struct {
	topic     string
	recipient string
	refund    int64
	message   string
}

// notify enqueues booking notices to the outbox under a savepoint. Each notice
// is keyed by booking, topic and recipient so a retried transition cannot
// enqueue it twice.
func (s Stores) notify(ctx context.Context, tx pgx.Tx, b *model.Booking, notices ...notice) {
	for _, n := range notices {
		advisory(ctx, tx, n.topic, func(q database.TxQuerier) error {
			payload, err := json.Marshal(model.BookingNotice{
				BookingID:    b.ID,
				ListingID:    b.ListingID,
				Status:       b.Status,
				TotalPrice:   b.TotalPrice,
				RefundAmount: n.refund,
				Message:      n.message,
			})
			if err != nil {
				return fmt.Errorf("marshal notice: %w", err)
			}
			bookingID := b.ID
			return s.Outbox.Enqueue(ctx, q, &model.OutboxEvent{
				Topic:          n.topic,
				RecipientID:    n.recipient,
				BookingID:      &bookingID,
				Payload:        payload,
				IdempotencyKey: idempotencyKey("booking", b.ID, n.topic+":"+n.recipient),
			})
		})
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
