package repository

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// PlatformLedgerRepository records admin-facing payment and revenue rows.
type PlatformLedgerRepository struct{}

// NewPlatformLedgerRepository creates a new PlatformLedgerRepository.
func NewPlatformLedgerRepository() *PlatformLedgerRepository {
	return &PlatformLedgerRepository{}
}

// Record inserts an entry; a repeated idempotency key is ignored.
func (r *PlatformLedgerRepository) Record(ctx context.Context, q database.TxQuerier, e model.PlatformEntry) error {
	_, err := q.Exec(ctx,
		`INSERT INTO platform_ledger (kind, amount_cents, booking_id, idempotency_key)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		string(e.Kind), e.Amount, e.BookingID, e.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("record platform entry %s: %w", e.IdempotencyKey, err)
	}
	return nil
}
