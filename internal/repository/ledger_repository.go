package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/service"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// LedgerRepository keeps the append-only transaction log and applies postings
// to the running balance. The log is never truncated; readers page it.
type LedgerRepository struct{}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// Post appends a transaction row and applies its amount to the balance.
// A repeated idempotency key inserts nothing and returns false.
// With requireFunds, a debit that would take the balance below zero fails
// with service.ErrInsufficientBalance; the caller rolls the transaction back.
// Must be called within a transaction; the account row must exist.
func (r *LedgerRepository) Post(ctx context.Context, q database.TxQuerier, p model.Posting, requireFunds bool) (bool, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO ledger_transactions (user_id, type, amount_cents, booking_id, status, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (idempotency_key) DO NOTHING
		 RETURNING id`,
		p.UserID, string(p.Type), p.Amount, p.BookingID, model.TransactionStatusCompleted, p.IdempotencyKey,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert ledger transaction %s: %w", p.IdempotencyKey, err)
	}

	query := `UPDATE accounts SET balance_cents = balance_cents + $2, updated_at = NOW() WHERE user_id = $1`
	if requireFunds {
		query += ` AND balance_cents + $2 >= 0`
	}
	tag, err := q.Exec(ctx, query, p.UserID, p.Amount)
	if err != nil {
		return false, fmt.Errorf("apply posting %s: %w", p.IdempotencyKey, err)
	}
	if tag.RowsAffected() == 0 {
		if requireFunds {
			return false, service.ErrInsufficientBalance
		}
		return false, fmt.Errorf("apply posting %s: account %s missing", p.IdempotencyKey, p.UserID)
	}
	return true, nil
}

// Recent returns the latest transactions for a user, newest first.
func (r *LedgerRepository) Recent(ctx context.Context, q database.TxQuerier, userID string, limit int) ([]model.Transaction, error) {
	rows, err := q.Query(ctx,
		`SELECT id, user_id, type, amount_cents, booking_id::text, status, idempotency_key, created_at
		 FROM ledger_transactions WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", userID, err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BookingID, &t.Status, &t.IdempotencyKey, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}
