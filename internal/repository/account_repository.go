package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// AccountRepository provides access to per-user balance and points totals.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

// Get returns a user's account. Users without postings get a zero account.
func (r *AccountRepository) Get(ctx context.Context, q database.TxQuerier, userID string) (*model.Account, error) {
	a := model.Account{UserID: userID}
	err := q.QueryRow(ctx,
		`SELECT balance_cents, points, updated_at FROM accounts WHERE user_id = $1`,
		userID).Scan(&a.Balance, &a.Points, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &a, nil
		}
		return nil, fmt.Errorf("get account %s: %w", userID, err)
	}
	return &a, nil
}

// LockForUpdate creates any missing accounts and locks every row with
// SELECT FOR UPDATE. Rows are locked in ascending user-id order so two
// transactions touching the same pair of users cannot deadlock.
// Must be called within a transaction.
func (r *AccountRepository) LockForUpdate(ctx context.Context, q database.TxQuerier, userIDs ...string) (map[string]*model.Account, error) {
	ids := uniqueSorted(userIDs)
	accounts := make(map[string]*model.Account, len(ids))

	for _, id := range ids {
		if _, err := q.Exec(ctx,
			`INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id); err != nil {
			return nil, fmt.Errorf("ensure account %s: %w", id, err)
		}

		a := model.Account{UserID: id}
		err := q.QueryRow(ctx,
			`SELECT balance_cents, points, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE`,
			id).Scan(&a.Balance, &a.Points, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		accounts[id] = &a
	}
	return accounts, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
