package service

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/stays-ledger/internal/model"
)

// RecentTransactionsLimit is how many postings the wallet view shows.
const RecentTransactionsLimit = 10

// LedgerService exposes a user's wallet.
type LedgerService struct {
	db     DB
	stores Stores
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(db DB, stores Stores) *LedgerService {
	return &LedgerService{db: db, stores: stores}
}

// Wallet returns the authoritative balance and the most recent postings.
// The full transaction log is kept; only the view is bounded.
func (s *LedgerService) Wallet(ctx context.Context, userID string) (*model.WalletResponse, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	account, err := s.stores.Accounts.Get(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	txs, err := s.stores.Ledger.Recent(ctx, s.db, userID, RecentTransactionsLimit)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}

	return &model.WalletResponse{
		Balance:      account.Balance,
		Transactions: txs,
	}, nil
}
