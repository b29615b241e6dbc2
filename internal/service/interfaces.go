package service

import (
	"context"
	"time"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// ListingRepositoryInterface defines read access to listings and their blocked dates.
type ListingRepositoryInterface interface {
	GetByID(ctx context.Context, q database.TxQuerier, id string) (*model.Listing, error)
	GetForUpdate(ctx context.Context, q database.TxQuerier, id string) (*model.Listing, error)
	BlockedDates(ctx context.Context, q database.TxQuerier, listingID string) ([]time.Time, error)
}

// BookingRepositoryInterface defines data access for bookings.
type BookingRepositoryInterface interface {
	Insert(ctx context.Context, q database.TxQuerier, b *model.Booking) error
	GetByID(ctx context.Context, q database.TxQuerier, id string) (*model.Booking, error)
	GetForUpdate(ctx context.Context, q database.TxQuerier, id string) (*model.Booking, error)
	GetByExternalPaymentID(ctx context.Context, q database.TxQuerier, paymentID string) (*model.Booking, error)
	ListByListing(ctx context.Context, q database.TxQuerier, listingID string, statuses ...model.BookingStatus) ([]*model.Booking, error)
	ListByUser(ctx context.Context, q database.TxQuerier, userID string, asHost bool) ([]*model.Booking, error)
	CountPromoUses(ctx context.Context, q database.TxQuerier, listingID, code string) (int, error)
	CountCouponUses(ctx context.Context, q database.TxQuerier, hostID, code string) (int, error)
	UpdateStatus(ctx context.Context, q database.TxQuerier, id string, status model.BookingStatus, at time.Time) error
}

// CouponRepositoryInterface defines data access for host coupons.
type CouponRepositoryInterface interface {
	GetByCode(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error)
	GetByCodeForUpdate(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error)
}

// AccountRepositoryInterface defines access to per-user balance and points totals.
type AccountRepositoryInterface interface {
	Get(ctx context.Context, q database.TxQuerier, userID string) (*model.Account, error)
	// LockForUpdate creates missing accounts and locks all of them in user-id order.
	LockForUpdate(ctx context.Context, q database.TxQuerier, userIDs ...string) (map[string]*model.Account, error)
}

// LedgerRepositoryInterface defines the append-only transaction log and balance postings.
type LedgerRepositoryInterface interface {
	// Post appends the posting and applies it to the balance. A repeated
	// idempotency key is a no-op and returns false. With requireFunds set, a
	// debit larger than the balance fails with ErrInsufficientBalance.
	Post(ctx context.Context, q database.TxQuerier, p model.Posting, requireFunds bool) (bool, error)
	Recent(ctx context.Context, q database.TxQuerier, userID string, limit int) ([]model.Transaction, error)
}

// PointsRepositoryInterface defines the points history and points balance.
type PointsRepositoryInterface interface {
	// Add appends a history row and applies it to the points total. A repeated
	// (user, action, action id) is a no-op and returns false.
	Add(ctx context.Context, q database.TxQuerier, e model.PointsEntry) (bool, error)
	Recent(ctx context.Context, q database.TxQuerier, userID string, limit int) ([]model.PointsEntry, error)
}

// PlatformLedgerRepositoryInterface records admin-facing reconciliation and revenue rows.
type PlatformLedgerRepositoryInterface interface {
	Record(ctx context.Context, q database.TxQuerier, e model.PlatformEntry) error
}

// OutboxRepositoryInterface enqueues advisory side effects in the caller's transaction.
type OutboxRepositoryInterface interface {
	Enqueue(ctx context.Context, q database.TxQuerier, ev *model.OutboxEvent) error
}

// PaymentProvider is the external capture provider.
type PaymentProvider interface {
	GetCapture(ctx context.Context, captureID string) (*model.Capture, error)
	RefundCapture(ctx context.Context, captureID string, amount int64) error
}

// Stores bundles the repositories the services share.
type Stores struct {
	Listings ListingRepositoryInterface
	Bookings BookingRepositoryInterface
	Coupons  CouponRepositoryInterface
	Accounts AccountRepositoryInterface
	Ledger   LedgerRepositoryInterface
	Points   PointsRepositoryInterface
	Platform PlatformLedgerRepositoryInterface
	Outbox   OutboxRepositoryInterface
}
