package model

import "time"

// TransactionType tags a ledger posting.
type TransactionType string

const (
	TxBookingPayment            TransactionType = "booking_payment"
	TxBookingEarnings           TransactionType = "booking_earnings"
	TxBookingRefund             TransactionType = "booking_refund"
	TxBookingCancellationRefund TransactionType = "booking_cancellation_refund"
	TxBookingCancelled          TransactionType = "booking_cancelled"
	TxRewardClaim               TransactionType = "reward_claim"
)

// TransactionStatusCompleted is the only status postings are written with today.
const TransactionStatusCompleted = "completed"

// Transaction is one posting against a user's balance. Amount is signed cents:
// credits are positive, debits negative.
type Transaction struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"-"`
	Type           TransactionType `json:"type"`
	Amount         int64           `json:"amount_cents"`
	BookingID      *string         `json:"booking_id,omitempty"`
	Status         string          `json:"status"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Posting is a balance change to apply inside a transaction.
type Posting struct {
	UserID         string
	Type           TransactionType
	Amount         int64
	BookingID      *string
	IdempotencyKey string
}

// Account is a user's wallet and loyalty totals.
type Account struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance_cents"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletResponse is returned by GET /api/wallet.
type WalletResponse struct {
	Balance      int64         `json:"balance_cents"`
	Transactions []Transaction `json:"transactions"`
}

// PlatformEntryKind tags a platform-side ledger row.
type PlatformEntryKind string

const (
	PlatformBookingPayment    PlatformEntryKind = "booking_payment"
	PlatformServiceFeeRevenue PlatformEntryKind = "service_fee_revenue"
)

// PlatformEntry is an admin-facing reconciliation or revenue row.
type PlatformEntry struct {
	Kind           PlatformEntryKind
	Amount         int64
	BookingID      *string
	IdempotencyKey string
}

// CaptureStatusCompleted is the provider's terminal success state.
const CaptureStatusCompleted = "COMPLETED"

// Capture is a payment provider capture as seen by checkout.
type Capture struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount_cents"`
	Currency string `json:"currency"`
}
