package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// memState is the in-memory database behind the fake repositories.
type memState struct {
	listings map[string]model.Listing
	blocked  map[string][]time.Time
	bookings map[string]model.Booking
	coupons  map[string]model.Coupon
	accounts map[string]model.Account

	transactions []model.Transaction
	txKeys       map[string]bool
	points       []model.PointsEntry
	pointKeys    map[string]bool
	platform     []model.PlatformEntry
	platformKeys map[string]bool
	outbox       []model.OutboxEvent
	outboxKeys   map[string]bool
}

func newMemState() *memState {
	return &memState{
		listings:     map[string]model.Listing{},
		blocked:      map[string][]time.Time{},
		bookings:     map[string]model.Booking{},
		coupons:      map[string]model.Coupon{},
		accounts:     map[string]model.Account{},
		txKeys:       map[string]bool{},
		pointKeys:    map[string]bool{},
		platformKeys: map[string]bool{},
		outboxKeys:   map[string]bool{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.blocked {
		c.blocked[k] = append([]time.Time(nil), v...)
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.transactions = append([]model.Transaction(nil), s.transactions...)
	c.points = append([]model.PointsEntry(nil), s.points...)
	c.platform = append([]model.PlatformEntry(nil), s.platform...)
	c.outbox = append([]model.OutboxEvent(nil), s.outbox...)
	for k := range s.txKeys {
		c.txKeys[k] = true
	}
	for k := range s.pointKeys {
		c.pointKeys[k] = true
	}
	for k := range s.platformKeys {
		c.platformKeys[k] = true
	}
	for k := range s.outboxKeys {
		c.outboxKeys[k] = true
	}
	return c
}

// memDB serializes transactions, standing in for row locks, and rolls back
// to snapshots on Rollback, including savepoints.
type memDB struct {
	txMu   sync.Mutex
	dataMu sync.Mutex
	state  *memState

	// failures injected per operation name, e.g. "outbox", "ledger", "insert".
	failures map[string]error
}

func newMemDB() *memDB {
	return &memDB{state: newMemState(), failures: map[string]error{}}
}

func (db *memDB) fail(op string, err error) {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	db.failures[op] = err
}

// with runs fn on the state under the data lock, failing first if op has an injected error.
func (db *memDB) with(op string, fn func(s *memState) error) error {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	if err := db.failures[op]; err != nil {
		return err
	}
	return fn(db.state)
}

func (db *memDB) failure(op string) error {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return db.failures[op]
}

func (db *memDB) snapshot() *memState {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return db.state.clone()
}

func (db *memDB) restore(s *memState) {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	db.state = s
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := db.failure("begin"); err != nil {
		return nil, err
	}
	db.txMu.Lock()
	return &memTx{db: db, snap: db.snapshot()}, nil
}

func (db *memDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *memDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

func (db *memDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

// memTx is a transaction or, with parent set, a savepoint.
type memTx struct {
	db     *memDB
	parent *memTx
	snap   *memState
	done   bool
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := t.db.failure("savepoint"); err != nil {
		return nil, err
	}
	return &memTx{db: t.db, parent: t, snap: t.db.snapshot()}, nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if t.parent == nil {
		t.db.txMu.Unlock()
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.restore(t.snap)
	if t.parent == nil {
		t.db.txMu.Unlock()
	}
	return nil
}

func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *memTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

func (t *memTx) Conn() *pgx.Conn { return nil }

// memListings implements ListingRepositoryInterface.
type memListings struct{ db *memDB }

func (r memListings) GetByID(ctx context.Context, q database.TxQuerier, id string) (*model.Listing, error) {
	var out *model.Listing
	err := r.db.with("listing", func(s *memState) error {
		l, ok := s.listings[id]
		if !ok {
			return ErrListingNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (r memListings) GetForUpdate(ctx context.Context, q database.TxQuerier, id string) (*model.Listing, error) {
	return r.GetByID(ctx, q, id)
}

func (r memListings) BlockedDates(ctx context.Context, q database.TxQuerier, listingID string) ([]time.Time, error) {
	var out []time.Time
	err := r.db.with("blocked", func(s *memState) error {
		out = append(out, s.blocked[listingID]...)
		return nil
	})
	return out, err
}

// memBookings implements BookingRepositoryInterface.
type memBookings struct{ db *memDB }

func (r memBookings) Insert(ctx context.Context, q database.TxQuerier, b *model.Booking) error {
	return r.db.with("insert", func(s *memState) error {
		if b.ExternalPaymentID != nil {
			for _, other := range s.bookings {
				if other.ExternalPaymentID != nil && *other.ExternalPaymentID == *b.ExternalPaymentID {
					return fmt.Errorf("insert booking: %w", ErrPaymentAlreadyUsed)
				}
			}
		}
		s.bookings[b.ID] = *b
		return nil
	})
}

func (r memBookings) GetByID(ctx context.Context, q database.TxQuerier, id string) (*model.Booking, error) {
	var out *model.Booking
	err := r.db.with("booking", func(s *memState) error {
		b, ok := s.bookings[id]
		if !ok {
			return ErrBookingNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (r memBookings) GetForUpdate(ctx context.Context, q database.TxQuerier, id string) (*model.Booking, error) {
	return r.GetByID(ctx, q, id)
}

func (r memBookings) GetByExternalPaymentID(ctx context.Context, q database.TxQuerier, paymentID string) (*model.Booking, error) {
	var out *model.Booking
	err := r.db.with("booking", func(s *memState) error {
		for _, b := range s.bookings {
			if b.ExternalPaymentID != nil && *b.ExternalPaymentID == paymentID {
				out = &b
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r memBookings) ListByListing(ctx context.Context, q database.TxQuerier, listingID string, statuses ...model.BookingStatus) ([]*model.Booking, error) {
	return r.list(func(b model.Booking) bool {
		if b.ListingID != listingID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, st := range statuses {
			if b.Status == st {
				return true
			}
		}
		return false
	})
}

func (r memBookings) ListByUser(ctx context.Context, q database.TxQuerier, userID string, asHost bool) ([]*model.Booking, error) {
	return r.list(func(b model.Booking) bool {
		if asHost {
			return b.HostID == userID
		}
		return b.GuestID == userID
	})
}

func (r memBookings) list(match func(model.Booking) bool) ([]*model.Booking, error) {
	out := []*model.Booking{}
	err := r.db.with("list", func(s *memState) error {
		for _, b := range s.bookings {
			if match(b) {
				b := b
				out = append(out, &b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r memBookings) count(match func(model.Booking) bool) (int, error) {
	list, err := r.list(match)
	return len(list), err
}

func (r memBookings) CountPromoUses(ctx context.Context, q database.TxQuerier, listingID, code string) (int, error) {
	return r.count(func(b model.Booking) bool {
		return b.ListingID == listingID && b.CouponCode != nil && strings.EqualFold(*b.CouponCode, code)
	})
}

func (r memBookings) CountCouponUses(ctx context.Context, q database.TxQuerier, hostID, code string) (int, error) {
	return r.count(func(b model.Booking) bool {
		return b.HostID == hostID && b.CouponCode != nil && strings.EqualFold(*b.CouponCode, code)
	})
}

func (r memBookings) UpdateStatus(ctx context.Context, q database.TxQuerier, id string, status model.BookingStatus, at time.Time) error {
	return r.db.with("update", func(s *memState) error {
		b, ok := s.bookings[id]
		if !ok {
			return ErrBookingNotFound
		}
		if status == model.BookingStatusConfirmed && b.PaymentStatus != model.PaymentStatusPaid {
			return ErrUnpaid
		}
		b.Status = status
		b.UpdatedAt = &at
		if status == model.BookingStatusCancelled {
			b.CancelledAt = &at
		}
		s.bookings[id] = b
		return nil
	})
}

// memCoupons implements CouponRepositoryInterface.
type memCoupons struct{ db *memDB }

func (r memCoupons) GetByCode(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error) {
	var out *model.Coupon
	err := r.db.with("coupon", func(s *memState) error {
		for _, c := range s.coupons {
			if strings.EqualFold(c.Code, code) {
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r memCoupons) GetByCodeForUpdate(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error) {
	return r.GetByCode(ctx, q, code)
}

// memAccounts implements AccountRepositoryInterface.
type memAccounts struct{ db *memDB }

func (r memAccounts) Get(ctx context.Context, q database.TxQuerier, userID string) (*model.Account, error) {
	var out model.Account
	err := r.db.with("account", func(s *memState) error {
		out = s.accounts[userID]
		out.UserID = userID
		return nil
	})
	return &out, err
}

func (r memAccounts) LockForUpdate(ctx context.Context, q database.TxQuerier, userIDs ...string) (map[string]*model.Account, error) {
	out := map[string]*model.Account{}
	err := r.db.with("lock_accounts", func(s *memState) error {
		for _, id := range userIDs {
			a, ok := s.accounts[id]
			if !ok {
				a = model.Account{UserID: id}
				s.accounts[id] = a
			}
			out[id] = &a
		}
		return nil
	})
	return out, err
}

// memLedger implements LedgerRepositoryInterface.
type memLedger struct{ db *memDB }

func (r memLedger) Post(ctx context.Context, q database.TxQuerier, p model.Posting, requireFunds bool) (bool, error) {
	var applied bool
	err := r.db.with("ledger", func(s *memState) error {
		if s.txKeys[p.IdempotencyKey] {
			return nil
		}
		a := s.accounts[p.UserID]
		a.UserID = p.UserID
		if requireFunds && a.Balance+p.Amount < 0 {
			return ErrInsufficientBalance
		}
		a.Balance += p.Amount
		s.accounts[p.UserID] = a
		s.txKeys[p.IdempotencyKey] = true
		s.transactions = append(s.transactions, model.Transaction{
			ID:             int64(len(s.transactions) + 1),
			UserID:         p.UserID,
			Type:           p.Type,
			Amount:         p.Amount,
			BookingID:      p.BookingID,
			Status:         model.TransactionStatusCompleted,
			IdempotencyKey: p.IdempotencyKey,
		})
		applied = true
		return nil
	})
	return applied, err
}

func (r memLedger) Recent(ctx context.Context, q database.TxQuerier, userID string, limit int) ([]model.Transaction, error) {
	out := []model.Transaction{}
	err := r.db.with("ledger_recent", func(s *memState) error {
		for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
			if s.transactions[i].UserID == userID {
				out = append(out, s.transactions[i])
			}
		}
		return nil
	})
	return out, err
}

// memPoints implements PointsRepositoryInterface.
type memPoints struct{ db *memDB }

func (r memPoints) Add(ctx context.Context, q database.TxQuerier, e model.PointsEntry) (bool, error) {
	var applied bool
	err := r.db.with("points", func(s *memState) error {
		key := e.UserID + "|" + string(e.Action) + "|" + e.ActionID
		if s.pointKeys[key] {
			return nil
		}
		a := s.accounts[e.UserID]
		a.UserID = e.UserID
		if a.Points+e.Points < 0 {
			return ErrInsufficientPoints
		}
		a.Points += e.Points
		s.accounts[e.UserID] = a
		s.pointKeys[key] = true
		e.ID = int64(len(s.points) + 1)
		s.points = append(s.points, e)
		applied = true
		return nil
	})
	return applied, err
}

func (r memPoints) Recent(ctx context.Context, q database.TxQuerier, userID string, limit int) ([]model.PointsEntry, error) {
	out := []model.PointsEntry{}
	err := r.db.with("points_recent", func(s *memState) error {
		for i := len(s.points) - 1; i >= 0 && len(out) < limit; i-- {
			if s.points[i].UserID == userID {
				out = append(out, s.points[i])
			}
		}
		return nil
	})
	return out, err
}

// memPlatform implements PlatformLedgerRepositoryInterface.
type memPlatform struct{ db *memDB }

func (r memPlatform) Record(ctx context.Context, q database.TxQuerier, e model.PlatformEntry) error {
	return r.db.with("platform", func(s *memState) error {
		if s.platformKeys[e.IdempotencyKey] {
			return nil
		}
		s.platformKeys[e.IdempotencyKey] = true
		s.platform = append(s.platform, e)
		return nil
	})
}

// memOutbox implements OutboxRepositoryInterface.
type memOutbox struct{ db *memDB }

func (r memOutbox) Enqueue(ctx context.Context, q database.TxQuerier, ev *model.OutboxEvent) error {
	return r.db.with("outbox", func(s *memState) error {
		if s.outboxKeys[ev.IdempotencyKey] {
			return nil
		}
		s.outboxKeys[ev.IdempotencyKey] = true
		s.outbox = append(s.outbox, *ev)
		return nil
	})
}

func (db *memDB) stores() Stores {
	return Stores{
		Listings: memListings{db},
		Bookings: memBookings{db},
		Coupons:  memCoupons{db},
		Accounts: memAccounts{db},
		Ledger:   memLedger{db},
		Points:   memPoints{db},
		Platform: memPlatform{db},
		Outbox:   memOutbox{db},
	}
}

// Accessors used by assertions.

func (db *memDB) account(userID string) model.Account {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return db.state.accounts[userID]
}

func (db *memDB) booking(id string) model.Booking {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return db.state.bookings[id]
}

func (db *memDB) bookingCount() int {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return len(db.state.bookings)
}

func (db *memDB) transactionsFor(userID string) []model.Transaction {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	var out []model.Transaction
	for _, tx := range db.state.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func (db *memDB) platformEntries() []model.PlatformEntry {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return append([]model.PlatformEntry(nil), db.state.platform...)
}

func (db *memDB) outboxEvents() []model.OutboxEvent {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return append([]model.OutboxEvent(nil), db.state.outbox...)
}

func (db *memDB) putListing(l model.Listing) {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	db.state.listings[l.ID] = l
}

func (db *memDB) putBooking(b model.Booking) {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	db.state.bookings[b.ID] = b
}

func (db *memDB) putCoupon(c model.Coupon) {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	db.state.coupons[c.Code] = c
}

func (db *memDB) putAccount(a model.Account) {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	db.state.accounts[a.UserID] = a
}

func (db *memDB) block(listingID string, days ...time.Time) {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	db.state.blocked[listingID] = append(db.state.blocked[listingID], days...)
}

var errInjected = errors.New("injected failure")
