package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/stays-ledger/internal/service"
)

func TestListingRepository_GetByID(t *testing.T) {
	maxUses := 5
	q := &mockQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{values: []any{"l-1", "host-1", "Loft", int64(9000), 4, strPtr("SUMMER"), 30, &maxUses}}
		},
	}

	l, err := NewListingRepository().GetByID(context.Background(), q, "l-1")

	require.NoError(t, err)
	assert.Equal(t, "host-1", l.HostID)
	assert.Equal(t, int64(9000), l.PricePerNight)
	require.NotNil(t, l.PromoMaxUses)
	assert.Equal(t, 5, *l.PromoMaxUses)
	assert.NotContains(t, q.calls[0].sql, "FOR UPDATE")
}

func TestListingRepository_GetForUpdate_NotFound(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{err: pgx.ErrNoRows}
		},
	}

	_, err := NewListingRepository().GetForUpdate(context.Background(), q, "missing")

	assert.ErrorIs(t, err, service.ErrListingNotFound)
	assert.Contains(t, q.calls[0].sql, "FOR UPDATE")
}

func TestListingRepository_BlockedDates(t *testing.T) {
	d1 := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	q := &mockQuerier{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &mockRows{data: [][]any{{d1}, {d2}}}, nil
		},
	}

	days, err := NewListingRepository().BlockedDates(context.Background(), q, "l-1")

	require.NoError(t, err)
	assert.Equal(t, []time.Time{d1, d2}, days)
}

func TestListingRepository_BlockedDates_Error(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, errConnRefused
		},
	}

	_, err := NewListingRepository().BlockedDates(context.Background(), q, "l-1")

	assert.ErrorIs(t, err, errConnRefused)
}
