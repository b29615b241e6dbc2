package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// DB is the pool the services read from and start transactions on.
// *pgxpool.Pool satisfies it.
type DB interface {
	database.TxBeginner
	database.TxQuerier
}

// Clock returns the current instant. Services default to time.Now.
type Clock func() time.Time

// advisory runs fn under a savepoint of tx. A failure is logged and rolled
// back to the savepoint; the surrounding state change still commits.
func advisory(ctx context.Context, tx pgx.Tx, what string, fn func(q database.TxQuerier) error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		log.Warn().Err(err).Str("effect", what).Msg("advisory effect skipped: savepoint failed")
		return
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		log.Warn().Err(err).Str("effect", what).Msg("advisory effect failed")
		return
	}
	if err := sp.Commit(ctx); err != nil {
		log.Warn().Err(err).Str("effect", what).Msg("advisory effect failed to release savepoint")
	}
}

func idempotencyKey(scope, id, what string) string {
	return fmt.Sprintf("%s:%s:%s", scope, id, what)
}
