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

// PointsRepository keeps the points history and the points total.
type PointsRepository struct{}

// NewPointsRepository creates a new PointsRepository.
func NewPointsRepository() *PointsRepository {
	return &PointsRepository{}
}

// Add records a points change once per (user, action, action id) and applies
// it to the total. Returns false when the entry already exists.
// A deduction below zero fails with service.ErrInsufficientPoints.
// Must be called within a transaction; the account row must exist.
func (r *PointsRepository) Add(ctx context.Context, q database.TxQuerier, e model.PointsEntry) (bool, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO points_history (user_id, points, action, action_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, action, action_id) DO NOTHING
		 RETURNING id`,
		e.UserID, e.Points, string(e.Action), e.ActionID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert points entry %s/%s: %w", e.Action, e.ActionID, err)
	}

	tag, err := q.Exec(ctx,
		`UPDATE accounts SET points = points + $2, updated_at = NOW()
		 WHERE user_id = $1 AND points + $2 >= 0`,
		e.UserID, e.Points)
	if err != nil {
		return false, fmt.Errorf("apply points %s/%s: %w", e.Action, e.ActionID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, service.ErrInsufficientPoints
	}
	return true, nil
}

// Recent returns the latest points entries for a user, newest first.
func (r *PointsRepository) Recent(ctx context.Context, q database.TxQuerier, userID string, limit int) ([]model.PointsEntry, error) {
	rows, err := q.Query(ctx,
		`SELECT id, user_id, points, action, action_id, created_at
		 FROM points_history WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list points history for %s: %w", userID, err)
	}
	defer rows.Close()

	entries := []model.PointsEntry{}
	for rows.Next() {
		var e model.PointsEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Points, &e.Action, &e.ActionID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan points entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points history: %w", err)
	}
	return entries, nil
}
