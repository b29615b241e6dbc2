package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/availability"
	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/policy"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// RecentPointsLimit is how many history entries the points view shows.
const RecentPointsLimit = 50

// PointsService accrues loyalty points and redeems them for balance credit.
type PointsService struct {
	db     DB
	stores Stores
	now    Clock
}

// NewPointsService creates a new PointsService.
func NewPointsService(db DB, stores Stores) *PointsService {
	return &PointsService{db: db, stores: stores, now: time.Now}
}

// AwardPoints adds points to a user once per (action, actionID).
// The account row is locked for the duration, so concurrent awards serialize.
func (s *PointsService) AwardPoints(ctx context.Context, userID string, points int, action model.PointsAction, actionID string) (*model.AwardResult, error) {
	if userID == "" || actionID == "" || points <= 0 {
		return nil, ErrInvalidRequest
	}

	var applied bool
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.stores.Accounts.LockForUpdate(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		applied, err = s.stores.Points.Add(ctx, tx, model.PointsEntry{
			UserID:   userID,
			Points:   points,
			Action:   action,
			ActionID: actionID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("award points: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("action", string(action)).
		Str("action_id", actionID).
		Int("points", points).
		Bool("applied", applied).
		Msg("points awarded")

	return &model.AwardResult{Awarded: applied, Points: points}, nil
}

// AwardReview grants the review bonus to the guest of a completed stay, once
// per booking.
func (s *PointsService) AwardReview(ctx context.Context, userID, bookingID string) (*model.AwardResult, error) {
	if userID == "" || bookingID == "" {
		return nil, ErrInvalidRequest
	}

	b, err := s.stores.Bookings.GetByID(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != userID {
		return nil, ErrForbidden
	}
	if b.EffectiveStatus(availability.Day(s.now())) != model.BookingStatusCompleted {
		return nil, ErrNotReviewable
	}

	return s.AwardPoints(ctx, userID, policy.ReviewPoints, model.PointsActionReview, b.ID)
}

// ClaimReward redeems every whole reward the user's points cover in one step:
// floor(points / 300) rewards, each worth $50 of balance credit, posted as a
// single reward_claim transaction.
// Returns ErrInsufficientPoints when not even one reward is covered.
func (s *PointsService) ClaimReward(ctx context.Context, userID string) (*model.ClaimRewardResponse, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	var resp model.ClaimRewardResponse
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		accounts, err := s.stores.Accounts.LockForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		account := accounts[userID]

		rewards := policy.RewardsFor(account.Points)
		if rewards == 0 {
			return ErrInsufficientPoints
		}
		spent := rewards * policy.PointsForReward
		amount := int64(rewards) * policy.RewardAmountCents
		claimID := uuid.NewString()

		if _, err := s.stores.Points.Add(ctx, tx, model.PointsEntry{
			UserID:   userID,
			Points:   -spent,
			Action:   model.PointsActionRewardClaim,
			ActionID: claimID,
		}); err != nil {
			return err
		}

		if _, err := s.stores.Ledger.Post(ctx, tx, model.Posting{
			UserID:         userID,
			Type:           model.TxRewardClaim,
			Amount:         amount,
			IdempotencyKey: idempotencyKey("reward", claimID, "credit"),
		}, false); err != nil {
			return err
		}

		resp = model.ClaimRewardResponse{
			RewardsClaimed:  rewards,
			RewardAmount:    amount,
			RemainingPoints: account.Points - spent,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Int("rewards", resp.RewardsClaimed).
		Int64("amount_cents", resp.RewardAmount).
		Msg("rewards claimed")

	return &resp, nil
}

// Points returns the points total, the recent history and how many rewards are claimable.
func (s *PointsService) Points(ctx context.Context, userID string) (*model.PointsResponse, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	account, err := s.stores.Accounts.Get(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	history, err := s.stores.Points.Recent(ctx, s.db, userID, RecentPointsLimit)
	if err != nil {
		return nil, fmt.Errorf("get points history: %w", err)
	}

	return &model.PointsResponse{
		Points:           account.Points,
		ClaimableRewards: policy.RewardsFor(account.Points),
		History:          history,
	}, nil
}
