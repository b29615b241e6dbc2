package model

import "time"

// PointsAction names what earned or spent points.
type PointsAction string

const (
	PointsActionBooking         PointsAction = "booking"
	PointsActionReview          PointsAction = "review"
	PointsActionBookingAccepted PointsAction = "booking_accepted"
	PointsActionRewardClaim     PointsAction = "reward_claim"
)

// PointsEntry is one row of a user's points history.
type PointsEntry struct {
	ID        int64        `json:"id"`
	UserID    string       `json:"-"`
	Points    int          `json:"points"`
	Action    PointsAction `json:"action"`
	ActionID  string       `json:"action_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// PointsResponse is returned by GET /api/points.
type PointsResponse struct {
	Points           int           `json:"points"`
	ClaimableRewards int           `json:"claimable_rewards"`
	History          []PointsEntry `json:"history"`
}

// ClaimRewardResponse is returned by POST /api/points/claim.
type ClaimRewardResponse struct {
	RewardsClaimed  int   `json:"rewards_claimed"`
	RewardAmount    int64 `json:"reward_amount_cents"`
	RemainingPoints int   `json:"remaining_points"`
}

// ReviewPointsRequest is the DTO for POST /api/points/reviews.
type ReviewPointsRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

// AwardResult reports whether an award was applied or already recorded.
type AwardResult struct {
	Awarded bool `json:"awarded"`
	Points  int  `json:"points"`
}
