// Package policy holds the money and loyalty rules applied by booking transitions.
package policy

import "time"

// Cancellation policy.
const (
	CoolingOffWindow     = 24 * time.Hour
	CoolingOffRefundRate = 70 // percent
)

// Points and rewards.
const (
	BookingPoints         = 110
	BookingAcceptedPoints = 110
	ReviewPoints          = 50

	PointsForReward   = 300
	RewardAmountCents = 5000
)

// CancellationRefund returns the refund for a guest cancellation. Within the
// cooling-off window after creation the guest gets 70% back, otherwise nothing.
// The window is anchored to createdAt, never to check-in.
func CancellationRefund(totalPrice int64, createdAt, at time.Time) int64 {
	if totalPrice <= 0 {
		return 0
	}
	if at.Sub(createdAt) <= CoolingOffWindow {
		return totalPrice * CoolingOffRefundRate / 100
	}
	return 0
}

// RewardsFor returns how many reward units a points balance can redeem.
func RewardsFor(points int) int {
	if points <= 0 {
		return 0
	}
	return points / PointsForReward
}
