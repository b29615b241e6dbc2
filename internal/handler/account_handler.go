package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/model"
)

// LedgerServiceInterface defines wallet reads.
type LedgerServiceInterface interface {
	Wallet(ctx context.Context, userID string) (*model.WalletResponse, error)
}

// PointsServiceInterface defines points reads, reward claims and review awards.
type PointsServiceInterface interface {
	Points(ctx context.Context, userID string) (*model.PointsResponse, error)
	ClaimReward(ctx context.Context, userID string) (*model.ClaimRewardResponse, error)
	AwardReview(ctx context.Context, userID, bookingID string) (*model.AwardResult, error)
}

// AccountHandler handles the authenticated user's wallet and points.
type AccountHandler struct {
	ledger    LedgerServiceInterface
	points    PointsServiceInterface
	validator *validator.Validate
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger LedgerServiceInterface, points PointsServiceInterface, v *validator.Validate) *AccountHandler {
	return &AccountHandler{ledger: ledger, points: points, validator: v}
}

// Wallet handles GET /api/wallet.
func (h *AccountHandler) Wallet(c *fiber.Ctx) error {
	wallet, err := h.ledger.Wallet(c.Context(), userIDFrom(c))
	if err != nil {
		return respondError(c, err, "failed to get wallet")
	}
	return c.JSON(wallet)
}

// Points handles GET /api/points.
func (h *AccountHandler) Points(c *fiber.Ctx) error {
	points, err := h.points.Points(c.Context(), userIDFrom(c))
	if err != nil {
		return respondError(c, err, "failed to get points")
	}
	return c.JSON(points)
}

// ClaimReward handles POST /api/points/claim.
func (h *AccountHandler) ClaimReward(c *fiber.Ctx) error {
	userID := userIDFrom(c)
	resp, err := h.points.ClaimReward(c.Context(), userID)
	if err != nil {
		return respondError(c, err, "failed to claim reward")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", userID).
		Int("rewards", resp.RewardsClaimed).
		Msg("reward claimed successfully")

	return c.JSON(resp)
}

// AwardReview handles POST /api/points/reviews. Only the guest of a completed
// stay is awarded, once per booking.
func (h *AccountHandler) AwardReview(c *fiber.Ctx) error {
	var req model.ReviewPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	resp, err := h.points.AwardReview(c.Context(), userIDFrom(c), req.BookingID)
	if err != nil {
		return respondError(c, err, "failed to award review points")
	}
	if !resp.Awarded {
		return c.Status(fiber.StatusOK).JSON(resp)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
