package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/service"
	"github.com/fairyhunter13/stays-ledger/internal/validator"
)

// mockLedgerService is a mock implementation of LedgerServiceInterface.
type mockLedgerService struct {
	walletFn func(ctx context.Context, userID string) (*model.WalletResponse, error)
}

func (m *mockLedgerService) Wallet(ctx context.Context, userID string) (*model.WalletResponse, error) {
	return m.walletFn(ctx, userID)
}

// mockPointsService is a mock implementation of PointsServiceInterface.
type mockPointsService struct {
	pointsFn func(ctx context.Context, userID string) (*model.PointsResponse, error)
	claimFn  func(ctx context.Context, userID string) (*model.ClaimRewardResponse, error)
	reviewFn func(ctx context.Context, userID, bookingID string) (*model.AwardResult, error)
}

func (m *mockPointsService) Points(ctx context.Context, userID string) (*model.PointsResponse, error) {
	return m.pointsFn(ctx, userID)
}

func (m *mockPointsService) ClaimReward(ctx context.Context, userID string) (*model.ClaimRewardResponse, error) {
	return m.claimFn(ctx, userID)
}

func (m *mockPointsService) AwardReview(ctx context.Context, userID, bookingID string) (*model.AwardResult, error) {
	return m.reviewFn(ctx, userID, bookingID)
}

func setupAccountTestApp(ledger *mockLedgerService, points *mockPointsService) *fiber.App {
	app := fiber.New()
	h := NewAccountHandler(ledger, points, validator.New())
	api := app.Group("/api", asUser("user_001"))
	api.Get("/wallet", h.Wallet)
	api.Get("/points", h.Points)
	api.Post("/points/claim", h.ClaimReward)
	api.Post("/points/reviews", h.AwardReview)
	return app
}

func TestWallet(t *testing.T) {
	ledger := &mockLedgerService{
		walletFn: func(ctx context.Context, userID string) (*model.WalletResponse, error) {
			assert.Equal(t, "user_001", userID)
			return &model.WalletResponse{
				Balance:      12600,
				Transactions: []model.Transaction{{ID: 1, Type: model.TxBookingCancellationRefund, Amount: 12600}},
			}, nil
		},
	}
	app := setupAccountTestApp(ledger, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/wallet", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var wallet model.WalletResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wallet))
	assert.Equal(t, int64(12600), wallet.Balance)
	require.Len(t, wallet.Transactions, 1)
	assert.Equal(t, model.TxBookingCancellationRefund, wallet.Transactions[0].Type)
}

func TestPoints(t *testing.T) {
	points := &mockPointsService{
		pointsFn: func(ctx context.Context, userID string) (*model.PointsResponse, error) {
			return &model.PointsResponse{Points: 650, ClaimableRewards: 2, History: []model.PointsEntry{}}, nil
		},
	}
	app := setupAccountTestApp(nil, points)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/points", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out model.PointsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 650, out.Points)
	assert.Equal(t, 2, out.ClaimableRewards)
}

func TestClaimReward(t *testing.T) {
	points := &mockPointsService{
		claimFn: func(ctx context.Context, userID string) (*model.ClaimRewardResponse, error) {
			return &model.ClaimRewardResponse{RewardsClaimed: 2, RewardAmount: 10000, RemainingPoints: 50}, nil
		},
	}
	app := setupAccountTestApp(nil, points)

	resp := postJSON(t, app, "/api/points/claim", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out model.ClaimRewardResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.RewardsClaimed)
	assert.Equal(t, int64(10000), out.RewardAmount)
	assert.Equal(t, 50, out.RemainingPoints)
}

func TestClaimReward_InsufficientPoints(t *testing.T) {
	points := &mockPointsService{
		claimFn: func(ctx context.Context, userID string) (*model.ClaimRewardResponse, error) {
			return nil, service.ErrInsufficientPoints
		},
	}
	app := setupAccountTestApp(nil, points)

	resp := postJSON(t, app, "/api/points/claim", "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient points", decodeError(t, resp))
}

func TestAwardReview(t *testing.T) {
	const bookingID = "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f"
	calls := 0
	points := &mockPointsService{
		reviewFn: func(ctx context.Context, userID, id string) (*model.AwardResult, error) {
			calls++
			assert.Equal(t, "user_001", userID)
			assert.Equal(t, bookingID, id)
			return &model.AwardResult{Awarded: calls == 1, Points: 50}, nil
		},
	}
	app := setupAccountTestApp(nil, points)

	resp := postJSON(t, app, "/api/points/reviews", `{"booking_id":"`+bookingID+`"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/points/reviews", `{"booking_id":"`+bookingID+`"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "repeat award is acknowledged without creating anything")

	resp = postJSON(t, app, "/api/points/reviews", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request: booking_id is required", decodeError(t, resp))

	resp = postJSON(t, app, "/api/points/reviews", `{"booking_id":"r-1"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request: booking_id is invalid", decodeError(t, resp))
	assert.Equal(t, 2, calls, "malformed ids never reach the service")
}

func TestAwardReview_Refused(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"caller is not the guest", service.ErrForbidden, fiber.StatusForbidden, "not allowed to act on this booking"},
		{"stay not completed", service.ErrNotReviewable, fiber.StatusConflict, "booking cannot be reviewed until the stay is completed"},
		{"unknown booking", service.ErrBookingNotFound, fiber.StatusNotFound, "booking not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := &mockPointsService{
				reviewFn: func(ctx context.Context, userID, bookingID string) (*model.AwardResult, error) {
					return nil, tt.err
				},
			}
			app := setupAccountTestApp(nil, points)

			resp := postJSON(t, app, "/api/points/reviews", `{"booking_id":"6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.message, decodeError(t, resp))
		})
	}
}
