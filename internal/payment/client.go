// Package payment talks to the external capture provider that confirms
// guest card payments before a booking is written.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fairyhunter13/stays-ledger/internal/config"
	"github.com/fairyhunter13/stays-ledger/internal/model"
)

var (
	// ErrCaptureNotFound is returned when the provider has no capture with the given id.
	ErrCaptureNotFound = errors.New("capture not found")

	// ErrProvider is returned for any other non-success response.
	ErrProvider = errors.New("payment provider error")
)

// issueFullyRefunded is the provider's answer to refunding a capture twice.
const issueFullyRefunded = "CAPTURE_FULLY_REFUNDED"

// Client reads and refunds captures over the provider's REST API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	currency     string
}

// NewClient creates a new Client.
func NewClient(cfg config.PaymentConfig) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		currency:     cfg.Currency,
	}
}

type money struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount money  `json:"amount"`
}

type refundRequest struct {
	Amount money `json:"amount"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

// GetCapture fetches a capture by id.
func (c *Client) GetCapture(ctx context.Context, captureID string) (*model.Capture, error) {
	resp, err := c.do(ctx, http.MethodGet, c.captureURL(captureID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrCaptureNotFound
	default:
		return nil, providerError(resp)
	}

	var body captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	amount, err := ParseAmount(body.Amount.Value)
	if err != nil {
		return nil, err
	}

	return &model.Capture{
		ID:       body.ID,
		Status:   body.Status,
		Amount:   amount,
		Currency: body.Amount.CurrencyCode,
	}, nil
}

// RefundCapture returns amount cents of a capture to the payer. Refunding a
// capture that is already fully refunded succeeds.
func (c *Client) RefundCapture(ctx context.Context, captureID string, amount int64) error {
	payload, err := json.Marshal(refundRequest{Amount: money{
		Value:        FormatAmount(amount),
		CurrencyCode: c.currency,
	}})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, c.captureURL(captureID)+"/refund", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusNotFound:
		return ErrCaptureNotFound
	}

	perr := providerError(resp)
	if strings.Contains(perr.Error(), issueFullyRefunded) {
		return nil
	}
	return perr
}

func (c *Client) captureURL(captureID string) string {
	return c.baseURL + "/v2/payments/captures/" + url.PathEscape(captureID)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	return resp, nil
}

// providerError drains the body into an ErrProvider carrying the status and
// any issue codes the provider returned.
func providerError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Name == "" {
		return fmt.Errorf("%w: %s", ErrProvider, resp.Status)
	}
	issues := make([]string, 0, len(body.Details))
	for _, d := range body.Details {
		issues = append(issues, d.Issue)
	}
	return fmt.Errorf("%w: %s %s %s [%s]", ErrProvider, resp.Status, body.Name, body.Message, strings.Join(issues, ","))
}
