package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/admissions-api/internal/models"
)

// CreateIntentRequest is the gateway payload for opening a payment intent.
type CreateIntentRequest struct {
	UserID      string  `json:"user_id"`
	BatchID     *string `json:"batch_id,omitempty"`
	Method      string  `json:"method"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// IntentReceipt is the gateway's answer to intent creation. Either
// RedirectURL or MockPaymentURL is set, never both.
type IntentReceipt struct {
	PaymentID      string
	RedirectURL    string
	MockPaymentURL string
}

// CashPaymentRequest records an over-the-counter payment synchronously.
type CashPaymentRequest struct {
	UserID  string  `json:"user_id"`
	BatchID string  `json:"batch_id"`
	Amount  float64 `json:"amount"`
}

// CashPaymentResult carries the settled cash payment reference.
type CashPaymentResult struct {
	PaymentID     string
	ReceiptNumber string
}

// GatewayClient talks to the external payment gateway.
type GatewayClient struct {
	http    *resty.Client
	baseURL string
}

// NewGatewayClient constructs a GatewayClient.
func NewGatewayClient(cfg Config) *GatewayClient {
	return &GatewayClient{http: newRestyClient(cfg), baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

// CreateIntent opens a payment intent. When the gateway flags mock mode
// without an explicit URL, the checkout URL is derived from the payment id.
func (c *GatewayClient) CreateIntent(ctx context.Context, req CreateIntentRequest) (*IntentReceipt, error) {
	var out struct {
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
		RedirectURL    string `json:"redirect_url"`
		Mock           bool   `json:"mock"`
		MockPaymentURL string `json:"mock_payment_url"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/payments")
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create payment intent: status %d", resp.StatusCode())
	}
	if out.Payment.ID == "" {
		return nil, fmt.Errorf("create payment intent: gateway returned no payment id")
	}

	receipt := &IntentReceipt{
		PaymentID:      out.Payment.ID,
		RedirectURL:    out.RedirectURL,
		MockPaymentURL: out.MockPaymentURL,
	}
	if out.Mock && receipt.MockPaymentURL == "" {
		receipt.MockPaymentURL = fmt.Sprintf("%s/payments/%s/mock", c.baseURL, out.Payment.ID)
	}
	return receipt, nil
}

// Verify fetches the gateway-reported status for a payment.
func (c *GatewayClient) Verify(ctx context.Context, paymentID string) (models.PaymentStatus, error) {
	var out struct {
		PaymentStatus string `json:"payment_status"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/payments/%s/verify", paymentID))
	if err != nil {
		return "", fmt.Errorf("verify payment %s: %w", paymentID, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("verify payment %s: status %d", paymentID, resp.StatusCode())
	}

	switch strings.ToLower(out.PaymentStatus) {
	case "paid":
		return models.PaymentStatusPaid, nil
	case "failed":
		return models.PaymentStatusFailed, nil
	case "expired":
		return models.PaymentStatusExpired, nil
	case "pending", "created":
		return models.PaymentStatusPending, nil
	default:
		return "", fmt.Errorf("verify payment %s: unknown status %q", paymentID, out.PaymentStatus)
	}
}

// ProcessCash settles an over-the-counter payment synchronously. No polling
// follows; the caller commits enrollment in the same request.
func (c *GatewayClient) ProcessCash(ctx context.Context, req CashPaymentRequest) (*CashPaymentResult, error) {
	var out struct {
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
		ReceiptNumber string `json:"receipt_number"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/payments/cash")
	if err != nil {
		return nil, fmt.Errorf("process cash payment: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("process cash payment: status %d", resp.StatusCode())
	}
	if out.Payment.ID == "" || out.ReceiptNumber == "" {
		return nil, fmt.Errorf("process cash payment: incomplete gateway response")
	}
	return &CashPaymentResult{PaymentID: out.Payment.ID, ReceiptNumber: out.ReceiptNumber}, nil
}
