package client

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// PaymentRequirement is the billing service's answer to "does this approval
// need a paid transaction".
type PaymentRequirement struct {
	PaymentRequired   bool    `json:"payment_required"`
	EnrollmentFee     float64 `json:"enrollment_fee"`
	VouchersRemaining *int    `json:"vouchers_remaining,omitempty"`
}

// BillingClient calls the external payment-required check. Voucher pools are
// owned and decremented by the billing service, never by this service.
type BillingClient struct {
	http *resty.Client
}

// NewBillingClient constructs a BillingClient.
func NewBillingClient(cfg Config) *BillingClient {
	return &BillingClient{http: newRestyClient(cfg)}
}

// CheckPaymentRequired reports whether enrolling userID into batchID
// requires payment, and the fee when it does.
func (c *BillingClient) CheckPaymentRequired(ctx context.Context, batchID, userID string) (*PaymentRequirement, error) {
	var out PaymentRequirement
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"batch_id": batchID, "user_id": userID}).
		SetResult(&out).
		Post("/enrollments/payment-required")
	if err != nil {
		return nil, fmt.Errorf("payment-required check: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("payment-required check: status %d", resp.StatusCode())
	}
	return &out, nil
}
