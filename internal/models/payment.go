package models

import "time"

// PaymentStatus tracks the gateway-reported lifecycle of a payment intent.
type PaymentStatus string

const (
	PaymentStatusCreated PaymentStatus = "CREATED"
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
	PaymentStatusExpired PaymentStatus = "EXPIRED"
	// PaymentStatusSuperseded is registry-local: a newer intent replaced this
	// one before it reached a gateway terminal state.
	PaymentStatusSuperseded PaymentStatus = "SUPERSEDED"
)

// Terminal reports whether no further gateway transitions are expected.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusSuperseded:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodCard  PaymentMethod = "CARD"
	PaymentMethodGcash PaymentMethod = "GCASH"
	PaymentMethodMaya  PaymentMethod = "MAYA"
)

// PaymentMode is how the payer reaches the gateway checkout: a whole-context
// redirect or a secondary popup window polled from the primary context.
// Exactly one mode is active per intent.
type PaymentMode string

const (
	PaymentModeRedirect PaymentMode = "REDIRECT"
	PaymentModePopup    PaymentMode = "POPUP"
)

// PaymentIntent is the local registry record of a gateway payment. ID is the
// gateway-issued payment id. The registry enforces at most one non-terminal
// intent per applicant.
type PaymentIntent struct {
	ID             string        `db:"id" json:"id"`
	ApplicantID    string        `db:"applicant_id" json:"applicant_id"`
	BatchID        *string       `db:"batch_id" json:"batch_id,omitempty"`
	Amount         float64       `db:"amount" json:"amount"`
	Method         PaymentMethod `db:"method" json:"method"`
	Mode           PaymentMode   `db:"mode" json:"mode"`
	Status         PaymentStatus `db:"status" json:"status"`
	RedirectURL    *string       `db:"redirect_url" json:"redirect_url,omitempty"`
	MockPaymentURL *string       `db:"mock_payment_url" json:"mock_payment_url,omitempty"`
	Description    string        `db:"description" json:"description"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// ResumeToken is the durable cross-navigation record written before a
// redirect-mode checkout navigates away. Losing it mid-flow strands an
// already-created intent, so it is stored with an explicit TTL rather than
// as loose key/value pairs.
type ResumeToken struct {
	PaymentID   string    `json:"payment_id"`
	ApplicantID string    `json:"applicant_id"`
	BatchID     string    `json:"batch_id"`
	CreatedAt   time.Time `json:"created_at"`
}
