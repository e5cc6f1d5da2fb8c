package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/client"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type paymentRequirementChecker interface {
	CheckPaymentRequired(ctx context.Context, batchID, userID string) (*client.PaymentRequirement, error)
}

// PaymentRequirement is the resolved answer for one (batch, applicant)
// pairing. FailedOpen marks results produced by the fail-open path so the
// operator-facing layer can surface them.
type PaymentRequirement struct {
	Required          bool    `json:"payment_required"`
	Fee               float64 `json:"enrollment_fee"`
	VouchersRemaining *int    `json:"vouchers_remaining,omitempty"`
	FailedOpen        bool    `json:"failed_open,omitempty"`
}

// PaymentRequirementService decides whether an approval needs a paid
// transaction. It is idempotent and side-effect free; each call supersedes
// the previous result as the operator changes batch selection.
type PaymentRequirementService struct {
	checker  paymentRequirementChecker
	failOpen bool
	logger   *zap.Logger
}

// NewPaymentRequirementService constructs the resolver. failOpen selects the
// behavior when the external check is unreachable: treat the approval as fee
// waived (legacy behavior, logged on every occurrence) or fail the step.
func NewPaymentRequirementService(checker paymentRequirementChecker, failOpen bool, logger *zap.Logger) *PaymentRequirementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentRequirementService{checker: checker, failOpen: failOpen, logger: logger}
}

// Resolve reports whether enrolling userID into batchID requires payment.
func (s *PaymentRequirementService) Resolve(ctx context.Context, batchID, userID string) (*PaymentRequirement, error) {
	res, err := s.checker.CheckPaymentRequired(ctx, batchID, userID)
	if err != nil {
		if !s.failOpen {
			return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, "payment requirement check failed")
		}
		s.logger.Warn("payment requirement check failed, failing open to no-payment-required",
			zap.String("batch_id", batchID),
			zap.String("user_id", userID),
			zap.Error(err))
		return &PaymentRequirement{Required: false, FailedOpen: true}, nil
	}

	return &PaymentRequirement{
		Required:          res.PaymentRequired,
		Fee:               res.EnrollmentFee,
		VouchersRemaining: res.VouchersRemaining,
	}, nil
}
