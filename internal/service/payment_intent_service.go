package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/client"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type intentRegistry interface {
	CreateSuperseding(ctx context.Context, intent *models.PaymentIntent) (*string, error)
	FindByID(ctx context.Context, id string) (*models.PaymentIntent, error)
	FindActiveByApplicant(ctx context.Context, applicantID string) (*models.PaymentIntent, error)
	FindLatestPaidByApplicant(ctx context.Context, applicantID string) (*models.PaymentIntent, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error
}

type intentGateway interface {
	CreateIntent(ctx context.Context, req client.CreateIntentRequest) (*client.IntentReceipt, error)
}

// CreateIntentRequest opens a gateway payment intent for an applicant. Cash
// is excluded: it settles synchronously through the cash flow and never
// creates a pending intent.
type CreateIntentRequest struct {
	ApplicantID string  `json:"applicant_id" validate:"required"`
	BatchID     string  `json:"batch_id" validate:"required"`
	Method      string  `json:"method" validate:"required,oneof=CARD GCASH MAYA"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description"`
}

// PaymentIntentService creates and tracks gateway payment intents. It
// enforces intent supersession: creating a new intent invalidates any prior
// non-terminal one for the same applicant.
type PaymentIntentService struct {
	registry  intentRegistry
	gateway   intentGateway
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentIntentService constructs PaymentIntentService.
func NewPaymentIntentService(registry intentRegistry, gateway intentGateway, validate *validator.Validate, logger *zap.Logger) *PaymentIntentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentIntentService{registry: registry, gateway: gateway, validator: validate, logger: logger}
}

// Create opens an intent with the gateway and registers it locally,
// superseding any prior non-terminal intent. Exactly one checkout mode is
// resolved: a redirect URL wins over a mock URL when the gateway sends both.
func (s *PaymentIntentService) Create(ctx context.Context, req CreateIntentRequest) (*models.PaymentIntent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment intent payload")
	}

	receipt, err := s.gateway.CreateIntent(ctx, client.CreateIntentRequest{
		UserID:      req.ApplicantID,
		BatchID:     &req.BatchID,
		Method:      req.Method,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, "failed to create payment intent")
	}

	intent := &models.PaymentIntent{
		ID:          receipt.PaymentID,
		ApplicantID: req.ApplicantID,
		BatchID:     &req.BatchID,
		Amount:      req.Amount,
		Method:      models.PaymentMethod(req.Method),
		Status:      models.PaymentStatusCreated,
		Description: req.Description,
	}

	switch {
	case receipt.RedirectURL != "":
		intent.Mode = models.PaymentModeRedirect
		intent.RedirectURL = &receipt.RedirectURL
	case receipt.MockPaymentURL != "":
		intent.Mode = models.PaymentModePopup
		intent.MockPaymentURL = &receipt.MockPaymentURL
	default:
		return nil, appErrors.Clone(appErrors.ErrGatewayUnavailable, "gateway returned no checkout mode")
	}

	supersededID, err := s.registry.CreateSuperseding(ctx, intent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register payment intent")
	}
	if supersededID != nil {
		s.logger.Info("superseded prior payment intent",
			zap.String("applicant_id", req.ApplicantID),
			zap.String("superseded_id", *supersededID),
			zap.String("new_id", intent.ID))
	}

	return intent, nil
}

// Get returns a registered intent.
func (s *PaymentIntentService) Get(ctx context.Context, id string) (*models.PaymentIntent, error) {
	intent, err := s.registry.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment intent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment intent")
	}
	return intent, nil
}

// ActiveForApplicant returns the applicant's non-terminal intent, or nil.
func (s *PaymentIntentService) ActiveForApplicant(ctx context.Context, applicantID string) (*models.PaymentIntent, error) {
	intent, err := s.registry.FindActiveByApplicant(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active intent")
	}
	return intent, nil
}

// LatestPaidForApplicant returns the most recent paid intent, or nil.
func (s *PaymentIntentService) LatestPaidForApplicant(ctx context.Context, applicantID string) (*models.PaymentIntent, error) {
	intent, err := s.registry.FindLatestPaidByApplicant(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paid intent")
	}
	return intent, nil
}

// MarkStatus records a gateway-reported status change.
func (s *PaymentIntentService) MarkStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	if err := s.registry.UpdateStatus(ctx, id, status); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "payment intent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update intent status")
	}
	return nil
}
