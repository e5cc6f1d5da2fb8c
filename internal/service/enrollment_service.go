package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/client"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type applicantCommitter interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	CommitApproval(ctx context.Context, id, batchID string, paymentID *string) (*models.Applicant, error)
	PromoteToStudent(ctx context.Context, id string) (*models.Applicant, error)
}

type eligibilityMatcher interface {
	EligibleBatches(ctx context.Context, programID string) ([]models.Batch, error)
}

type requirementResolver interface {
	Resolve(ctx context.Context, batchID, userID string) (*PaymentRequirement, error)
}

type intentManager interface {
	Create(ctx context.Context, req CreateIntentRequest) (*models.PaymentIntent, error)
	Get(ctx context.Context, id string) (*models.PaymentIntent, error)
	LatestPaidForApplicant(ctx context.Context, applicantID string) (*models.PaymentIntent, error)
	MarkStatus(ctx context.Context, id string, status models.PaymentStatus) error
}

type reconciler interface {
	Watch(applicantID, paymentID string, onOutcome func(Outcome))
	Cancel(applicantID string) bool
}

type resumeStore interface {
	Save(ctx context.Context, token models.ResumeToken) error
	Load(ctx context.Context, applicantID string) (*models.ResumeToken, error)
	Clear(ctx context.Context, applicantID string) error
}

type cashProcessor interface {
	ProcessCash(ctx context.Context, req client.CashPaymentRequest) (*client.CashPaymentResult, error)
}

// StartApprovalRequest initiates the approval flow for an applicant.
type StartApprovalRequest struct {
	BatchID     string  `json:"batch_id" validate:"required"`
	Method      string  `json:"method"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// CashEnrollmentRequest settles the fee over the counter and commits in one
// request.
type CashEnrollmentRequest struct {
	BatchID string  `json:"batch_id" validate:"required"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
}

// ApprovalDecision is the coordinator's answer to a start or resume call.
// Exactly one of the branches is populated: an immediate approval, a
// redirect instruction, or a popup instruction with a server-side watch
// already running.
type ApprovalDecision struct {
	Applicant   *models.Applicant     `json:"applicant,omitempty"`
	Requirement *PaymentRequirement   `json:"requirement,omitempty"`
	Intent      *models.PaymentIntent `json:"intent,omitempty"`
	RedirectURL string                `json:"redirect_url,omitempty"`
	PopupURL    string                `json:"popup_url,omitempty"`
}

// CashEnrollmentResult is the synchronous cash path outcome.
type CashEnrollmentResult struct {
	Applicant     *models.Applicant `json:"applicant"`
	ReceiptNumber string            `json:"receipt_number"`
}

// EnrollmentService coordinates the full approval flow: batch eligibility,
// payment requirement resolution, intent lifecycle, reconciliation and the
// final atomic commit.
type EnrollmentService struct {
	applicants applicantCommitter
	matcher    eligibilityMatcher
	resolver   requirementResolver
	intents    intentManager
	reconciler reconciler
	resume     resumeStore
	verifier   paymentVerifier
	cash       cashProcessor
	notifier   statusNotifier
	validator  *validator.Validate
	logger     *zap.Logger

	commitTimeout time.Duration

	// Intents whose server-side watch expired without a terminal status.
	// PaymentStatus reports these as a timeout until the gateway finally
	// answers or a new watch is started.
	mu       sync.Mutex
	timedOut map[string]struct{}
}

// NewEnrollmentService constructs the coordinator.
func NewEnrollmentService(
	applicants applicantCommitter,
	matcher eligibilityMatcher,
	resolver requirementResolver,
	intents intentManager,
	recon reconciler,
	resume resumeStore,
	verifier paymentVerifier,
	cash cashProcessor,
	notifier statusNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		applicants:    applicants,
		matcher:       matcher,
		resolver:      resolver,
		intents:       intents,
		reconciler:    recon,
		resume:        resume,
		verifier:      verifier,
		cash:          cash,
		notifier:      notifier,
		validator:     validate,
		logger:        logger,
		commitTimeout: 30 * time.Second,
		timedOut:      make(map[string]struct{}),
	}
}

// StartApproval runs the approval flow up to its first suspension point.
// Fee-waived applicants (no payment required, or voucher eligible) are
// approved immediately. Otherwise an intent is created and either a
// redirect instruction is returned (resume token persisted first) or a
// popup instruction with a reconciliation watch already running.
func (s *EnrollmentService) StartApproval(ctx context.Context, applicantID string, req StartApprovalRequest) (*ApprovalDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}

	applicant, err := s.loadApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if applicant.ApplicationStatus == models.ApplicationStatusApproved {
		return &ApprovalDecision{Applicant: applicant}, nil
	}
	if applicant.ApplicationStatus == models.ApplicationStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "rejected application cannot be approved")
	}

	if err := s.checkBatchEligibility(ctx, applicant.ProgramID, req.BatchID); err != nil {
		return nil, err
	}

	requirement, err := s.resolver.Resolve(ctx, req.BatchID, applicantID)
	if err != nil {
		return nil, err
	}

	if !requirement.Required || applicant.VoucherEligible {
		committed, err := s.applicants.CommitApproval(ctx, applicantID, req.BatchID, nil)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit approval")
		}
		s.notifyStatus(committed, "")
		return &ApprovalDecision{Applicant: committed, Requirement: requirement}, nil
	}

	if req.Method == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a payment method is required")
	}

	amount := requirement.Fee
	if amount <= 0 {
		amount = req.Amount
	}
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment fee amount is required")
	}

	// A re-opened approval replaces any watch and any pending intent.
	s.reconciler.Cancel(applicantID)

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Enrollment fee for batch %s", req.BatchID)
	}
	intent, err := s.intents.Create(ctx, CreateIntentRequest{
		ApplicantID: applicantID,
		BatchID:     req.BatchID,
		Method:      req.Method,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	decision := &ApprovalDecision{Requirement: requirement, Intent: intent}

	if intent.Mode == models.PaymentModeRedirect {
		// The resume token must be durable before the browsing context
		// navigates away; failing to write it would strand the intent.
		token := models.ResumeToken{PaymentID: intent.ID, ApplicantID: applicantID, BatchID: req.BatchID}
		if err := s.resume.Save(ctx, token); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist resume state")
		}
		decision.RedirectURL = *intent.RedirectURL
		return decision, nil
	}

	decision.PopupURL = *intent.MockPaymentURL
	s.reconciler.Watch(applicantID, intent.ID, s.outcomeHandler(applicantID, intent.ID, req.BatchID))
	return decision, nil
}

// CancelApproval stops a running reconciliation watch. The applicant record
// and the gateway-side intent are left untouched.
func (s *EnrollmentService) CancelApproval(applicantID string) bool {
	return s.reconciler.Cancel(applicantID)
}

// ResumeApproval continues a redirect-mode flow after the browsing context
// returns. The resume token is consumed exactly once; a missing or expired
// token is a distinct condition because the intent it referenced can no
// longer be resumed automatically.
func (s *EnrollmentService) ResumeApproval(ctx context.Context, applicantID string) (*ApprovalDecision, error) {
	token, err := s.resume.Load(ctx, applicantID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrResumeStateLost, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resume state")
	}
	if err := s.resume.Clear(ctx, applicantID); err != nil {
		s.logger.Warn("failed to clear resume token", zap.String("applicant_id", applicantID), zap.Error(err))
	}

	status, err := s.verifier.Verify(ctx, token.PaymentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, "failed to verify payment")
	}

	switch status {
	case models.PaymentStatusPaid:
		if err := s.intents.MarkStatus(ctx, token.PaymentID, models.PaymentStatusPaid); err != nil {
			s.logger.Warn("failed to record paid status", zap.String("payment_id", token.PaymentID), zap.Error(err))
		}
		committed, err := s.commitPaid(ctx, token.ApplicantID, token.BatchID, token.PaymentID)
		if err != nil {
			return nil, err
		}
		return &ApprovalDecision{Applicant: committed}, nil
	case models.PaymentStatusFailed, models.PaymentStatusExpired:
		if err := s.intents.MarkStatus(ctx, token.PaymentID, status); err != nil {
			s.logger.Warn("failed to record failed status", zap.String("payment_id", token.PaymentID), zap.Error(err))
		}
		return nil, appErrors.Clone(appErrors.ErrPaymentFailed, "")
	default:
		// Still pending; keep watching server-side.
		intent, err := s.intents.Get(ctx, token.PaymentID)
		if err != nil {
			return nil, err
		}
		s.clearTimedOut(token.PaymentID)
		s.reconciler.Watch(applicantID, token.PaymentID, s.outcomeHandler(applicantID, token.PaymentID, token.BatchID))
		return &ApprovalDecision{Intent: intent}, nil
	}
}

// RetryCommit retries the enrollment commit for a captured payment. This is
// the recovery path for the most severe failure class: money moved but the
// commit did not land. The retained payment id keeps the retry idempotent.
func (s *EnrollmentService) RetryCommit(ctx context.Context, applicantID string) (*models.Applicant, error) {
	intent, err := s.intents.LatestPaidForApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no captured payment to commit")
	}
	if intent.BatchID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "captured payment has no batch reference")
	}
	return s.commitPaid(ctx, applicantID, *intent.BatchID, intent.ID)
}

// Enroll performs the explicit enroll action: role APPLICANT -> STUDENT.
// Allowed only after approval, and only for fee-waived applicants or ones
// with a captured payment.
func (s *EnrollmentService) Enroll(ctx context.Context, applicantID string) (*models.Applicant, error) {
	applicant, err := s.loadApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if applicant.Role == models.RoleStudent {
		return applicant, nil
	}
	if applicant.ApplicationStatus != models.ApplicationStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is not approved")
	}

	if !applicant.VoucherEligible {
		paid, err := s.intents.LatestPaidForApplicant(ctx, applicantID)
		if err != nil {
			return nil, err
		}
		if paid == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment requires a voucher or a captured payment")
		}
	}

	enrolled, err := s.applicants.PromoteToStudent(ctx, applicantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll applicant")
	}
	return enrolled, nil
}

// CashEnrollment settles the fee synchronously at the counter and commits
// enrollment in the same request. No polling is involved.
func (s *EnrollmentService) CashEnrollment(ctx context.Context, applicantID string, req CashEnrollmentRequest) (*CashEnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cash payment payload")
	}

	applicant, err := s.loadApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if applicant.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrConflict, "applicant is already enrolled")
	}

	if err := s.checkBatchEligibility(ctx, applicant.ProgramID, req.BatchID); err != nil {
		return nil, err
	}

	result, err := s.cash.ProcessCash(ctx, client.CashPaymentRequest{
		UserID:  applicantID,
		BatchID: req.BatchID,
		Amount:  req.Amount,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, "cash payment failed")
	}

	committed, err := s.commitPaid(ctx, applicantID, req.BatchID, result.PaymentID)
	if err != nil {
		return nil, err
	}
	return &CashEnrollmentResult{Applicant: committed, ReceiptNumber: result.ReceiptNumber}, nil
}

// PaymentStatus reports the current status of a registered intent. When the
// local registry still shows a non-terminal status, the gateway is asked
// once and the registry updated. This backs the console's own popup polling.
// An intent whose server-side watch expired is reported as a timeout so the
// operator sees a condition distinct from a failed payment.
func (s *EnrollmentService) PaymentStatus(ctx context.Context, paymentID string) (*models.PaymentIntent, error) {
	intent, err := s.intents.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		s.clearTimedOut(paymentID)
		return intent, nil
	}

	status, err := s.verifier.Verify(ctx, paymentID)
	if err != nil {
		s.logger.Warn("payment status refresh failed", zap.String("payment_id", paymentID), zap.Error(err))
		if s.isTimedOut(paymentID) {
			return nil, appErrors.Clone(appErrors.ErrReconciliationTimeout, "")
		}
		// The registry view is still meaningful; report it.
		return intent, nil
	}
	if status != intent.Status {
		if err := s.intents.MarkStatus(ctx, paymentID, status); err != nil {
			s.logger.Warn("failed to record payment status", zap.String("payment_id", paymentID), zap.Error(err))
		}
		intent.Status = status
	}
	if intent.Status.Terminal() {
		s.clearTimedOut(paymentID)
		return intent, nil
	}
	if s.isTimedOut(paymentID) {
		return nil, appErrors.Clone(appErrors.ErrReconciliationTimeout, "")
	}
	return intent, nil
}

func (s *EnrollmentService) loadApplicant(ctx context.Context, id string) (*models.Applicant, error) {
	applicant, err := s.applicants.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	return applicant, nil
}

func (s *EnrollmentService) checkBatchEligibility(ctx context.Context, programID, batchID string) error {
	eligible, err := s.matcher.EligibleBatches(ctx, programID)
	if err != nil {
		return err
	}
	if len(eligible) == 0 {
		return appErrors.Clone(appErrors.ErrNoEligibleBatch, "")
	}
	for _, b := range eligible {
		if b.ID == batchID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrPreconditionFailed, "selected batch is not enrollment-eligible")
}

// commitPaid performs the atomic paid commit and maps a post-payment commit
// failure to the manual-follow-up condition while keeping the payment id
// retrievable for RetryCommit.
func (s *EnrollmentService) commitPaid(ctx context.Context, applicantID, batchID, paymentID string) (*models.Applicant, error) {
	committed, err := s.applicants.CommitApproval(ctx, applicantID, batchID, &paymentID)
	if err != nil {
		s.logger.Error("payment captured but enrollment commit failed",
			zap.String("applicant_id", applicantID),
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrEnrollmentPending.Code, appErrors.ErrEnrollmentPending.Status, appErrors.ErrEnrollmentPending.Message)
	}
	s.notifyStatus(committed, "")
	return committed, nil
}

// outcomeHandler reacts to a terminal reconciliation outcome for a popup
// watch. It runs outside any request context.
func (s *EnrollmentService) outcomeHandler(applicantID, paymentID, batchID string) func(Outcome) {
	return func(outcome Outcome) {
		ctx, cancel := context.WithTimeout(context.Background(), s.commitTimeout)
		defer cancel()

		switch outcome {
		case OutcomePaid:
			if err := s.intents.MarkStatus(ctx, paymentID, models.PaymentStatusPaid); err != nil {
				s.logger.Warn("failed to record paid status", zap.String("payment_id", paymentID), zap.Error(err))
			}
			if _, err := s.commitPaid(ctx, applicantID, batchID, paymentID); err != nil {
				// Already logged; the applicant record stays recoverable via
				// RetryCommit with the retained payment id.
				return
			}
		case OutcomeFailed:
			if err := s.intents.MarkStatus(ctx, paymentID, models.PaymentStatusFailed); err != nil {
				s.logger.Warn("failed to record failed status", zap.String("payment_id", paymentID), zap.Error(err))
			}
		case OutcomeTimeout:
			// The intent keeps whatever status the gateway last reported; the
			// payer may still be mid-checkout. The expiry is recorded so the
			// next status poll reports it to the operator.
			s.markTimedOut(paymentID)
			s.logger.Warn("payment reconciliation timed out",
				zap.String("applicant_id", applicantID),
				zap.String("payment_id", paymentID))
		case OutcomeCancelled:
			s.logger.Info("payment reconciliation cancelled",
				zap.String("applicant_id", applicantID),
				zap.String("payment_id", paymentID))
		}
	}
}

func (s *EnrollmentService) markTimedOut(paymentID string) {
	s.mu.Lock()
	s.timedOut[paymentID] = struct{}{}
	s.mu.Unlock()
}

func (s *EnrollmentService) clearTimedOut(paymentID string) {
	s.mu.Lock()
	delete(s.timedOut, paymentID)
	s.mu.Unlock()
}

func (s *EnrollmentService) isTimedOut(paymentID string) bool {
	s.mu.Lock()
	_, ok := s.timedOut[paymentID]
	s.mu.Unlock()
	return ok
}

func (s *EnrollmentService) notifyStatus(applicant *models.Applicant, reason string) {
	if s.notifier == nil || applicant == nil {
		return
	}
	s.notifier.Dispatch(models.StatusNotification{
		ApplicantID: applicant.ID,
		Email:       applicant.Email,
		FullName:    applicant.FullName,
		Status:      applicant.ApplicationStatus,
		Reason:      reason,
	})
}
