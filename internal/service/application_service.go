package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type applicantReader interface {
	List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error)
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
}

type applicantStatusWriter interface {
	applicantReader
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, reason *string) error
}

type statusNotifier interface {
	Dispatch(n models.StatusNotification)
}

// ChangeStatusRequest carries a state-machine transition.
type ChangeStatusRequest struct {
	Status string `json:"application_status" validate:"required"`
	Reason string `json:"reason"`
}

// statusTransitions is the legal transition table. APPROVED is absent on
// purpose: approval only happens through the enrollment coordinator, never
// through a bare status write.
var statusTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationStatusPending:     {models.ApplicationStatusUnderReview, models.ApplicationStatusRejected},
	models.ApplicationStatusUnderReview: {models.ApplicationStatusRejected, models.ApplicationStatusPending},
	models.ApplicationStatusRejected:    {models.ApplicationStatusPending},
}

// ApplicationService owns the applicant status state machine.
type ApplicationService struct {
	repo      applicantStatusWriter
	notifier  statusNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicantStatusWriter, notifier statusNotifier, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, notifier: notifier, validator: validate, logger: logger}
}

// List returns applicants with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, *models.Pagination, error) {
	applicants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applicants")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applicants, pagination, nil
}

// Get returns a single applicant.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.Applicant, error) {
	applicant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	return applicant, nil
}

// ChangeStatus applies a state-machine transition: pending -> under_review,
// pending/under_review -> rejected, and the administrative reset back to
// pending. Moving to under_review or rejected requires a reason; the reset
// does not.
func (s *ApplicationService) ChangeStatus(ctx context.Context, id string, req ChangeStatusRequest) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	target := models.ApplicationStatus(req.Status)
	switch target {
	case models.ApplicationStatusPending, models.ApplicationStatusUnderReview, models.ApplicationStatusRejected:
	case models.ApplicationStatusApproved:
		return nil, appErrors.Clone(appErrors.ErrValidation, "approval must go through the enrollment flow")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown application status")
	}

	if (target == models.ApplicationStatusUnderReview || target == models.ApplicationStatusRejected) && req.Reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a reason is required for this status change")
	}

	applicant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}

	if !transitionAllowed(applicant.ApplicationStatus, target) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "illegal status transition")
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}
	if err := s.repo.UpdateStatus(ctx, id, target, reason); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}

	applicant.ApplicationStatus = target
	applicant.StatusReason = reason

	if s.notifier != nil {
		s.notifier.Dispatch(models.StatusNotification{
			ApplicantID: applicant.ID,
			Email:       applicant.Email,
			FullName:    applicant.FullName,
			Status:      target,
			Reason:      req.Reason,
		})
	}

	return applicant, nil
}

func transitionAllowed(from, to models.ApplicationStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
