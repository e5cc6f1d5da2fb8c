package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type batchesLister interface {
	ListByProgram(ctx context.Context, programID string) ([]models.Batch, error)
}

// BatchService presents the enrollment-eligibility view over the external
// batch roster. It never mutates seat counts; the final commit remains the
// sole authority on whether a seat is actually available.
type BatchService struct {
	batches batchesLister
	logger  *zap.Logger
}

// NewBatchService constructs BatchService.
func NewBatchService(batches batchesLister, logger *zap.Logger) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{batches: batches, logger: logger}
}

// EligibleBatches returns batches that can accept an enrollment for the
// program: status not completed and capacity remaining (zero max means
// unlimited). Sorted by start date ascending, batches without a start date
// last.
func (s *BatchService) EligibleBatches(ctx context.Context, programID string) ([]models.Batch, error) {
	all, err := s.batches.ListByProgram(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, "failed to load batches")
	}

	eligible := make([]models.Batch, 0, len(all))
	for _, b := range all {
		if b.EnrollmentEligible(programID) {
			eligible = append(eligible, b)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].StartDate, eligible[j].StartDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	return eligible, nil
}
