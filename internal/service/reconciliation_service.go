package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
)

type paymentVerifier interface {
	Verify(ctx context.Context, paymentID string) (models.PaymentStatus, error)
}

// Outcome is the terminal result of a reconciliation watch.
type Outcome string

const (
	OutcomePaid      Outcome = "PAID"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeTimeout   Outcome = "TIMEOUT"
	OutcomeCancelled Outcome = "CANCELLED"
)

// ReconciliationService watches pending payment intents until the gateway
// reports a terminal state or the wall-clock timeout elapses. Verification
// ticks are strictly sequential: the next tick is scheduled only after the
// previous verify call returns, so terminal handling can never race a
// concurrent tick. Cancellation is a context signal; a verify result that
// arrives after cancellation is discarded.
type ReconciliationService struct {
	verifier paymentVerifier
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *MetricsService

	mu       sync.Mutex
	watches  map[string]*watchHandle
	watchSeq uint64
}

type watchHandle struct {
	id     uint64
	cancel context.CancelFunc
}

// NewReconciliationService constructs the poller.
func NewReconciliationService(verifier paymentVerifier, interval, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *ReconciliationService {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		verifier: verifier,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
		watches:  make(map[string]*watchHandle),
	}
}

// Await polls the gateway until a terminal status, cancellation or timeout.
// The intent's stored status is not touched here; on timeout it stays in
// whatever state the gateway last reported.
func (s *ReconciliationService) Await(ctx context.Context, paymentID string) Outcome {
	deadlineCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-deadlineCtx.Done():
			return s.finish(paymentID, s.doneOutcome(ctx))
		case <-timer.C:
		}

		s.metrics.ObservePollTick()
		status, err := s.verifier.Verify(deadlineCtx, paymentID)

		// A cancellation or deadline that fired while the verify call was in
		// flight wins over its result; acting on a late result could trigger
		// a duplicate enrollment attempt.
		if deadlineCtx.Err() != nil {
			return s.finish(paymentID, s.doneOutcome(ctx))
		}

		if err != nil {
			// Transient verify failures do not abort the watch.
			s.logger.Warn("payment verify tick failed", zap.String("payment_id", paymentID), zap.Error(err))
		} else {
			switch status {
			case models.PaymentStatusPaid:
				return s.finish(paymentID, OutcomePaid)
			case models.PaymentStatusFailed, models.PaymentStatusExpired:
				return s.finish(paymentID, OutcomeFailed)
			}
		}

		timer.Reset(s.interval)
	}
}

func (s *ReconciliationService) doneOutcome(parent context.Context) Outcome {
	if parent.Err() != nil {
		return OutcomeCancelled
	}
	return OutcomeTimeout
}

func (s *ReconciliationService) finish(paymentID string, outcome Outcome) Outcome {
	s.metrics.ObservePaymentOutcome(string(outcome))
	s.logger.Info("reconciliation finished",
		zap.String("payment_id", paymentID),
		zap.String("outcome", string(outcome)))
	return outcome
}

// Watch runs Await in the background for one applicant, replacing any watch
// already running for them. onOutcome is invoked exactly once. The watch is
// server-side and survives the operator closing the approval modal; Cancel
// stops it explicitly.
func (s *ReconciliationService) Watch(applicantID, paymentID string, onOutcome func(Outcome)) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if prior, ok := s.watches[applicantID]; ok {
		prior.cancel()
	}
	s.watchSeq++
	handle := &watchHandle{id: s.watchSeq, cancel: cancel}
	s.watches[applicantID] = handle
	s.mu.Unlock()

	go func() {
		outcome := s.Await(ctx, paymentID)

		s.mu.Lock()
		// Only deregister if this watch still owns the slot; a replacement
		// watch may have been registered while this one was finishing.
		if current, ok := s.watches[applicantID]; ok && current.id == handle.id {
			delete(s.watches, applicantID)
		}
		s.mu.Unlock()
		cancel()

		onOutcome(outcome)
	}()
}

// Cancel stops a running watch for the applicant. Returns false when no
// watch was active.
func (s *ReconciliationService) Cancel(applicantID string) bool {
	s.mu.Lock()
	handle, ok := s.watches[applicantID]
	if ok {
		delete(s.watches, applicantID)
	}
	s.mu.Unlock()

	if ok {
		handle.cancel()
	}
	return ok
}
