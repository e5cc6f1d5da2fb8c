package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
)

type notificationSender interface {
	SendStatusNotification(ctx context.Context, n models.StatusNotification) error
}

// NotificationService dispatches applicant notifications in the background.
// Delivery is fire-and-forget from the caller's perspective: failures are
// retried a bounded number of times and then logged, never propagated back
// into the workflow that triggered them.
type NotificationService struct {
	sender     notificationSender
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration

	queue   chan models.StatusNotification
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(sender notificationSender, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		sender:     sender,
		logger:     logger,
		maxRetries: 3,
		retryDelay: 2 * time.Second,
		queue:      make(chan models.StatusNotification, 64),
	}
}

// Start begins background delivery. Safe to call once.
func (s *NotificationService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.worker()
	s.started = true
}

// Stop cancels delivery and waits for the worker to exit.
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

// Dispatch enqueues a notification without blocking the workflow. A full
// queue drops the notification with a log entry; applicant state is already
// committed by the time this is called.
func (s *NotificationService) Dispatch(n models.StatusNotification) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.logger.Warn("notification dropped, dispatcher not started", zap.String("applicant_id", n.ApplicantID))
		return
	}

	select {
	case s.queue <- n:
	default:
		s.logger.Warn("notification dropped, queue full", zap.String("applicant_id", n.ApplicantID), zap.String("status", string(n.Status)))
	}
}

func (s *NotificationService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case n := <-s.queue:
			s.deliver(n)
		}
	}
}

func (s *NotificationService) deliver(n models.StatusNotification) {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		err = s.sender.SendStatusNotification(ctx, n)
		cancel()
		if err == nil {
			return
		}

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	s.logger.Error("notification delivery failed",
		zap.String("applicant_id", n.ApplicantID),
		zap.String("status", string(n.Status)),
		zap.Error(err))
}
