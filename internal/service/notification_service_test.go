package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/admissions-api/internal/models"
)

type capturingSender struct {
	mu   sync.Mutex
	sent []models.StatusNotification
	done chan struct{}
}

func (s *capturingSender) SendStatusNotification(ctx context.Context, n models.StatusNotification) error {
	s.mu.Lock()
	s.sent = append(s.sent, n)
	s.mu.Unlock()
	select {
	case s.done <- struct{}{}:
	default:
	}
	return nil
}

func TestNotificationDispatchDelivers(t *testing.T) {
	sender := &capturingSender{done: make(chan struct{}, 1)}
	svc := NewNotificationService(sender, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Dispatch(models.StatusNotification{ApplicantID: "a1", Status: models.ApplicationStatusUnderReview})

	select {
	case <-sender.done:
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, "a1", sender.sent[0].ApplicantID)
}

func TestNotificationDispatchBeforeStartIsDropped(t *testing.T) {
	sender := &capturingSender{done: make(chan struct{}, 1)}
	svc := NewNotificationService(sender, nil)

	svc.Dispatch(models.StatusNotification{ApplicantID: "a1"})

	select {
	case <-sender.done:
		t.Fatal("notification should not be delivered before Start")
	case <-time.After(50 * time.Millisecond):
	}
}
