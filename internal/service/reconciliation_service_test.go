package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
)

type scriptedVerifier struct {
	mu       sync.Mutex
	statuses []models.PaymentStatus
	errs     []error
	calls    int
}

func (v *scriptedVerifier) Verify(ctx context.Context, paymentID string) (models.PaymentStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	idx := v.calls
	v.calls++
	if idx < len(v.errs) && v.errs[idx] != nil {
		return "", v.errs[idx]
	}
	if idx < len(v.statuses) {
		return v.statuses[idx], nil
	}
	return models.PaymentStatusPending, nil
}

func (v *scriptedVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func TestAwaitPaidAfterPendingTicks(t *testing.T) {
	verifier := &scriptedVerifier{statuses: []models.PaymentStatus{
		models.PaymentStatusPending,
		models.PaymentStatusPending,
		models.PaymentStatusPaid,
	}}
	svc := NewReconciliationService(verifier, 5*time.Millisecond, time.Second, nil, nil)

	outcome := svc.Await(context.Background(), "pay-1")
	assert.Equal(t, OutcomePaid, outcome)
	assert.Equal(t, 3, verifier.callCount())
}

func TestAwaitFailedStopsPolling(t *testing.T) {
	verifier := &scriptedVerifier{statuses: []models.PaymentStatus{
		models.PaymentStatusExpired,
	}}
	svc := NewReconciliationService(verifier, 5*time.Millisecond, time.Second, nil, nil)

	outcome := svc.Await(context.Background(), "pay-1")
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1, verifier.callCount())
}

func TestAwaitTimeout(t *testing.T) {
	verifier := &scriptedVerifier{}
	svc := NewReconciliationService(verifier, 5*time.Millisecond, 40*time.Millisecond, nil, nil)

	outcome := svc.Await(context.Background(), "pay-1")
	assert.Equal(t, OutcomeTimeout, outcome)
}

func TestAwaitCancelled(t *testing.T) {
	verifier := &scriptedVerifier{}
	svc := NewReconciliationService(verifier, 5*time.Millisecond, time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	outcome := svc.Await(ctx, "pay-1")
	assert.Equal(t, OutcomeCancelled, outcome)
}

func TestAwaitVerifyErrorsAreTransient(t *testing.T) {
	verifier := &scriptedVerifier{
		errs:     []error{errors.New("flaky"), errors.New("flaky")},
		statuses: []models.PaymentStatus{"", "", models.PaymentStatusPaid},
	}
	svc := NewReconciliationService(verifier, 5*time.Millisecond, time.Second, nil, nil)

	outcome := svc.Await(context.Background(), "pay-1")
	assert.Equal(t, OutcomePaid, outcome)
}

func TestWatchDeliversOutcome(t *testing.T) {
	verifier := &scriptedVerifier{statuses: []models.PaymentStatus{models.PaymentStatusPaid}}
	svc := NewReconciliationService(verifier, 5*time.Millisecond, time.Second, nil, nil)

	outcomes := make(chan Outcome, 1)
	svc.Watch("a1", "pay-1", func(o Outcome) { outcomes <- o })

	select {
	case o := <-outcomes:
		assert.Equal(t, OutcomePaid, o)
	case <-time.After(time.Second):
		t.Fatal("watch did not deliver an outcome")
	}
	assert.False(t, svc.Cancel("a1"))
}

func TestWatchReplacementCancelsPrior(t *testing.T) {
	verifier := &scriptedVerifier{}
	svc := NewReconciliationService(verifier, 5*time.Millisecond, time.Second, nil, nil)

	first := make(chan Outcome, 1)
	svc.Watch("a1", "pay-old", func(o Outcome) { first <- o })

	second := make(chan Outcome, 1)
	svc.Watch("a1", "pay-new", func(o Outcome) { second <- o })

	select {
	case o := <-first:
		assert.Equal(t, OutcomeCancelled, o)
	case <-time.After(time.Second):
		t.Fatal("replaced watch was not cancelled")
	}

	require.True(t, svc.Cancel("a1"))
	select {
	case o := <-second:
		assert.Equal(t, OutcomeCancelled, o)
	case <-time.After(time.Second):
		t.Fatal("second watch was not cancelled")
	}
}

func TestCancelWithoutWatch(t *testing.T) {
	svc := NewReconciliationService(&scriptedVerifier{}, 5*time.Millisecond, time.Second, nil, nil)
	assert.False(t, svc.Cancel("a1"))
}
