package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const intentColumns = `id, applicant_id, batch_id, amount, method, mode, status, redirect_url, mock_payment_url, description, created_at, updated_at`

// PaymentIntentRepository is the local registry of gateway payment intents.
// It enforces the at-most-one-non-terminal-intent-per-applicant invariant.
type PaymentIntentRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewPaymentIntentRepository constructs the repository.
func NewPaymentIntentRepository(db *sqlx.DB, metrics queryObserver) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db, metrics: metrics}
}

// CreateSuperseding inserts a new intent after marking any prior
// non-terminal intent for the same applicant as superseded, in one
// transaction. It returns the id of the superseded intent, if any.
func (r *PaymentIntentRepository) CreateSuperseding(ctx context.Context, intent *models.PaymentIntent) (*string, error) {
	defer observeQuery(r.metrics, "payment_intents_create_superseding", time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin intent create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var supersededID *string
	const supersede = `UPDATE payment_intents SET status = $2, updated_at = NOW()
        WHERE applicant_id = $1 AND status IN ($3, $4) RETURNING id`
	err = tx.GetContext(ctx, &supersededID, supersede,
		intent.ApplicantID, models.PaymentStatusSuperseded, models.PaymentStatusCreated, models.PaymentStatusPending)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("supersede prior intent: %w", err)
	}

	now := time.Now().UTC()
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = now
	}
	intent.UpdatedAt = now
	if intent.Status == "" {
		intent.Status = models.PaymentStatusCreated
	}

	const insert = `INSERT INTO payment_intents (id, applicant_id, batch_id, amount, method, mode, status, redirect_url, mock_payment_url, description, created_at, updated_at)
        VALUES (:id, :applicant_id, :batch_id, :amount, :method, :mode, :status, :redirect_url, :mock_payment_url, :description, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, intent); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return supersededID, nil
}

// FindByID returns an intent by its gateway payment id.
func (r *PaymentIntentRepository) FindByID(ctx context.Context, id string) (*models.PaymentIntent, error) {
	defer observeQuery(r.metrics, "payment_intents_find_by_id", time.Now())

	query := fmt.Sprintf("SELECT %s FROM payment_intents WHERE id = $1", intentColumns)
	var intent models.PaymentIntent
	if err := r.db.GetContext(ctx, &intent, query, id); err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindActiveByApplicant returns the applicant's non-terminal intent, if one
// exists.
func (r *PaymentIntentRepository) FindActiveByApplicant(ctx context.Context, applicantID string) (*models.PaymentIntent, error) {
	defer observeQuery(r.metrics, "payment_intents_find_active", time.Now())

	query := fmt.Sprintf("SELECT %s FROM payment_intents WHERE applicant_id = $1 AND status IN ($2, $3)", intentColumns)
	var intent models.PaymentIntent
	if err := r.db.GetContext(ctx, &intent, query, applicantID, models.PaymentStatusCreated, models.PaymentStatusPending); err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindLatestPaidByApplicant returns the most recent paid intent for the
// applicant. Used to retry an enrollment commit after a post-payment
// failure.
func (r *PaymentIntentRepository) FindLatestPaidByApplicant(ctx context.Context, applicantID string) (*models.PaymentIntent, error) {
	defer observeQuery(r.metrics, "payment_intents_find_latest_paid", time.Now())

	query := fmt.Sprintf("SELECT %s FROM payment_intents WHERE applicant_id = $1 AND status = $2 ORDER BY updated_at DESC LIMIT 1", intentColumns)
	var intent models.PaymentIntent
	if err := r.db.GetContext(ctx, &intent, query, applicantID, models.PaymentStatusPaid); err != nil {
		return nil, err
	}
	return &intent, nil
}

// UpdateStatus records a gateway-reported (or registry-local) status change.
func (r *PaymentIntentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	defer observeQuery(r.metrics, "payment_intents_update_status", time.Now())

	const query = `UPDATE payment_intents SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update intent status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
