package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
)

func newIntentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var intentTestColumns = []string{
	"id", "applicant_id", "batch_id", "amount", "method", "mode", "status",
	"redirect_url", "mock_payment_url", "description", "created_at", "updated_at",
}

func testIntent(id string) *models.PaymentIntent {
	batchID := "b1"
	url := "https://gateway.test/checkout/" + id
	return &models.PaymentIntent{
		ID:          id,
		ApplicantID: "a1",
		BatchID:     &batchID,
		Amount:      1500,
		Method:      models.PaymentMethodGcash,
		Mode:        models.PaymentModeRedirect,
		RedirectURL: &url,
	}
}

func TestCreateSupersedingNoPriorIntent(t *testing.T) {
	db, mock, cleanup := newIntentRepoMock(t)
	defer cleanup()

	repo := NewPaymentIntentRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_intents SET status")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_intents")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	superseded, err := repo.CreateSuperseding(context.Background(), testIntent("pay-1"))
	require.NoError(t, err)
	require.Nil(t, superseded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSupersedingReplacesPending(t *testing.T) {
	db, mock, cleanup := newIntentRepoMock(t)
	defer cleanup()

	repo := NewPaymentIntentRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_intents SET status")).
		WithArgs("a1", models.PaymentStatusSuperseded, models.PaymentStatusCreated, models.PaymentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pay-old"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_intents")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	superseded, err := repo.CreateSuperseding(context.Background(), testIntent("pay-new"))
	require.NoError(t, err)
	require.NotNil(t, superseded)
	require.Equal(t, "pay-old", *superseded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByApplicant(t *testing.T) {
	db, mock, cleanup := newIntentRepoMock(t)
	defer cleanup()

	repo := NewPaymentIntentRepository(db, nil)
	now := time.Now()
	rows := sqlmock.NewRows(intentTestColumns).
		AddRow("pay-1", "a1", "b1", 1500.0, "GCASH", "REDIRECT", "PENDING",
			"https://gateway.test/checkout/pay-1", nil, "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, applicant_id")).
		WithArgs("a1", models.PaymentStatusCreated, models.PaymentStatusPending).
		WillReturnRows(rows)

	intent, err := repo.FindActiveByApplicant(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "pay-1", intent.ID)
	require.Equal(t, models.PaymentStatusPending, intent.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLatestPaidByApplicantNone(t *testing.T) {
	db, mock, cleanup := newIntentRepoMock(t)
	defer cleanup()

	repo := NewPaymentIntentRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY updated_at DESC LIMIT 1")).
		WithArgs("a1", models.PaymentStatusPaid).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindLatestPaidByApplicant(context.Background(), "a1")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateIntentStatusNotFound(t *testing.T) {
	db, mock, cleanup := newIntentRepoMock(t)
	defer cleanup()

	repo := NewPaymentIntentRepository(db, nil)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_intents SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.PaymentStatusPaid)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
