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

func newApplicantRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var applicantTestColumns = []string{
	"id", "email", "full_name", "phone", "program_id", "application_status", "status_reason",
	"batch_id", "voucher_eligible", "role", "student_id", "payment_id", "created_at", "updated_at",
}

func pendingApplicantRows(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(applicantTestColumns).
		AddRow(id, "jo@example.com", "Jo Reyes", "0917", "prog-1", "UNDER_REVIEW", nil,
			nil, false, "APPLICANT", nil, nil, now, now)
}

func enrolledApplicantRows(id, paymentID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(applicantTestColumns).
		AddRow(id, "jo@example.com", "Jo Reyes", "0917", "prog-1", "APPROVED", nil,
			"b1", false, "STUDENT", "STU-2026-ABCD1234", paymentID, now, now)
}

type recordingQueryObserver struct {
	labels []string
}

func (o *recordingQueryObserver) ObserveDBQuery(label string, duration time.Duration) {
	o.labels = append(o.labels, label)
}

func TestApplicantRepositoryObservesQueryTiming(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	obs := &recordingQueryObserver{}
	repo := NewApplicantRepository(db, obs)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name")).
		WithArgs("a1").
		WillReturnRows(pendingApplicantRows("a1"))

	_, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, []string{"applicants_find_by_id"}, obs.labels)
}

func TestApplicantRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name")).
		WithArgs("a1").
		WillReturnRows(pendingApplicantRows("a1"))

	applicant, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", applicant.ID)
	require.Equal(t, models.ApplicationStatusUnderReview, applicant.ApplicationStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestApplicantRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	reason := "documents incomplete"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants SET application_status")).
		WithArgs("a1", models.ApplicationStatusUnderReview, reason).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "a1", models.ApplicationStatusUnderReview, &reason))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants SET application_status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.ApplicationStatusPending, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCommitApprovalPaid(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(pendingApplicantRows("a1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paymentID := "pay-1"
	applicant, err := repo.CommitApproval(context.Background(), "a1", "b1", &paymentID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusApproved, applicant.ApplicationStatus)
	require.Equal(t, models.RoleStudent, applicant.Role)
	require.NotNil(t, applicant.StudentID)
	require.Regexp(t, `^STU-\d{4}-[0-9A-F]{8}$`, *applicant.StudentID)
	require.NotNil(t, applicant.PaymentID)
	require.Equal(t, "pay-1", *applicant.PaymentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitApprovalPaidIdempotentReplay(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(enrolledApplicantRows("a1", "pay-1"))
	mock.ExpectRollback()

	paymentID := "pay-1"
	applicant, err := repo.CommitApproval(context.Background(), "a1", "b1", &paymentID)
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, applicant.Role)
	require.Equal(t, "STU-2026-ABCD1234", *applicant.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitApprovalRejectsSecondPayment(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(enrolledApplicantRows("a1", "pay-old"))
	mock.ExpectRollback()

	paymentID := "pay-new"
	_, err := repo.CommitApproval(context.Background(), "a1", "b1", &paymentID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already enrolled")
}

func TestCommitApprovalFeeWaived(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(pendingApplicantRows("a1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applicant, err := repo.CommitApproval(context.Background(), "a1", "b1", nil)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusApproved, applicant.ApplicationStatus)
	require.Equal(t, models.RoleApplicant, applicant.Role)
	require.Nil(t, applicant.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteToStudent(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	now := time.Now()
	rows := sqlmock.NewRows(applicantTestColumns).
		AddRow("a1", "jo@example.com", "Jo Reyes", "0917", "prog-1", "APPROVED", nil,
			"b1", true, "APPLICANT", nil, nil, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants SET role")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applicant, err := repo.PromoteToStudent(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, applicant.Role)
	require.NotNil(t, applicant.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteToStudentIdempotent(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(enrolledApplicantRows("a1", "pay-1"))
	mock.ExpectRollback()

	applicant, err := repo.PromoteToStudent(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, applicant.Role)
}

func TestApplicantRepositoryList(t *testing.T) {
	db, mock, cleanup := newApplicantRepoMock(t)
	defer cleanup()

	repo := NewApplicantRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name")).
		WithArgs(models.ApplicationStatusPending).
		WillReturnRows(pendingApplicantRows("a1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(models.ApplicationStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	applicants, total, err := repo.List(context.Background(), models.ApplicantFilter{
		Status: models.ApplicationStatusPending,
		Page:   1,
	})
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
