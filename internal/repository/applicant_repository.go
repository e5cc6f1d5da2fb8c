package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const applicantColumns = `id, email, full_name, phone, program_id, application_status, status_reason,
        batch_id, voucher_eligible, role, student_id, payment_id, created_at, updated_at`

// queryObserver records query timings. Satisfied by service.MetricsService;
// nil disables observation.
type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

func observeQuery(obs queryObserver, label string, start time.Time) {
	if obs != nil {
		obs.ObserveDBQuery(label, time.Since(start))
	}
}

// ApplicantRepository handles persistence of applicant records.
type ApplicantRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewApplicantRepository constructs the repository.
func NewApplicantRepository(db *sqlx.DB, metrics queryObserver) *ApplicantRepository {
	return &ApplicantRepository{db: db, metrics: metrics}
}

// List returns applicants filtered by the provided criteria.
func (r *ApplicantRepository) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error) {
	defer observeQuery(r.metrics, "applicants_list", time.Now())

	base := "FROM applicants a"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.application_status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("a.role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(a.full_name ILIKE $%d OR a.email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "a.created_at",
		"full_name":  "a.full_name",
		"status":     "a.application_status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		strings.ReplaceAll(applicantColumns, "\n", " "), base+clause, orderBy, order, size, offset)

	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applicants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applicants: %w", err)
	}
	return applicants, total, nil
}

// FindByID returns an applicant by its ID.
func (r *ApplicantRepository) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	defer observeQuery(r.metrics, "applicants_find_by_id", time.Now())

	query := fmt.Sprintf("SELECT %s FROM applicants WHERE id = $1", strings.ReplaceAll(applicantColumns, "\n", " "))
	var applicant models.Applicant
	if err := r.db.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// UpdateStatus writes a state-machine transition. Legality is enforced by
// the service layer; this only persists the new status and reason.
func (r *ApplicantRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, reason *string) error {
	defer observeQuery(r.metrics, "applicants_update_status", time.Now())

	const query = `UPDATE applicants SET application_status = $2, status_reason = $3, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, reason)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CommitApproval finalizes an approval in a single transaction. With a
// payment id it performs the full enrollment commit: status, batch, role and
// student id move together so a partial write can never be observed. The
// payment id is the idempotency key: repeating a commit with the same id
// returns the already-committed record without generating a second student
// id.
func (r *ApplicantRepository) CommitApproval(ctx context.Context, id, batchID string, paymentID *string) (*models.Applicant, error) {
	defer observeQuery(r.metrics, "applicants_commit_approval", time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf("SELECT %s FROM applicants WHERE id = $1 FOR UPDATE", strings.ReplaceAll(applicantColumns, "\n", " "))
	var applicant models.Applicant
	if err := tx.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}

	if paymentID != nil {
		if applicant.PaymentID != nil && *applicant.PaymentID == *paymentID &&
			applicant.ApplicationStatus == models.ApplicationStatusApproved {
			// Same payment already committed; idempotent replay.
			return &applicant, nil
		}
		if applicant.Role == models.RoleStudent {
			return nil, fmt.Errorf("commit approval: applicant %s already enrolled under a different payment", id)
		}

		studentID := applicant.StudentID
		if studentID == nil {
			generated := newStudentID()
			studentID = &generated
		}
		const update = `UPDATE applicants
        SET application_status = $2, status_reason = NULL, batch_id = $3, role = $4,
            student_id = $5, payment_id = $6, updated_at = NOW()
        WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, id, models.ApplicationStatusApproved, batchID, models.RoleStudent, *studentID, *paymentID); err != nil {
			return nil, fmt.Errorf("commit paid approval: %w", err)
		}
		applicant.ApplicationStatus = models.ApplicationStatusApproved
		applicant.StatusReason = nil
		applicant.BatchID = &batchID
		applicant.Role = models.RoleStudent
		applicant.StudentID = studentID
		applicant.PaymentID = paymentID
	} else {
		if applicant.ApplicationStatus == models.ApplicationStatusApproved {
			// Already approved; idempotent replay.
			return &applicant, nil
		}
		const update = `UPDATE applicants
        SET application_status = $2, status_reason = NULL, batch_id = $3, updated_at = NOW()
        WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, id, models.ApplicationStatusApproved, batchID); err != nil {
			return nil, fmt.Errorf("commit approval: %w", err)
		}
		applicant.ApplicationStatus = models.ApplicationStatusApproved
		applicant.StatusReason = nil
		applicant.BatchID = &batchID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	return &applicant, nil
}

// PromoteToStudent performs the explicit enroll action for fee-waived
// applicants: role APPLICANT -> STUDENT with a generated student id. A
// repeated call returns the enrolled record unchanged.
func (r *ApplicantRepository) PromoteToStudent(ctx context.Context, id string) (*models.Applicant, error) {
	defer observeQuery(r.metrics, "applicants_promote_to_student", time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf("SELECT %s FROM applicants WHERE id = $1 FOR UPDATE", strings.ReplaceAll(applicantColumns, "\n", " "))
	var applicant models.Applicant
	if err := tx.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}

	if applicant.Role == models.RoleStudent {
		return &applicant, nil
	}

	studentID := newStudentID()
	const update = `UPDATE applicants SET role = $2, student_id = $3, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, models.RoleStudent, studentID); err != nil {
		return nil, fmt.Errorf("enroll applicant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("enroll applicant: %w", err)
	}

	applicant.Role = models.RoleStudent
	applicant.StudentID = &studentID
	return &applicant, nil
}

func newStudentID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("STU-%d-%s", time.Now().UTC().Year(), raw[:8])
}
