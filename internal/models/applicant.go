package models

import "time"

// ApplicationStatus represents the admission decision state of an applicant.
type ApplicationStatus string

// Possible application statuses.
const (
	ApplicationStatusPending     ApplicationStatus = "PENDING"
	ApplicationStatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationStatusApproved    ApplicationStatus = "APPROVED"
	ApplicationStatusRejected    ApplicationStatus = "REJECTED"
)

// ApplicantRole distinguishes applicants awaiting admission from enrolled
// students. The transition APPLICANT -> STUDENT happens exactly once.
type ApplicantRole string

const (
	RoleApplicant ApplicantRole = "APPLICANT"
	RoleStudent   ApplicantRole = "STUDENT"
)

// Applicant is a person record awaiting (or past) an admission decision for
// a training program. PaymentID records the payment that funded the
// enrollment commit and doubles as the commit idempotency key.
type Applicant struct {
	ID                string            `db:"id" json:"id"`
	Email             string            `db:"email" json:"email"`
	FullName          string            `db:"full_name" json:"full_name"`
	Phone             string            `db:"phone" json:"phone"`
	ProgramID         string            `db:"program_id" json:"program_id"`
	ApplicationStatus ApplicationStatus `db:"application_status" json:"application_status"`
	StatusReason      *string           `db:"status_reason" json:"status_reason,omitempty"`
	BatchID           *string           `db:"batch_id" json:"batch_id,omitempty"`
	VoucherEligible   bool              `db:"voucher_eligible" json:"voucher_eligible"`
	Role              ApplicantRole     `db:"role" json:"role"`
	StudentID         *string           `db:"student_id" json:"student_id,omitempty"`
	PaymentID         *string           `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicantFilter captures filtering criteria for listing applicants.
type ApplicantFilter struct {
	Status    ApplicationStatus
	ProgramID string
	Role      ApplicantRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// StatusNotification is the payload dispatched to the external notifier
// after a status transition or enrollment commit.
type StatusNotification struct {
	ApplicantID string            `json:"applicant_id"`
	Email       string            `json:"email"`
	FullName    string            `json:"full_name"`
	Status      ApplicationStatus `json:"application_status"`
	Reason      string            `json:"reason,omitempty"`
}
