package models

import (
	"strings"
	"time"
)

// BatchStatus represents the lifecycle of a program batch.
type BatchStatus string

// Possible batch statuses. The batches service may introduce more; only
// COMPLETED is load-bearing for eligibility.
const (
	BatchStatusOpen      BatchStatus = "OPEN"
	BatchStatusOngoing   BatchStatus = "ONGOING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
)

// Batch is a scheduled cohort of a program with a capacity limit.
// MaxStudents of zero means unlimited. Seat counts are owned by the external
// batches service; this service only reads them for the eligibility view.
type Batch struct {
	ID               string      `json:"id"`
	ProgramID        string      `json:"program_id"`
	Name             string      `json:"name"`
	MaxStudents      int         `json:"max_students"`
	EnrolledStudents int         `json:"enrolled_students_count"`
	Status           BatchStatus `json:"status"`
	StartDate        *time.Time  `json:"start_date,omitempty"`
}

// EnrollmentEligible reports whether the batch can accept an enrollment for
// the given program. The batches service is inconsistent about status casing,
// so the completed check is case-insensitive.
func (b Batch) EnrollmentEligible(programID string) bool {
	if b.ProgramID != programID {
		return false
	}
	if strings.EqualFold(string(b.Status), string(BatchStatusCompleted)) {
		return false
	}
	return b.MaxStudents == 0 || b.EnrolledStudents < b.MaxStudents
}
