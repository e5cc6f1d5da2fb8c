package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/service"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

// EnrollmentHandler exposes the approval and enrollment workflow.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// StartApproval godoc
// @Summary Start the approval flow for an applicant
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body service.StartApprovalRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/approve [post]
func (h *EnrollmentHandler) StartApproval(c *gin.Context) {
	var req service.StartApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, err := h.enrollments.StartApproval(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// ResumeApproval godoc
// @Summary Resume a redirect-mode approval after checkout returns
// @Tags Enrollments
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/approve/resume [post]
func (h *EnrollmentHandler) ResumeApproval(c *gin.Context) {
	decision, err := h.enrollments.ResumeApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// RetryCommit godoc
// @Summary Retry the enrollment commit for a captured payment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/approve/retry [post]
func (h *EnrollmentHandler) RetryCommit(c *gin.Context) {
	applicant, err := h.enrollments.RetryCommit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// CancelApproval godoc
// @Summary Cancel a running payment reconciliation watch
// @Tags Enrollments
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/approve [delete]
func (h *EnrollmentHandler) CancelApproval(c *gin.Context) {
	cancelled := h.enrollments.CancelApproval(c.Param("id"))
	response.JSON(c, http.StatusOK, gin.H{"cancelled": cancelled}, nil)
}

// Enroll godoc
// @Summary Enroll an approved applicant as a student
// @Tags Enrollments
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	applicant, err := h.enrollments.Enroll(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// CashEnrollment godoc
// @Summary Settle the enrollment fee in cash and commit enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body service.CashEnrollmentRequest true "Cash payload"
// @Success 201 {object} response.Envelope
// @Router /applicants/{id}/enroll/cash [post]
func (h *EnrollmentHandler) CashEnrollment(c *gin.Context) {
	var req service.CashEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.enrollments.CashEnrollment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
