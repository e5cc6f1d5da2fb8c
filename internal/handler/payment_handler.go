package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/service"
	"github.com/noah-isme/admissions-api/pkg/response"
)

// PaymentHandler exposes payment intent status endpoints.
type PaymentHandler struct {
	enrollments *service.EnrollmentService
	intents     *service.PaymentIntentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(enrollments *service.EnrollmentService, intents *service.PaymentIntentService) *PaymentHandler {
	return &PaymentHandler{enrollments: enrollments, intents: intents}
}

// Status godoc
// @Summary Get payment intent status
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/status [get]
func (h *PaymentHandler) Status(c *gin.Context) {
	intent, err := h.enrollments.PaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, intent, nil)
}

// Active godoc
// @Summary Get the applicant's active payment intent
// @Tags Payments
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/payments/active [get]
func (h *PaymentHandler) Active(c *gin.Context) {
	intent, err := h.intents.ActiveForApplicant(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, intent, nil)
}
