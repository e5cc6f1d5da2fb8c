package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/service"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

// BatchHandler exposes the batch eligibility view.
type BatchHandler struct {
	batches *service.BatchService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches *service.BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Eligible godoc
// @Summary List enrollment-eligible batches for a program
// @Tags Batches
// @Produce json
// @Param programId query string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /batches/eligible [get]
func (h *BatchHandler) Eligible(c *gin.Context) {
	programID := c.Query("programId")
	if programID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "programId is required"))
		return
	}
	batches, err := h.batches.EligibleBatches(c.Request.Context(), programID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}
