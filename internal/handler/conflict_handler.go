package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/service"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
	"github.com/careloop/staffing-api/pkg/response"
)

// ConflictHandler exposes batch availability evaluation.
type ConflictHandler struct {
	service *service.ConflictService
}

// NewConflictHandler constructs handler.
func NewConflictHandler(svc *service.ConflictService) *ConflictHandler {
	return &ConflictHandler{service: svc}
}

// Compute godoc
// @Summary Evaluate candidate availability for a batch of shifts
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.ComputeConflictsRequest true "Checks to evaluate"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /conflicts/compute [post]
func (h *ConflictHandler) Compute(c *gin.Context) {
	var req dto.ComputeConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.service.ComputeConflicts(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
