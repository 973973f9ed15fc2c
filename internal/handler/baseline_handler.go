package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/service"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
	"github.com/careloop/staffing-api/pkg/response"
)

// BaselineHandler exposes weekly grid conflict resolution.
type BaselineHandler struct {
	service *service.BaselineService
}

// NewBaselineHandler constructs handler.
func NewBaselineHandler(svc *service.BaselineService) *BaselineHandler {
	return &BaselineHandler{service: svc}
}

// ResolveConflict godoc
// @Summary Place a teacher on the weekly grid, resolving any double-booking
// @Tags Baseline
// @Accept json
// @Produce json
// @Param payload body dto.ResolveBaselineConflictRequest true "Placement and resolution"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /baseline/resolve-conflict [post]
func (h *BaselineHandler) ResolveConflict(c *gin.Context) {
	var req dto.ResolveBaselineConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.service.ResolveConflict(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
