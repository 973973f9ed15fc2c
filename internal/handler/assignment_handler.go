package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	"github.com/careloop/staffing-api/internal/service"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
	"github.com/careloop/staffing-api/pkg/response"
)

// AssignmentHandler exposes assignment creation and cancellation.
type AssignmentHandler struct {
	service *service.AssignmentService
	metrics *service.MetricsService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(svc *service.AssignmentService, metrics *service.MetricsService) *AssignmentHandler {
	return &AssignmentHandler{service: svc, metrics: metrics}
}

// Assign godoc
// @Summary Assign a candidate to absence shifts
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Absence ID"
// @Param payload body dto.AssignShiftsRequest true "Candidate and shifts"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absences/{id}/assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req dto.AssignShiftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.service.AssignShifts(c.Request.Context(), tenantFromContext(c), c.Param("id"), req)
	if err != nil {
		var conflict *models.AssignmentConflictError
		if errors.As(err, &conflict) {
			h.metrics.RecordAssignmentConflict()
			c.Header("Cache-Control", "no-store")
			c.JSON(http.StatusConflict, response.Envelope{
				Error: appErrors.Clone(appErrors.ErrConflict, conflict.Message),
				Data:  gin.H{"conflicts": conflict.Conflicts},
			})
			return
		}
		response.Error(c, err)
		return
	}

	h.metrics.RecordAssignmentsCreated(len(result.AssignmentIDs))
	response.Created(c, result)
}

// Unassign godoc
// @Summary Cancel assignments by scope
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Absence ID"
// @Param payload body dto.UnassignShiftsRequest true "Candidate and scope"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences/{id}/assignments/unassign [post]
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	var req dto.UnassignShiftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.service.UnassignShifts(c.Request.Context(), tenantFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordAssignmentsRemoved(result.RemovedCount)
	response.JSON(c, http.StatusOK, result, nil)
}
