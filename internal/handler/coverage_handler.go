package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careloop/staffing-api/internal/service"
	"github.com/careloop/staffing-api/pkg/response"
)

// CoverageHandler exposes coverage request materialization.
type CoverageHandler struct {
	service *service.CoverageService
}

// NewCoverageHandler constructs handler.
func NewCoverageHandler(svc *service.CoverageService) *CoverageHandler {
	return &CoverageHandler{service: svc}
}

// Get godoc
// @Summary Fetch or materialize the coverage request for an absence
// @Tags Coverage
// @Produce json
// @Param id path string true "Absence or time-off request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences/{id}/coverage [get]
func (h *CoverageHandler) Get(c *gin.Context) {
	result, err := h.service.GetCoverageRequest(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
