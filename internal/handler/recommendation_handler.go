package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/service"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
	"github.com/careloop/staffing-api/pkg/response"
)

// RecommendationHandler exposes substitute ranking.
type RecommendationHandler struct {
	service *service.RecommendationService
	metrics *service.MetricsService
}

// NewRecommendationHandler constructs handler.
func NewRecommendationHandler(svc *service.RecommendationService, metrics *service.MetricsService) *RecommendationHandler {
	return &RecommendationHandler{service: svc, metrics: metrics}
}

// Recommend godoc
// @Summary Rank substitute candidates and covering combinations for an absence
// @Tags Recommendations
// @Produce json
// @Param id path string true "Absence ID"
// @Param includeFlexibleStaff query bool false "Include flex-tagged teachers as candidates"
// @Param includePastShifts query bool false "Evaluate shifts already in the past"
// @Param page query int false "Candidate page"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences/{id}/recommendations [get]
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var opts dto.RecommendOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}

	start := time.Now()
	result, err := h.service.Recommend(c.Request.Context(), tenantFromContext(c), c.Param("id"), opts)
	h.metrics.ObserveRecommendation(time.Since(start))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
