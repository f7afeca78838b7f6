package aggregation

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/tidemark-io/tidemark/internal/core/errors"
)

const dateLayout = "2006-01-02"

// Handler exposes the bulk aggregation and retention admin operations.
type Handler struct {
	service *Service
	sweeper *Sweeper
}

// NewHandler creates the admin handler.
func NewHandler(service *Service, sweeper *Sweeper) *Handler {
	return &Handler{service: service, sweeper: sweeper}
}

// RegisterRoutes registers the aggregation admin routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/tenants/:tenant_id/aggregate", h.AggregateHandler)
	r.POST("/v1/tenants/:tenant_id/retention/sweep", h.SweepHandler)
}

// aggregateRequest is the bulk re-aggregation request body.
type aggregateRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
}

// AggregateHandler triggers a full bucket rebuild from raw event history.
func (h *Handler) AggregateHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var req aggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "campaign_id, start_date and end_date are required",
		})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "start_date must be formatted as YYYY-MM-DD",
		})
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "end_date must be formatted as YYYY-MM-DD",
		})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "end_date must not be before start_date",
		})
		return
	}

	result, err := h.service.AggregateExistingData(c.Request.Context(), tenantID, req.CampaignID, start, end)
	if err != nil {
		slog.Error("Bulk re-aggregation failed",
			"tenant_id", tenantID,
			"campaign_id", req.CampaignID,
			"error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to re-aggregate data",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SweepHandler runs an on-demand retention sweep for one tenant.
func (h *Handler) SweepHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	result, err := h.sweeper.Sweep(c.Request.Context(), tenantID)
	if err != nil {
		slog.Error("Retention sweep failed", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to sweep expired raw events",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
