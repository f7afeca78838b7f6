package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/tidemark-io/tidemark/internal/core/errors"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// Handler serves the subscription plan endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the billing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the billing routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/plans", h.ListPlansHandler)
	r.GET("/v1/tenants/:tenant_id/plan", h.GetPlanHandler)
	r.POST("/v1/tenants/:tenant_id/plan", h.SubscribeHandler)
	r.PUT("/v1/tenants/:tenant_id/plan", h.ChangePlanHandler)
}

// planRequest is the subscribe/change request body.
type planRequest struct {
	PlanName string `json:"plan_name" binding:"required"`
}

// ListPlansHandler returns the available catalog plan names.
func (h *Handler) ListPlansHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.service.AvailablePlans()})
}

// GetPlanHandler returns the tenant's effective plan. Tenants without a
// subscription row get the default basic plan with subscribed=false.
func (h *Handler) GetPlanHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	p, subscribed, err := h.service.GetPlan(c.Request.Context(), tenantID)
	if err != nil {
		slog.Error("Failed to fetch plan", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to fetch subscription plan",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan":       p,
		"subscribed": subscribed,
	})
}

// SubscribeHandler creates a subscription from a catalog template.
func (h *Handler) SubscribeHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "plan_name is required",
		})
		return
	}

	p, err := h.service.Subscribe(c.Request.Context(), tenantID, req.PlanName)
	if err != nil {
		writePlanError(c, tenantID, req.PlanName, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"plan": p})
}

// ChangePlanHandler updates an existing subscription to a different template.
func (h *Handler) ChangePlanHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "plan_name is required",
		})
		return
	}

	p, err := h.service.ChangePlan(c.Request.Context(), tenantID, req.PlanName)
	if err != nil {
		writePlanError(c, tenantID, req.PlanName, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": p})
}

func writePlanError(c *gin.Context, tenantID, planName string, err error) {
	switch {
	case errors.Is(err, ErrUnknownPlan):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   err.Error(),
		})
	case errors.Is(err, storage.ErrDuplicate):
		c.JSON(http.StatusConflict, httperr.ErrorResponse{
			ErrorType: httperr.HttpDuplicatePlanError,
			Message:   "Tenant already has a subscription plan",
		})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "Tenant has no subscription plan to change",
		})
	default:
		slog.Error("Plan operation failed", "tenant_id", tenantID, "plan", planName, "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to update subscription plan",
		})
	}
}
