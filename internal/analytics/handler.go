package analytics

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/tidemark-io/tidemark/internal/core/errors"
)

const dateLayout = "2006-01-02"

// Handler serves the analytics read endpoints.
type Handler struct {
	service *Service
	nowFn   func() time.Time
}

// NewHandler creates the analytics handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RegisterRoutes registers the analytics read routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/tenants/:tenant_id/analytics/daily", h.DailyHandler)
	r.GET("/v1/tenants/:tenant_id/analytics/hourly", h.HourlyHandler)
	r.GET("/v1/tenants/:tenant_id/analytics/raw", h.RawHandler)
	r.GET("/v1/tenants/:tenant_id/analytics/storage", h.StorageHandler)
}

// queryRange extracts campaign/date query params, defaulting to the last 7
// days and to the tenant's implicit campaign.
func (h *Handler) queryRange(c *gin.Context, tenantID string) (campaignID string, start, end time.Time, ok bool) {
	campaignID = c.Query("campaign_id")
	if campaignID == "" {
		campaignID = "tenant_" + tenantID
	}

	now := h.nowFn()
	end = now.Truncate(24 * time.Hour)
	start = end.AddDate(0, 0, -7)

	if s := c.Query("start_date"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			writeValidationError(c, "start_date must be formatted as YYYY-MM-DD")
			return "", time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if s := c.Query("end_date"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			writeValidationError(c, "end_date must be formatted as YYYY-MM-DD")
			return "", time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	if end.Before(start) {
		writeValidationError(c, "end_date must not be before start_date")
		return "", time.Time{}, time.Time{}, false
	}
	return campaignID, start, end, true
}

// DailyHandler serves daily aggregates, available on every plan.
func (h *Handler) DailyHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	campaignID, start, end, ok := h.queryRange(c, tenantID)
	if !ok {
		return
	}

	report, err := h.service.Daily(c.Request.Context(), tenantID, campaignID, start, end)
	if err != nil {
		writeServiceError(c, "daily analytics", tenantID, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HourlyHandler serves hourly aggregates for Pro and above.
func (h *Handler) HourlyHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	campaignID, start, end, ok := h.queryRange(c, tenantID)
	if !ok {
		return
	}

	report, err := h.service.Hourly(c.Request.Context(), tenantID, campaignID, start, end)
	if err != nil {
		writeServiceError(c, "hourly analytics", tenantID, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RawHandler serves recent raw events for Enterprise tenants.
func (h *Handler) RawHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	campaignID, start, end, ok := h.queryRange(c, tenantID)
	if !ok {
		return
	}

	limit := 0
	if s := c.Query("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			writeValidationError(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	// Raw reads use an exclusive end bound; extend to cover the end date.
	report, err := h.service.Raw(c.Request.Context(), tenantID, campaignID, start, end.AddDate(0, 0, 1), limit)
	if err != nil {
		writeServiceError(c, "raw analytics", tenantID, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// StorageHandler serves the storage footprint summary.
func (h *Handler) StorageHandler(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	report, err := h.service.Storage(c.Request.Context(), tenantID)
	if err != nil {
		writeServiceError(c, "storage summary", tenantID, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func writeValidationError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpValidationError,
		Message:   msg,
	})
}

func writeServiceError(c *gin.Context, op, tenantID string, err error) {
	var entitlement *EntitlementError
	if errors.As(err, &entitlement) {
		c.JSON(http.StatusForbidden, httperr.ErrorResponse{
			ErrorType: httperr.HttpEntitlementError,
			Message:   entitlement.Error(),
			Details: map[string]interface{}{
				"required_tier": entitlement.RequiredTier,
				"actual_tier":   entitlement.ActualTier,
			},
		})
		return
	}

	slog.Error("Analytics query failed", "operation", op, "tenant_id", tenantID, "error", err)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   "Failed to query analytics",
	})
}
