package ingestion

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tidemark-io/tidemark/internal/aggregation"
	"github.com/tidemark-io/tidemark/internal/core/event"
)

// EventProcessor is the slice of the aggregation pipeline ingestion needs.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, tenantID string, in event.Incoming) (*aggregation.ProcessResult, error)
}

type Service struct {
	pipeline         EventProcessor
	maxBodySizeBytes int
}

func NewService(pipeline EventProcessor, maxBodySizeMB int) *Service {
	if pipeline == nil {
		panic("ingestion: event processor must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		pipeline:         pipeline,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/tenants/:tenant_id/events", s.IngestHandler)
}
