package repositories

import (
	"context"

	"github.com/satriahrh/fixit/server/domain/entities"
)

// AnalysisLog stores completed troubleshoot requests for auditing
type AnalysisLog interface {
	Create(ctx context.Context, record *entities.AnalysisRecord) error
	GetByRequestID(ctx context.Context, requestID string) (*entities.AnalysisRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*entities.AnalysisRecord, error)
}
