package repositories

import (
	"context"

	"github.com/satriahrh/fixit/server/domain/entities"
)

// MultimodalModel abstracts the remote image+text inference service
type MultimodalModel interface {
	// Generate sends the prompt parts and returns the raw reply text and any
	// search grounding evidence
	Generate(ctx context.Context, req entities.ModelRequest) (*entities.ModelOutput, error)
}

// ModelGateway is the guarded entry point every gate uses to reach the model
type ModelGateway interface {
	Invoke(ctx context.Context, req entities.ModelRequest) (*entities.ModelResult, error)
	InvokeGrounded(ctx context.Context, req entities.ModelRequest) (*entities.GroundingResult, error)
	QuotaStatus() entities.QuotaStatus
	ResetBreaker()
	BreakerOpen() bool
}
