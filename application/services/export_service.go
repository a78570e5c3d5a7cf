package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/domain/token"
	apperrors "reportexport/pkg/errors"
)

// ExportService starts report export operations: it submits the job to the
// export backend, registers an orchestrator instance for it, and mints the
// continuation token the client polls with.
type ExportService struct {
	client   ports.ExportClient
	registry *orchestrator.Registry
	logger   *zap.Logger
}

// NewExportService creates an export service.
func NewExportService(
	client ports.ExportClient,
	registry *orchestrator.Registry,
	logger *zap.Logger,
) *ExportService {
	return &ExportService{
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

// Start submits a new export job and begins tracking it. Submission failure
// propagates to the caller and leaves no record behind. The instance ID
// doubles as the backend's output file prefix, which is what ties completion
// notifications back to the operation.
func (s *ExportService) Start(ctx context.Context, params ports.ExportParams) (token.Token, error) {
	instanceID := uuid.New().String()
	params.NamePrefix = instanceID

	jobID, err := s.client.Submit(ctx, params)
	if err != nil {
		s.logger.Error("export submission failed",
			zap.String("instanceID", instanceID),
			zap.Error(err),
		)
		return token.Token{}, apperrors.NewExternalError("export submission", err)
	}

	if _, err := s.registry.Start(ctx, instanceID, jobID); err != nil {
		return token.Token{}, err
	}

	return token.Token{InstanceID: instanceID, JobID: jobID, Attempt: 0}, nil
}
