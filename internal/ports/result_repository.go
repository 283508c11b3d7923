package ports

import (
	"context"

	"accessibility-eta-service/internal/domain"
)

// Port: a boundary for persisting the merged results of a region run.
type ResultRepository interface {
	SaveResults(ctx context.Context, runID string, results []domain.AreaResult) error
}

// Port: a boundary for recording user-facing progress of long running analyses.
type OperationLog interface {
	Start(ctx context.Context, id, name string) (domain.Operation, error)
	Log(ctx context.Context, operationID, code, message string, data map[string]any) error
	Finish(ctx context.Context, operationID, status string) error
}

// Port: a boundary for writing region results to files.
// Export returns the paths written.
type ResultExporter interface {
	Export(ctx context.Context, region string, results []domain.AreaResult) ([]string, error)
}
