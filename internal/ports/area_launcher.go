package ports

import (
	"context"

	"accessibility-eta-service/internal/domain"
)

// Starts area workers behind an isolation boundary.
type AreaLauncher interface {
	Launch(ctx context.Context, job domain.AreaJob) (AreaHandle, error)
}

// A running area worker.
type AreaHandle interface {
	// Messages is closed once the worker stops sending.
	Messages() <-chan domain.WorkerMessage
	// Wait blocks until the worker exits and returns *domain.WorkerFailure on
	// abnormal termination.
	Wait() error
	// Kill terminates the worker without draining in-flight work.
	Kill()
}
