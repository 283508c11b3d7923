package isolation

import (
	"context"
	"sync"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/ports"
	"accessibility-eta-service/internal/services"
)

// InProcessLauncher runs each area worker on its own goroutine. Every worker
// opens a separate oracle handle through Factory.
type InProcessLauncher struct {
	Factory ports.OracleFactory
}

type inProcessHandle struct {
	msgs   chan domain.WorkerMessage
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

func (l *InProcessLauncher) Launch(ctx context.Context, job domain.AreaJob) (ports.AreaHandle, error) {
	ctx, cancel := context.WithCancel(ctx)
	h := &inProcessHandle{
		msgs:   make(chan domain.WorkerMessage, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(h.done)
		defer close(h.msgs)

		var last lastError
		err := services.RunAreaWorker(ctx, l.Factory, job, func(m domain.WorkerMessage) {
			last.observe(m)
			// Once killed, a full channel means nobody is reading.
			select {
			case h.msgs <- m:
				return
			default:
			}
			select {
			case h.msgs <- m:
			case <-ctx.Done():
			}
		})
		if err != nil {
			h.err = last.failure(job, 1)
		}
	}()

	return h, nil
}

func (h *inProcessHandle) Messages() <-chan domain.WorkerMessage { return h.msgs }

func (h *inProcessHandle) Wait() error {
	<-h.done
	h.cancel()
	return h.err
}

func (h *inProcessHandle) Kill() { h.cancel() }

// lastError remembers the most recent error message of a worker.
type lastError struct {
	mu  sync.Mutex
	msg domain.WorkerMessage
	ok  bool
}

func (l *lastError) observe(m domain.WorkerMessage) {
	if m.Type != domain.MessageError {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msg, l.ok = m, true
}

func (l *lastError) failure(job domain.AreaJob, exitCode int) *domain.WorkerFailure {
	l.mu.Lock()
	defer l.mu.Unlock()

	wf := &domain.WorkerFailure{AreaID: job.Area.ID, AreaName: job.Area.Name, ExitCode: exitCode}
	if l.ok {
		wf.Message = l.msg.Data
		wf.Stack = l.msg.Stack
	}
	return wf
}
