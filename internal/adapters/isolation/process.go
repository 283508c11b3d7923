package isolation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
	"accessibility-eta-service/internal/services"
)

// ProcessLauncher re-executes a binary as the area worker. The job goes to
// the child's stdin as one JSON document and messages come back on stdout,
// one JSON object per line.
type ProcessLauncher struct {
	Executable string
	Args       []string
	// Env of the child; nil inherits the parent environment.
	Env []string
	// Stderr of the child; nil means os.Stderr.
	Stderr io.Writer
}

// NewSelfLauncher re-executes the running binary with the worker subcommand.
func NewSelfLauncher(args ...string) (*ProcessLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("process launcher: resolve executable: %w", err)
	}
	return &ProcessLauncher{Executable: exe, Args: args}, nil
}

type processHandle struct {
	cmd      *exec.Cmd
	job      domain.AreaJob
	msgs     chan domain.WorkerMessage
	readDone chan struct{}
	last     lastError

	once sync.Once
	err  error
}

func (l *ProcessLauncher) Launch(ctx context.Context, job domain.AreaJob) (ports.AreaHandle, error) {
	cmd := exec.Command(l.Executable, l.Args...)
	cmd.Env = l.Env
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("launch area %q: stdin pipe: %w", job.Area.ID, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("launch area %q: stdout pipe: %w", job.Area.ID, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch area %q: start %s: %w", job.Area.ID, l.Executable, err)
	}

	h := &processHandle{
		cmd:      cmd,
		job:      job,
		msgs:     make(chan domain.WorkerMessage, 64),
		readDone: make(chan struct{}),
	}

	go func() {
		err := EncodeJob(stdin, job)
		_ = stdin.Close()
		if err != nil {
			obs.Logger(ctx).Warn("send area job", zap.String("area_id", job.Area.ID), zap.Error(err))
		}
	}()

	go func() {
		defer close(h.readDone)
		defer close(h.msgs)

		r := NewMessageReader(stdout)
		for {
			m, err := r.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					obs.Logger(ctx).Warn("read worker messages", zap.String("area_id", job.Area.ID), zap.Error(err))
				}
				// Drain so the child never blocks on a full pipe.
				_, _ = io.Copy(io.Discard, stdout)
				return
			}
			h.last.observe(m)
			h.msgs <- m
		}
	}()

	return h, nil
}

func (h *processHandle) Messages() <-chan domain.WorkerMessage { return h.msgs }

func (h *processHandle) Wait() error {
	h.once.Do(func() {
		<-h.readDone
		err := h.cmd.Wait()
		if err == nil {
			return
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		wf := h.last.failure(h.job, code)
		if wf.Message == "" {
			wf.Message = err.Error()
		}
		h.err = wf
	})
	return h.err
}

func (h *processHandle) Kill() {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

// ServeWorker is the child side of ProcessLauncher: it reads one job from
// stdin, runs it and streams messages to stdout. A non-nil error means the
// process should exit non-zero.
func ServeWorker(ctx context.Context, stdin io.Reader, stdout io.Writer, factory ports.OracleFactory) error {
	job, err := DecodeJob(stdin)
	if err != nil {
		return err
	}

	w := NewMessageWriter(stdout)
	var writeErr error
	err = services.RunAreaWorker(ctx, factory, job, func(m domain.WorkerMessage) {
		if err := w.Write(m); err != nil && writeErr == nil {
			writeErr = err
		}
	})
	if err != nil {
		return err
	}
	return writeErr
}
