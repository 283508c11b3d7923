package services

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
	"go.uber.org/atomic"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/ports"
)

func squareArea(id string, minLon, minLat, maxLon, maxLat float64) domain.AdminArea {
	ring := orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}
	return domain.AdminArea{
		ID:         id,
		Name:       "area " + id,
		Geometry:   orb.MultiPolygon{{ring}},
		Properties: map[string]any{"id": id},
	}
}

func origin(seq int, lon, lat float64) domain.Origin {
	return domain.Origin{Seq: seq, Point: orb.Point{lon, lat}, Properties: map[string]any{"name": seq}}
}

func poi(seq int, typ string, lon, lat float64) domain.POI {
	return domain.POI{Seq: seq, Type: typ, Point: orb.Point{lon, lat}}
}

// goroutineLauncher runs each area worker on a goroutine, tracking the
// peak number of workers alive at once.
type goroutineLauncher struct {
	factory func(areaID string) ports.OracleFactory

	running atomic.Int64
	peak    atomic.Int64
	killed  atomic.Int64
}

type goroutineHandle struct {
	msgs   chan domain.WorkerMessage
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	once   sync.Once
	l      *goroutineLauncher
}

func (l *goroutineLauncher) Launch(ctx context.Context, job domain.AreaJob) (ports.AreaHandle, error) {
	ctx, cancel := context.WithCancel(ctx)
	h := &goroutineHandle{
		msgs:   make(chan domain.WorkerMessage, 16),
		done:   make(chan struct{}),
		cancel: cancel,
		l:      l,
	}

	n := l.running.Inc()
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}

	go func() {
		defer close(h.done)
		defer l.running.Dec()
		defer close(h.msgs)

		var last domain.WorkerMessage
		err := RunAreaWorker(ctx, l.factory(job.Area.ID), job, func(m domain.WorkerMessage) {
			if m.Type == domain.MessageError {
				last = m
			}
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
			h.err = &domain.WorkerFailure{
				AreaID: job.Area.ID, AreaName: job.Area.Name, ExitCode: 1,
				Message: last.Data, Stack: last.Stack,
			}
		}
	}()
	return h, nil
}

func (h *goroutineHandle) Messages() <-chan domain.WorkerMessage { return h.msgs }

func (h *goroutineHandle) Wait() error {
	<-h.done
	return h.err
}

func (h *goroutineHandle) Kill() {
	h.once.Do(func() {
		h.l.killed.Inc()
		h.cancel()
	})
}
