package services

import (
	"sync"
	"time"

	"accessibility-eta-service/internal/domain"
)

// ProgressSink receives the message stream of every area worker of a run.
// Messages carry no control authority.
type ProgressSink interface {
	AreaStarted(areaID, name string)
	Message(m domain.WorkerMessage)
	AreaFinished(areaID string, err error)
}

const (
	AreaPending = "pending"
	AreaRunning = "running"
	AreaDone    = "done"
	AreaFailed  = "failed"
)

type AreaProgress struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Squares   int       `json:"squares"`
	Remaining int       `json:"remaining"`
	Records   int       `json:"records"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressTracker keeps remaining-square counters on the receiving side.
// Workers only report squarecount once and one square per finished cell.
type ProgressTracker struct {
	mu    sync.Mutex
	order []string
	areas map[string]*AreaProgress
	now   func() time.Time
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{areas: make(map[string]*AreaProgress), now: time.Now}
}

func (p *ProgressTracker) AreaStarted(areaID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.area(areaID)
	a.Name = name
	a.State = AreaRunning
	a.StartedAt = p.now()
	a.UpdatedAt = a.StartedAt
}

func (p *ProgressTracker) Message(m domain.WorkerMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.area(m.AreaID)
	a.UpdatedAt = p.now()
	switch m.Type {
	case domain.MessageStatus:
		a.Status = m.Data
	case domain.MessageSquareCount:
		a.Squares = m.Count
		a.Remaining = m.Count
	case domain.MessageSquare:
		if a.Remaining > 0 {
			a.Remaining--
		}
	case domain.MessageDone:
		a.Records = len(m.Records)
	case domain.MessageError:
		a.Error = m.Data
	}
}

func (p *ProgressTracker) AreaFinished(areaID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.area(areaID)
	a.UpdatedAt = p.now()
	if err != nil {
		a.State = AreaFailed
		if a.Error == "" {
			a.Error = err.Error()
		}
		return
	}
	a.State = AreaDone
}

// Snapshot returns a copy of every area in first-seen order.
func (p *ProgressTracker) Snapshot() []AreaProgress {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]AreaProgress, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.areas[id])
	}
	return out
}

// Remaining returns the squares still outstanding across all areas.
func (p *ProgressTracker) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, a := range p.areas {
		n += a.Remaining
	}
	return n
}

func (p *ProgressTracker) area(id string) *AreaProgress {
	a, ok := p.areas[id]
	if !ok {
		a = &AreaProgress{ID: id, State: AreaPending}
		p.areas[id] = a
		p.order = append(p.order, id)
	}
	return a
}

type noopSink struct{}

func (noopSink) AreaStarted(string, string)   {}
func (noopSink) Message(domain.WorkerMessage) {}
func (noopSink) AreaFinished(string, error)   {}
