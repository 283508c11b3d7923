package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"accessibility-eta-service/internal/domain"
)

func TestProgressTrackerCountsOnReceiverSide(t *testing.T) {
	p := NewProgressTracker()
	p.AreaStarted("a", "Alpha")
	p.AreaStarted("b", "Beta")

	p.Message(domain.SquareCountMessage("a", 3))
	p.Message(domain.SquareCountMessage("b", 2))
	p.Message(domain.SquareMessage("a", domain.SquareProcessed))
	p.Message(domain.SquareMessage("a", domain.SquareNoOrigins))
	assert.Equal(t, 3, p.Remaining())

	p.Message(domain.SquareMessage("a", domain.SquareProcessed))
	p.Message(domain.DoneMessage("a", make([]domain.ETARecord, 5)))
	p.AreaFinished("a", nil)

	p.Message(domain.ErrorMessage("b", errors.New("boom"), ""))
	p.AreaFinished("b", errors.New("worker failed"))

	snap := p.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, AreaDone, snap[0].State)
	assert.Equal(t, 0, snap[0].Remaining)
	assert.Equal(t, 5, snap[0].Records)

	assert.Equal(t, AreaFailed, snap[1].State)
	assert.Equal(t, "boom", snap[1].Error)
	assert.Equal(t, 2, snap[1].Remaining)
}

func TestProgressTrackerIgnoresExtraSquares(t *testing.T) {
	p := NewProgressTracker()
	p.Message(domain.SquareCountMessage("a", 1))
	p.Message(domain.SquareMessage("a", domain.SquareProcessed))
	p.Message(domain.SquareMessage("a", domain.SquareProcessed))
	assert.Equal(t, 0, p.Remaining())
	assert.Equal(t, AreaPending, p.Snapshot()[0].State)
}
