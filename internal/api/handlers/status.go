package handlers

import (
	"net/http"

	"accessibility-eta-service/internal/api/dto"
	"accessibility-eta-service/internal/services"
)

// ProgressSource is the read side of the progress tracker.
type ProgressSource interface {
	Snapshot() []services.AreaProgress
}

type StatusHandler struct {
	Progress ProgressSource
}

// Status reports per-area square progress of the current run.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.Progress == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no analysis running")
		return
	}

	snap := h.Progress.Snapshot()
	res := dto.StatusResponse{Areas: make([]dto.AreaStatus, 0, len(snap))}
	for _, a := range snap {
		res.Areas = append(res.Areas, dto.AreaStatus{
			ID:        a.ID,
			Name:      a.Name,
			State:     a.State,
			Squares:   a.Squares,
			Remaining: a.Remaining,
			Records:   a.Records,
			Status:    a.Status,
			Error:     a.Error,
			UpdatedAt: a.UpdatedAt,
		})
		res.Remaining += a.Remaining
		switch a.State {
		case services.AreaDone:
			res.Done++
		case services.AreaFailed:
			res.Failed++
		}
	}

	writeJSON(w, r, http.StatusOK, res)
}
