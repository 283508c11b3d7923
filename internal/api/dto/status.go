package dto

import "time"

type AreaStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Squares   int       `json:"squares"`
	Remaining int       `json:"remaining"`
	Records   int       `json:"records"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StatusResponse struct {
	Areas     []AreaStatus `json:"areas"`
	Remaining int          `json:"remaining_squares"`
	Done      int          `json:"areas_done"`
	Failed    int          `json:"areas_failed"`
}
