package domain

import "time"

// Phase codes recorded in an operation log.
const (
	OpCodeStart   = "start"
	OpCodeRouting = "routing"
	OpCodeResults = "results"
	OpCodeExport  = "export"
	OpCodeError   = "error"
)

const (
	OperationRunning  = "running"
	OperationComplete = "complete"
	OperationFailed   = "failed"
)

// Long running analysis tracked for user feedback.
type Operation struct {
	ID        string
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OperationLogEntry struct {
	OperationID string
	Code        string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}
