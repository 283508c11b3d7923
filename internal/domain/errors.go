package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoWorkArea marks a grid cell that does not intersect its admin area.
	// It is an expected empty result, never a failure.
	ErrNoWorkArea = errors.New("grid cell does not intersect admin area")
	// ErrNoOrigins marks a work area without origins. Also an empty result,
	// never a failure.
	ErrNoOrigins = errors.New("no origins in work area")
)

// OracleError is a failed routing oracle query. It is fatal to the square
// and to the area worker running it.
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string { return fmt.Sprintf("oracle %s: %v", e.Op, e.Err) }

func (e *OracleError) Unwrap() error { return e.Err }

// WorkerFailure is an area worker that terminated abnormally. It fails the
// whole region run.
type WorkerFailure struct {
	AreaID   string
	AreaName string
	ExitCode int
	Message  string
	Stack    string
}

func (e *WorkerFailure) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown"
	}
	return fmt.Sprintf("area worker %q (%s) exited with code %d: %s", e.AreaID, e.AreaName, e.ExitCode, msg)
}
