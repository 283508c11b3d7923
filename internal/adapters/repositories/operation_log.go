package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"accessibility-eta-service/internal/domain"
)

// Postgres-backed implementation of the OperationLog port.
type SQLOperationLog struct{ DB *sql.DB }

func NewSQLOperationLog(db *sql.DB) *SQLOperationLog {
	return &SQLOperationLog{DB: db}
}

func (s *SQLOperationLog) Start(ctx context.Context, id, name string) (domain.Operation, error) {
	if s.DB == nil {
		return domain.Operation{}, errors.New("start operation: DB is nil")
	}

	op := domain.Operation{ID: id, Name: name, Status: domain.OperationRunning}
	err := s.DB.QueryRowContext(ctx, `
	INSERT INTO operations (id, name, status)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name,
		status = EXCLUDED.status,
		updated_at = now()
	RETURNING created_at, updated_at;
	`, id, name, domain.OperationRunning).Scan(&op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return domain.Operation{}, fmt.Errorf("start operation %q: %w", id, err)
	}
	return op, nil
}

func (s *SQLOperationLog) Log(ctx context.Context, operationID, code, message string, data map[string]any) error {
	if s.DB == nil {
		return errors.New("log operation: DB is nil")
	}

	var payload any
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("log operation %q: marshal data: %w", operationID, err)
		}
		payload = string(b)
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO operation_logs (operation_id, code, message, data)
	VALUES ($1, $2, $3, $4);
	`, operationID, code, message, payload)
	if err != nil {
		return fmt.Errorf("log operation %q code=%s: %w", operationID, code, err)
	}
	return nil
}

func (s *SQLOperationLog) Finish(ctx context.Context, operationID, status string) error {
	if s.DB == nil {
		return errors.New("finish operation: DB is nil")
	}

	res, err := s.DB.ExecContext(ctx, `
	UPDATE operations SET status = $2, updated_at = now() WHERE id = $1;
	`, operationID, status)
	if err != nil {
		return fmt.Errorf("finish operation %q: %w", operationID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish operation %q: not found", operationID)
	}
	return nil
}

// In-memory OperationLog for dry runs and tests.
type MemoryOperationLog struct {
	mu      sync.Mutex
	ops     map[string]*domain.Operation
	entries []domain.OperationLogEntry
	now     func() time.Time
}

func NewMemoryOperationLog() *MemoryOperationLog {
	return &MemoryOperationLog{ops: make(map[string]*domain.Operation), now: time.Now}
}

func (m *MemoryOperationLog) Start(ctx context.Context, id, name string) (domain.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	op := &domain.Operation{ID: id, Name: name, Status: domain.OperationRunning, CreatedAt: now, UpdatedAt: now}
	m.ops[id] = op
	return *op, nil
}

func (m *MemoryOperationLog) Log(ctx context.Context, operationID, code, message string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ops[operationID]; !ok {
		return fmt.Errorf("log operation %q: not found", operationID)
	}
	m.entries = append(m.entries, domain.OperationLogEntry{
		OperationID: operationID,
		Code:        code,
		Message:     message,
		Data:        data,
		CreatedAt:   m.now(),
	})
	return nil
}

func (m *MemoryOperationLog) Finish(ctx context.Context, operationID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.ops[operationID]
	if !ok {
		return fmt.Errorf("finish operation %q: not found", operationID)
	}
	op.Status = status
	op.UpdatedAt = m.now()
	return nil
}

// Operation returns a copy of the operation with the given id.
func (m *MemoryOperationLog) Operation(id string) (domain.Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.ops[id]
	if !ok {
		return domain.Operation{}, false
	}
	return *op, true
}

// Entries returns the log entries of an operation in write order.
func (m *MemoryOperationLog) Entries(operationID string) []domain.OperationLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.OperationLogEntry
	for _, e := range m.entries {
		if e.OperationID == operationID {
			out = append(out, e)
		}
	}
	return out
}
