package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the Postgres schema for operations, results and the nearest
// distance cache.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createOperationsQuery := `
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createOperationLogsQuery := `
	CREATE TABLE IF NOT EXISTS operation_logs (
		id BIGSERIAL PRIMARY KEY,
		operation_id TEXT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		message TEXT NOT NULL,
		data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createResultsQuery := `
	CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		admin_area_id TEXT NOT NULL,
		admin_area_name TEXT NOT NULL,
		origin_id TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		properties JSONB
	);
	`

	createResultsPOIQuery := `
	CREATE TABLE IF NOT EXISTS results_poi (
		result_id BIGINT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		time INTEGER,
		PRIMARY KEY (result_id, type)
	);
	`

	createNearestCacheQuery := `
	CREATE TABLE IF NOT EXISTS nearest_cache (
		profile TEXT NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		distance_meters DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (profile, lon, lat)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_results_run_area
	ON results(run_id, admin_area_id);
	`

	statements := []string{
		createOperationsQuery,
		createOperationLogsQuery,
		createResultsQuery,
		createResultsPOIQuery,
		createNearestCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
