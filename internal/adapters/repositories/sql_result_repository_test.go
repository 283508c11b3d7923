package repositories

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/db"
)

func TestResultRowsRoundsAndNulls(t *testing.T) {
	rows, err := resultRows([]domain.AreaResult{{
		AreaID: "a1", AreaName: "Alpha",
		Records: []domain.ETARecord{
			{Properties: map[string]any{"id": "o1"}, ETA: map[string]float64{"school": math.Inf(1), "clinic": 175.56}},
			{Properties: map[string]any{}, ETA: map[string]float64{"clinic": 10.4}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "o1", rows[0].OriginID)
	require.Len(t, rows[0].POI, 2)
	assert.Equal(t, "clinic", rows[0].POI[0].Type)
	assert.Equal(t, int64(176), *rows[0].POI[0].Seconds)
	assert.Nil(t, rows[0].POI[1].Seconds)

	assert.Equal(t, "1", rows[1].OriginID)
	assert.Equal(t, int64(10), *rows[1].POI[0].Seconds)
}

func TestMemoryOperationLog(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryOperationLog()

	_, err := l.Start(ctx, "run-1", "central")
	require.NoError(t, err)
	require.NoError(t, l.Log(ctx, "run-1", domain.OpCodeRouting, "computing", nil))
	require.NoError(t, l.Finish(ctx, "run-1", domain.OperationComplete))

	op, ok := l.Operation("run-1")
	require.True(t, ok)
	assert.Equal(t, domain.OperationComplete, op.Status)
	assert.Len(t, l.Entries("run-1"), 1)

	assert.Error(t, l.Log(ctx, "missing", "x", "y", nil))
	assert.Error(t, l.Finish(ctx, "missing", domain.OperationFailed))
}

// Runs against a real Postgres when TEST_DATABASE_URL is set.
func TestSQLRepositoriesIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	conn, err := db.Open(ctx, url, 2)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, InitSchema(ctx, conn))

	ops := NewSQLOperationLog(conn)
	_, err = ops.Start(ctx, "it-run", "integration")
	require.NoError(t, err)
	require.NoError(t, ops.Log(ctx, "it-run", domain.OpCodeResults, "saving", map[string]any{"records": 1}))

	repo := NewSQLResultRepository(conn)
	results := []domain.AreaResult{{
		AreaID: "a1", AreaName: "Alpha",
		Records: []domain.ETARecord{{
			Properties: map[string]any{"id": "o1"}, Lat: 1, Lon: 2,
			ETA: map[string]float64{"clinic": 12.6, "school": math.Inf(1)},
		}},
	}}
	require.NoError(t, repo.SaveResults(ctx, "it-run", results))
	require.NoError(t, repo.SaveResults(ctx, "it-run", results))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT count(*) FROM results WHERE run_id = $1`, "it-run").Scan(&n))
	assert.Equal(t, 1, n)

	var nulls int
	require.NoError(t, conn.QueryRowContext(ctx, `
	SELECT count(*) FROM results_poi rp JOIN results r ON r.id = rp.result_id
	WHERE r.run_id = $1 AND rp.time IS NULL`, "it-run").Scan(&nulls))
	assert.Equal(t, 1, nulls)

	require.NoError(t, ops.Finish(ctx, "it-run", domain.OperationComplete))
}
