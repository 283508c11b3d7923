package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Postgres-backed implementation of the ResultRepository port.
type SQLResultRepository struct{ DB *sql.DB }

func NewSQLResultRepository(db *sql.DB) *SQLResultRepository {
	return &SQLResultRepository{DB: db}
}

type poiTime struct {
	Type    string
	Seconds *int64
}

type resultRow struct {
	AreaID   string
	AreaName string
	OriginID string
	Lat, Lon float64
	Props    []byte
	POI      []poiTime
}

// resultRows flattens area results into one row per origin. Times are
// rounded to whole seconds; unreachable types have no time.
func resultRows(results []domain.AreaResult) ([]resultRow, error) {
	var rows []resultRow
	for _, ar := range results {
		for i, rec := range ar.Records {
			props, err := json.Marshal(rec.Properties)
			if err != nil {
				return nil, fmt.Errorf("area %q record %d: marshal properties: %w", ar.AreaID, i, err)
			}

			row := resultRow{
				AreaID:   ar.AreaID,
				AreaName: ar.AreaName,
				OriginID: originID(rec.Properties, i),
				Lat:      rec.Lat,
				Lon:      rec.Lon,
				Props:    props,
			}
			types := make([]string, 0, len(rec.ETA))
			for t := range rec.ETA {
				types = append(types, t)
			}
			slices.Sort(types)
			for _, t := range types {
				pt := poiTime{Type: t}
				if rec.Reachable(t) {
					s := int64(math.Round(rec.ETA[t]))
					pt.Seconds = &s
				}
				row.POI = append(row.POI, pt)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func originID(props map[string]any, fallback int) string {
	if v, ok := props["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return strconv.Itoa(fallback)
}

// SaveResults replaces the stored results of runID in one transaction.
func (s *SQLResultRepository) SaveResults(ctx context.Context, runID string, results []domain.AreaResult) (err error) {
	defer obs.Time(ctx, "results.SaveResults")(&err)

	if s.DB == nil {
		return errors.New("save results: DB is nil")
	}

	rows, err := resultRows(results)
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save results: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = $1;`, runID); err != nil {
		return fmt.Errorf("save results: clear run %q: %w", runID, err)
	}

	resultStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO results (run_id, admin_area_id, admin_area_name, origin_id, lat, lon, properties)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id;
	`)
	if err != nil {
		return fmt.Errorf("save results: prepare results insert: %w", err)
	}
	defer resultStmt.Close()

	poiStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO results_poi (result_id, type, time)
	VALUES ($1, $2, $3);
	`)
	if err != nil {
		return fmt.Errorf("save results: prepare results_poi insert: %w", err)
	}
	defer poiStmt.Close()

	for _, r := range rows {
		var id int64
		err := resultStmt.QueryRowContext(ctx, runID, r.AreaID, r.AreaName, r.OriginID, r.Lat, r.Lon, string(r.Props)).Scan(&id)
		if err != nil {
			return fmt.Errorf("save results: insert area=%q origin=%q: %w", r.AreaID, r.OriginID, err)
		}
		for _, p := range r.POI {
			var t sql.NullInt64
			if p.Seconds != nil {
				t = sql.NullInt64{Int64: *p.Seconds, Valid: true}
			}
			if _, err := poiStmt.ExecContext(ctx, id, p.Type, t); err != nil {
				return fmt.Errorf("save results: insert poi time origin=%q type=%q: %w", r.OriginID, p.Type, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save results: commit tx: %w", err)
	}
	return nil
}
