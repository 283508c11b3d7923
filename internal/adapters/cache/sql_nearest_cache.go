package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"accessibility-eta-service/internal/platform/obs"
)

// SQLNearestCache is a Postgres-backed cache of nearest-road distances,
// keyed by routing profile and point.
type SQLNearestCache struct {
	DB      *sql.DB
	Profile string
}

func NewSQLNearestCache(db *sql.DB, profile string) *SQLNearestCache {
	return &SQLNearestCache{DB: db, Profile: profile}
}

// Fetch cached distances for many points.
func (s *SQLNearestCache) GetMany(ctx context.Context, points []orb.Point) (_ map[orb.Point]float64, err error) {
	defer obs.Time(ctx, "nearest.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("nearest cache: db is nil")
	}

	uniq := uniquePoints(points)
	if len(uniq) == 0 {
		return map[orb.Point]float64{}, nil
	}

	lons := make([]float64, len(uniq))
	lats := make([]float64, len(uniq))
	for i, p := range uniq {
		lons[i], lats[i] = p.Lon(), p.Lat()
	}

	q := `
	SELECT c.lon, c.lat, c.distance_meters
	FROM nearest_cache c
	JOIN unnest($2::float8[], $3::float8[]) AS k(lon, lat)
		ON c.lon = k.lon AND c.lat = k.lat
	WHERE c.profile = $1;
	`

	rows, err := s.DB.QueryContext(ctx, q, s.Profile, lons, lats)
	if err != nil {
		return nil, fmt.Errorf("get nearest cache: query nearest_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[orb.Point]float64, len(uniq))
	for rows.Next() {
		var lon, lat, meters float64
		if err := rows.Scan(&lon, &lat, &meters); err != nil {
			return nil, fmt.Errorf("get nearest cache: scan rows: %w", err)
		}
		out[orb.Point{lon, lat}] = meters
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get nearest cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many nearest-road distances.
func (s *SQLNearestCache) PutMany(ctx context.Context, distances map[orb.Point]float64) error {
	if s.DB == nil {
		return errors.New("nearest cache: db is nil")
	}

	if len(distances) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert nearest cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO nearest_cache (profile, lon, lat, distance_meters)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (profile, lon, lat) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		updated_at = now();
	`)
	if err != nil {
		return fmt.Errorf("insert nearest cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for p, d := range distances {
		if _, err := stmt.ExecContext(ctx, s.Profile, p.Lon(), p.Lat(), d); err != nil {
			return fmt.Errorf("insert nearest cache point=%v: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert nearest cache commit: %w", err)
	}

	return nil
}

func uniquePoints(points []orb.Point) []orb.Point {
	seen := make(map[orb.Point]struct{}, len(points))
	uniq := make([]orb.Point, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		uniq = append(uniq, p)
	}
	return uniq
}
