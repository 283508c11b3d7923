package repositories

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
)

// FileExporter writes region results as CSV, GeoJSON and JSON files into Dir.
type FileExporter struct {
	Dir string
	now func() time.Time
}

func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{Dir: dir, now: time.Now}
}

func (e *FileExporter) Export(ctx context.Context, region string, results []domain.AreaResult) (files []string, err error) {
	defer obs.Time(ctx, "export")(&err)

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create dir %q: %w", e.Dir, err)
	}

	base := filepath.Join(e.Dir, fmt.Sprintf("%s_%d", region, e.now().UnixMilli()))
	writers := []struct {
		ext   string
		write func(io.Writer, []domain.AreaResult) error
	}{
		{".csv", WriteCSV},
		{".geojson", WriteGeoJSON},
		{".json", WriteJSON},
	}

	for _, w := range writers {
		path := base + w.ext
		if err := writeFile(path, results, w.write); err != nil {
			return files, fmt.Errorf("export: %w", err)
		}
		files = append(files, path)
	}
	return files, nil
}

func writeFile(path string, results []domain.AreaResult, write func(io.Writer, []domain.AreaResult) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := write(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	return nil
}

// Column layout shared by every row: sorted property keys, coordinates,
// the admin area name, then one poi_<type> column per type.
func columns(results []domain.AreaResult) (props, types []string) {
	seenProps := map[string]struct{}{}
	seenTypes := map[string]struct{}{}
	for _, ar := range results {
		for _, rec := range ar.Records {
			for k := range rec.Properties {
				switch k {
				case "lat", "lon", "admin_area":
					continue
				}
				seenProps[k] = struct{}{}
			}
			for t := range rec.ETA {
				seenTypes[t] = struct{}{}
			}
		}
	}
	for k := range seenProps {
		props = append(props, k)
	}
	for t := range seenTypes {
		types = append(types, t)
	}
	slices.Sort(props)
	slices.Sort(types)
	return props, types
}

func WriteCSV(out io.Writer, results []domain.AreaResult) error {
	props, types := columns(results)

	w := csv.NewWriter(out)
	header := append(slices.Clone(props), "lat", "lon", "admin_area")
	for _, t := range types {
		header = append(header, "poi_"+t)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, ar := range results {
		for _, rec := range ar.Records {
			row := make([]string, 0, len(header))
			for _, k := range props {
				row = append(row, cell(rec.Properties[k]))
			}
			row = append(row, formatFloat(rec.Lat), formatFloat(rec.Lon), ar.AreaName)
			for _, t := range types {
				v, ok := rec.ETA[t]
				if !ok || math.IsInf(v, 0) || math.IsNaN(v) {
					row = append(row, "")
					continue
				}
				row = append(row, formatFloat(v))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func WriteGeoJSON(out io.Writer, results []domain.AreaResult) error {
	_, types := columns(results)

	fc := geojson.NewFeatureCollection()
	for _, ar := range results {
		for _, rec := range ar.Records {
			ft := geojson.NewFeature(orb.Point{rec.Lon, rec.Lat})
			ft.Properties["id"] = rec.Properties["id"]
			ft.Properties["name"] = rec.Properties["name"]
			ft.Properties["pop"] = population(rec.Properties)
			ft.Properties["admin_area"] = ar.AreaName
			for _, t := range types {
				if rec.Reachable(t) {
					ft.Properties["poi_"+t] = rec.ETA[t]
				} else {
					ft.Properties["poi_"+t] = nil
				}
			}
			fc.Append(ft)
		}
	}

	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

type areaJSON struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Results []domain.ETARecord `json:"results"`
}

func WriteJSON(out io.Writer, results []domain.AreaResult) error {
	areas := make([]areaJSON, 0, len(results))
	for _, ar := range results {
		recs := ar.Records
		if recs == nil {
			recs = []domain.ETARecord{}
		}
		areas = append(areas, areaJSON{ID: ar.AreaID, Name: ar.AreaName, Results: recs})
	}
	return json.NewEncoder(out).Encode(areas)
}

func population(props map[string]any) any {
	if v, ok := props["population"]; ok {
		return v
	}
	return props["pop"]
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
