package repositories

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"accessibility-eta-service/internal/domain"
)

func readFeatures(path string) (*geojson.FeatureCollection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse geojson %q: %w", path, err)
	}
	return fc, nil
}

// Load admin areas from a Polygon/MultiPolygon FeatureCollection.
func LoadAdminAreas(path string) ([]domain.AdminArea, error) {
	fc, err := readFeatures(path)
	if err != nil {
		return nil, fmt.Errorf("load admin areas: %w", err)
	}
	areas, err := AdminAreasFromFeatures(fc)
	if err != nil {
		return nil, fmt.Errorf("load admin areas: %w", err)
	}
	return areas, nil
}

func AdminAreasFromFeatures(fc *geojson.FeatureCollection) ([]domain.AdminArea, error) {
	areas := make([]domain.AdminArea, 0, len(fc.Features))
	for i, f := range fc.Features {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry %T", i, f.Geometry)
		}

		id := featureID(f, i)
		name := strings.TrimSpace(f.Properties.MustString("name", ""))
		if name == "" {
			name = id
		}
		areas = append(areas, domain.AdminArea{
			ID:         id,
			Name:       name,
			Geometry:   mp,
			Properties: map[string]any(f.Properties.Clone()),
		})
	}
	return areas, nil
}

// Load origins from a Point FeatureCollection. Input order is kept in Seq.
func LoadOrigins(path string) ([]domain.Origin, error) {
	fc, err := readFeatures(path)
	if err != nil {
		return nil, fmt.Errorf("load origins: %w", err)
	}
	origins, err := OriginsFromFeatures(fc)
	if err != nil {
		return nil, fmt.Errorf("load origins: %w", err)
	}
	return origins, nil
}

func OriginsFromFeatures(fc *geojson.FeatureCollection) ([]domain.Origin, error) {
	origins := make([]domain.Origin, 0, len(fc.Features))
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: origin geometry must be a Point, got %T", i, f.Geometry)
		}
		props := map[string]any(f.Properties.Clone())
		if props == nil {
			props = map[string]any{}
		}
		if _, ok := props["id"]; !ok && f.ID != nil {
			props["id"] = f.ID
		}
		origins = append(origins, domain.Origin{Seq: i, Point: p, Properties: props})
	}
	return origins, nil
}

// Load POIs grouped by typeProperty. Features without the property fall
// back to a type named after the file.
func LoadPOIs(path, typeProperty string) (domain.POIsByType, error) {
	fc, err := readFeatures(path)
	if err != nil {
		return nil, fmt.Errorf("load pois: %w", err)
	}
	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pois, err := POIsFromFeatures(fc, typeProperty, fallback)
	if err != nil {
		return nil, fmt.Errorf("load pois: %w", err)
	}
	return pois, nil
}

func POIsFromFeatures(fc *geojson.FeatureCollection, typeProperty, fallbackType string) (domain.POIsByType, error) {
	if typeProperty == "" {
		typeProperty = "type"
	}

	out := domain.POIsByType{}
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: poi geometry must be a Point, got %T", i, f.Geometry)
		}
		typ := strings.TrimSpace(f.Properties.MustString(typeProperty, ""))
		if typ == "" {
			typ = fallbackType
		}
		out[typ] = append(out[typ], domain.POI{Seq: len(out[typ]), Type: typ, Point: p})
	}
	return out, nil
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	if v, ok := f.Properties["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return strconv.Itoa(i)
}
