package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/spatial"
)

func searchConfig() domain.EngineConfig {
	return domain.EngineConfig{
		MaxTimeSeconds:    60,
		MaxSpeedKmh:       60,
		BufferStepSeconds: 900,
		MinPOICandidates:  4,
	}
}

// POIs north of the test area at roughly 11, 22, 33, 44, 56 and 67 km.
func northPOIs(lats ...float64) []domain.POI {
	pois := make([]domain.POI, 0, len(lats))
	for i, lat := range lats {
		pois = append(pois, poi(i, "clinic", 0.05, lat))
	}
	return pois
}

// wholeCell is the single grid cell covering a small area.
func wholeCell(area domain.AdminArea) spatial.Cell {
	return spatial.Partition(area, 1000)[0]
}

func TestSearchPOIsGrowsUntilMinimum(t *testing.T) {
	cell := wholeCell(squareArea("a", 0, 0, 0.1, 0.1))
	idx := spatial.NewPOIIndex(northPOIs(0.2, 0.3, 0.4, 0.5, 0.6, 0.7))

	res, err := SearchPOIs(context.Background(), idx, cell, searchConfig())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(res.POIs), 4)
	assert.Equal(t, 4, res.Iterations)
	assert.Equal(t, 60.0+3*900, res.TimeSeconds)
	assert.False(t, res.Exhausted)
}

func TestSearchPOIsSmallCategoryReturnsAll(t *testing.T) {
	cell := wholeCell(squareArea("a", 0, 0, 0.1, 0.1))
	idx := spatial.NewPOIIndex(northPOIs(0.3, 0.5))

	res, err := SearchPOIs(context.Background(), idx, cell, searchConfig())
	require.NoError(t, err)
	require.Len(t, res.POIs, 2)
	assert.Equal(t, 0, res.POIs[0].Seq)
	assert.Equal(t, 1, res.POIs[1].Seq)
}

func TestSearchPOIsEmptyCategory(t *testing.T) {
	cell := wholeCell(squareArea("a", 0, 0, 0.1, 0.1))

	res, err := SearchPOIs(context.Background(), spatial.NewPOIIndex(nil), cell, searchConfig())
	require.NoError(t, err)
	assert.Empty(t, res.POIs)
	assert.Equal(t, 1, res.Iterations)

	res, err = SearchPOIs(context.Background(), nil, cell, searchConfig())
	require.NoError(t, err)
	assert.Empty(t, res.POIs)
	assert.Equal(t, 1, res.Iterations)
}

func TestSearchPOIsIterationCapIsBestEffort(t *testing.T) {
	cell := wholeCell(squareArea("a", 0, 0, 0.1, 0.1))
	idx := spatial.NewPOIIndex(northPOIs(0.2, 0.3, 0.4, 0.5, 0.6, 0.7))

	cfg := searchConfig()
	cfg.MaxBufferIterations = 2
	res, err := SearchPOIs(context.Background(), idx, cell, cfg)
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.POIs, 1)
}

func TestSearchPOIsInsideAreaNeedsNoGrowth(t *testing.T) {
	cell := wholeCell(squareArea("a", 0, 0, 0.1, 0.1))
	idx := spatial.NewPOIIndex([]domain.POI{poi(0, "clinic", 0.05, 0.05)})

	res, err := SearchPOIs(context.Background(), idx, cell, searchConfig())
	require.NoError(t, err)
	assert.Len(t, res.POIs, 1)
	assert.Equal(t, 1, res.Iterations)
}

func TestSearchPOIsStopsOnCancel(t *testing.T) {
	cell := wholeCell(squareArea("a", 0, 0, 0.1, 0.1))
	// Far away and no iteration cap: only cancellation ends the search.
	idx := spatial.NewPOIIndex(northPOIs(80, 81, 82, 83))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SearchPOIs(ctx, idx, cell, searchConfig())
	require.ErrorIs(t, err, context.Canceled)
}
