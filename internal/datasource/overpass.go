// Package datasource is the engine's example preprocessing data source
// (SPEC_FULL.md's preprocessing component): an Overpass API fetch over an
// area, producing one artifact per config.PreprocessingTask rather than one
// per tile, since a single OSM fetch has no spatial subdivision of its own.
package datasource

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Christian/go-overpass"

	"github.com/MeKo-Tech/tilepyramid/internal/types"
)

// OverpassConfig configures the Overpass API client backing
// OverpassDataSource.
type OverpassConfig struct {
	// Endpoint is the Overpass API URL (default: https://overpass-api.de/api/interpreter)
	Endpoint string
	// Workers controls parallelism (default: 2 for the public API)
	Workers int
	// RetryConfig configures retry behavior with exponential backoff
	RetryConfig *overpass.RetryConfig
	// HTTPClient allows a custom HTTP client (default: http.DefaultClient)
	HTTPClient *http.Client
}

// DefaultOverpassConfig returns sensible defaults for the public Overpass API.
func DefaultOverpassConfig() OverpassConfig {
	retryConfig := overpass.DefaultRetryConfig()
	return OverpassConfig{
		Endpoint:    "https://overpass-api.de/api/interpreter",
		Workers:     2,
		RetryConfig: &retryConfig,
		HTTPClient:  http.DefaultClient,
	}
}

// OverpassDataSource fetches OSM features for an area from the Overpass API.
type OverpassDataSource struct {
	client overpass.Client
}

// NewOverpassDataSource creates a data source against endpoint (empty uses
// the public Overpass API) with the default worker count.
func NewOverpassDataSource(endpoint string) *OverpassDataSource {
	cfg := DefaultOverpassConfig()
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	return NewOverpassDataSourceWithConfig(cfg)
}

// NewOverpassDataSourceWithConfig creates a data source with full
// configuration, including retry behavior.
func NewOverpassDataSourceWithConfig(cfg OverpassConfig) *OverpassDataSource {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://overpass-api.de/api/interpreter"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	var client overpass.Client
	if cfg.RetryConfig != nil {
		client = overpass.NewWithRetry(cfg.Endpoint, cfg.Workers, cfg.HTTPClient, *cfg.RetryConfig)
	} else {
		client = overpass.NewWithSettings(cfg.Endpoint, cfg.Workers, cfg.HTTPClient)
	}
	return &OverpassDataSource{client: client}
}

// FetchArea fetches OSM features intersecting bounds ([minLon, minLat,
// maxLon, maxLat]), filtering the query to a detail tier appropriate for
// zoom so low-zoom preprocessing runs stay cheap.
func (ds *OverpassDataSource) FetchArea(ctx context.Context, bounds [4]float64, zoom uint32) (*types.TileData, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	query := buildAreaQuery(bounds, zoom)

	// Note: this version of the Overpass client doesn't accept a context.
	result, err := ds.client.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}

	return &types.TileData{
		Bounds:    bounds,
		Zoom:      zoom,
		Features:  ExtractFeaturesFromOverpassResult(&result),
		FetchedAt: time.Now(),
		Source:    "overpass-api",
	}, nil
}

// Close releases client resources. It is a no-op: the underlying client
// holds no persistent connections.
func (ds *OverpassDataSource) Close() error {
	return nil
}

// buildAreaQuery builds an Overpass QL query over bounds. Coarser zooms
// fetch less detail: only major water/green features below zoom 5, major
// roads added from zoom 5, secondary roads/waterways/residential landuse
// from zoom 10, and the full feature set from zoom 14.
func buildAreaQuery(bounds [4]float64, zoom uint32) string {
	// bounds is [minLon, minLat, maxLon, maxLat]; Overpass wants
	// south,west,north,east.
	bbox := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", bounds[1], bounds[0], bounds[3], bounds[2])

	parts := []string{
		fmt.Sprintf(`way["natural"="water"](%s);`, bbox),
		fmt.Sprintf(`way["natural"="coastline"](%s);`, bbox),
		fmt.Sprintf(`relation["natural"="water"](%s);`, bbox),
		fmt.Sprintf(`way["landuse"="forest"](%s);`, bbox),
		fmt.Sprintf(`way["leisure"="park"](%s);`, bbox),
	}

	switch {
	case zoom >= 14:
		parts = append(parts,
			fmt.Sprintf(`way["highway"](%s);`, bbox),
			fmt.Sprintf(`way["waterway"](%s);`, bbox),
			fmt.Sprintf(`way["building"](%s);`, bbox),
			fmt.Sprintf(`way["landuse"="residential"](%s);`, bbox),
		)
	case zoom >= 10:
		parts = append(parts,
			fmt.Sprintf(`way["highway"~"motorway|trunk|primary|secondary|tertiary"](%s);`, bbox),
			fmt.Sprintf(`way["waterway"~"river|stream|canal"](%s);`, bbox),
			fmt.Sprintf(`way["landuse"="residential"](%s);`, bbox),
		)
	case zoom >= 5:
		parts = append(parts,
			fmt.Sprintf(`way["highway"~"motorway|trunk"](%s);`, bbox),
			fmt.Sprintf(`way["waterway"="river"](%s);`, bbox),
		)
	}

	query := "[out:json][timeout:60];\n(\n"
	for _, part := range parts {
		query += "  " + part + "\n"
	}
	query += ");\nout geom qt;"
	return query
}
