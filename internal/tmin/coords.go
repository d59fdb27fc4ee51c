package tmin

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/climgrid/tminx/internal/cdl"
)

// Coord is one longitude/latitude pair of an expanded coordinate
// stream.
type Coord struct {
	Lon float64
	Lat float64
}

// ExpandCoordinates reads the rotated-pole grid's 2-D coordinate
// variables and replicates the per-cell pair list once per time step,
// matching the record dump's ordering (time slowest, grid cells in
// row-major order within each step).
func ExpandCoordinates(ctx context.Context, tool cdl.Tool, file string, cfg *Config) ([]Coord, error) {
	if !cfg.Rotated() {
		return nil, errors.Wrap(ErrUnsupportedGrid, "config names no 2-D coordinate variables")
	}
	if cfg.TimeSize <= 0 {
		return nil, errors.Wrapf(ErrMalformedConfig, "time_size must be positive, got %d", cfg.TimeSize)
	}

	lons, err := tool.Coordinates(ctx, file, cfg.LongitudeName)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", cfg.LongitudeName)
	}
	lats, err := tool.Coordinates(ctx, file, cfg.LatitudeName)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", cfg.LatitudeName)
	}
	if len(lons) != len(lats) {
		return nil, errors.Newf("coordinate variables disagree: %d longitudes, %d latitudes", len(lons), len(lats))
	}

	cells := make([]Coord, len(lons))
	for i := range cells {
		cells[i] = Coord{Lon: lons[i], Lat: lats[i]}
	}
	stream := make([]Coord, 0, len(cells)*cfg.TimeSize)
	for t := 0; t < cfg.TimeSize; t++ {
		stream = append(stream, cells...)
	}
	return stream, nil
}
