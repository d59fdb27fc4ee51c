// Package cdl provides access to the textual projection of a gridded
// dataset: its CDL metadata dump and its per-record variable dump. The
// rest of the pipeline only ever sees these two text forms, never the
// binary file format.
package cdl

import (
	"context"
	"io"
)

// Tool produces the textual projections of a dataset file.
type Tool interface {
	// Header returns the CDL metadata dump of the file. If variable is
	// non-empty the dump is restricted to that variable's declaration
	// and attribute block.
	Header(ctx context.Context, file, variable string) (string, error)

	// Records streams the per-record dump of one variable: one line per
	// scalar observation, whitespace-separated label/value token pairs
	// in dimension declaration order, the variable's own pair last.
	Records(ctx context.Context, file, variable string) (io.ReadCloser, error)

	// Coordinates returns the flat row-major value list of a coordinate
	// variable.
	Coordinates(ctx context.Context, file, variable string) ([]float64, error)
}
