package tmin

import "github.com/cockroachdb/errors"

// Error kinds raised by the extraction pipeline. Callers test for them
// with errors.Is; wrapping adds context without changing the kind.
var (
	ErrMalformedConfig       = errors.New("malformed extraction config")
	ErrVariableNotFound      = errors.New("variable not found in metadata")
	ErrTimeDimensionNotFound = errors.New("time dimension not found")
	ErrUnsupportedGrid       = errors.New("grid has no rotated-pole coordinate variables")
)
