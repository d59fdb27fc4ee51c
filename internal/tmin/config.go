// Package tmin turns a gridded dataset's textual metadata into an
// extraction configuration and its per-record dump into flat tabular
// records.
package tmin

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Config is the resolved extraction configuration: which variable to
// extract and where its axes sit in the per-record dump. It is built
// once per run, either from a config file or by inference over the
// metadata dump, and is read-only afterwards.
//
// Ordinals are 0-based: dimensions occupy 0..n-1 in declaration order
// and the variable's own column follows them. -1 means unset.
type Config struct {
	// Varname is the case-folded lookup key; DisplayName is the
	// variable's name exactly as the metadata spells it.
	Varname     string
	DisplayName string

	VarPos  int
	TimePos int
	XPos    int
	YPos    int

	// TimeOrigin is the calendar origin of the time axis ("days
	// since" it), left as the raw string from the metadata.
	TimeOrigin string
	TimeSize   int

	// MissingValue is the raw sentinel token, "" when the metadata
	// declares none. Records carrying it are emitted unchanged.
	MissingValue string

	// LongitudeName and LatitudeName name the 2-D coordinate
	// variables of a rotated-pole grid. Both set or both empty.
	LongitudeName string
	LatitudeName  string
}

func newConfig() *Config {
	return &Config{VarPos: -1, TimePos: -1, XPos: -1, YPos: -1}
}

// Rotated reports whether the grid stores explicit 2-D coordinates.
func (c *Config) Rotated() bool {
	return c.LongitudeName != "" && c.LatitudeName != ""
}

// checkOrdinals enforces the structural invariants shared by both
// resolution modes: set positions are pairwise distinct and the
// rotated-pole names come as a pair.
func (c *Config) checkOrdinals() error {
	seen := map[int]string{}
	for _, p := range []struct {
		key string
		pos int
	}{
		{"var_position", c.VarPos},
		{"time_position", c.TimePos},
		{"x_position", c.XPos},
		{"y_position", c.YPos},
	} {
		if p.pos < 0 {
			continue
		}
		if prev, ok := seen[p.pos]; ok {
			return errors.Wrapf(ErrMalformedConfig, "%s and %s share ordinal %d", prev, p.key, p.pos)
		}
		seen[p.pos] = p.key
	}
	if (c.LongitudeName == "") != (c.LatitudeName == "") {
		return errors.Wrap(ErrMalformedConfig, "longitude_name and latitude_name must be set together")
	}
	return nil
}

// ConfigFromFile parses a line-oriented "key value" configuration
// file. Blank lines and #-comments are skipped; unknown keys are
// ignored so files can carry notes for other tools.
func ConfigFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config %s", path)
	}
	defer f.Close()

	cfg := newConfig()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value := line, ""
		if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
			key, value = line[:i], strings.TrimSpace(line[i:])
		}
		if err := cfg.set(key, value); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var missing []string
	if cfg.Varname == "" {
		missing = append(missing, "varname")
	}
	if cfg.VarPos < 0 {
		missing = append(missing, "var_position")
	}
	if cfg.XPos < 0 {
		missing = append(missing, "x_position")
	}
	if cfg.YPos < 0 {
		missing = append(missing, "y_position")
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrMalformedConfig, "%s: missing %s", path, strings.Join(missing, ", "))
	}
	if err := cfg.checkOrdinals(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.Wrapf(ErrMalformedConfig, "%s: %q is not an integer", key, value)
		}
		return n, nil
	}
	var err error
	switch key {
	case "varname":
		c.DisplayName = value
		c.Varname = strings.ToLower(value)
	case "var_position":
		c.VarPos, err = atoi()
	case "time_position":
		c.TimePos, err = atoi()
	case "x_position":
		c.XPos, err = atoi()
	case "y_position":
		c.YPos, err = atoi()
	case "time_origin":
		c.TimeOrigin = value
	case "time_size":
		c.TimeSize, err = atoi()
	case "missing_value":
		c.MissingValue = value
	case "longitude_name":
		c.LongitudeName = value
	case "latitude_name":
		c.LatitudeName = value
	}
	return err
}
