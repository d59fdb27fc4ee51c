package tmin

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/climgrid/tminx/internal/cdl"
)

// The metadata dump is line-oriented CDL, one declaration per line.
// All lookups are single-pass, case-insensitive, first-match searches;
// the format has exactly one consumer, so no parse tree is built.
var (
	// "double tmin(time, lat, lon) ;"
	varDeclRE = regexp.MustCompile(`^\s*[A-Za-z_]\w*\s+([A-Za-z_][\w@.+-]*)\s*\(([^)]*)\)\s*;`)
	// "time = 365 ;" or "time = UNLIMITED ; // (365 currently)"
	dimDeclRE = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*=\s*(\d+|UNLIMITED)\s*;(?:\s*//\s*\((\d+)\s+currently\))?`)
	// `time:units = "days since 2000-01-01" ;`
	daysSinceRE = regexp.MustCompile(`(?i)days\s+since\s+"?([^";]+)`)
)

// Infer builds a Config from the dataset's metadata dump and a
// case-insensitive variable-name hint. The hint matches the first
// declared variable whose case-folded name starts with it.
func Infer(ctx context.Context, tool cdl.Tool, file, hint string) (*Config, error) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return nil, errors.Wrap(ErrVariableNotFound, "empty variable hint")
	}

	full, err := tool.Header(ctx, file, "")
	if err != nil {
		return nil, errors.Wrapf(err, "probing metadata of %s", file)
	}

	cfg := newConfig()
	name, ok := findVariable(full, hint)
	if !ok {
		return nil, errors.Wrapf(ErrVariableNotFound, "no variable matches hint %q", hint)
	}
	cfg.DisplayName = name
	cfg.Varname = strings.ToLower(name)

	restricted, err := tool.Header(ctx, file, name)
	if err != nil {
		return nil, errors.Wrapf(err, "probing metadata of variable %s", name)
	}
	dims, ok := dimensionList(restricted, name)
	if !ok {
		return nil, errors.Wrapf(ErrVariableNotFound, "variable %s vanished from restricted dump", name)
	}
	cfg.VarPos = len(dims)

	// First matching dimension in declared order; each lookup is
	// independently optional here, the extractor enforces what it
	// actually needs.
	for i, d := range dims {
		folded := strings.ToLower(d)
		if cfg.TimePos < 0 && strings.Contains(folded, "time") {
			cfg.TimePos = i
		}
		if cfg.XPos < 0 && strings.Contains(folded, "lon") {
			cfg.XPos = i
		}
		if cfg.YPos < 0 && strings.Contains(folded, "lat") {
			cfg.YPos = i
		}
	}

	cfg.MissingValue = missingValue(restricted, name)
	cfg.TimeOrigin = timeOrigin(full)

	size, ok := dimensionSize(full, "time")
	if !ok {
		return nil, errors.Wrapf(ErrTimeDimensionNotFound, "dataset %s", file)
	}
	cfg.TimeSize = size

	if lon, lat, ok := rotatedCoords(full, name); ok {
		cfg.LongitudeName = lon
		cfg.LatitudeName = lat
	}

	if err := cfg.checkOrdinals(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findVariable returns the display name of the first declared variable
// whose case-folded name starts with the case-folded hint.
func findVariable(dump, hint string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		m := varDeclRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(m[1]), hint) {
			return m[1], true
		}
	}
	return "", false
}

// dimensionList returns the variable's dimension names in declared
// order, i.e. the ordinal for dims[i] is i.
func dimensionList(dump, name string) ([]string, bool) {
	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		m := varDeclRE.FindStringSubmatch(sc.Text())
		if m == nil || !strings.EqualFold(m[1], name) {
			continue
		}
		parts := strings.Split(m[2], ",")
		dims := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				dims = append(dims, p)
			}
		}
		return dims, true
	}
	return nil, false
}

// missingValue returns the raw sentinel token of the variable's
// missing_value attribute, "" if the attribute is absent. CDL numeric
// type suffixes are stripped so the token stays comparable with the
// record dump.
func missingValue(dump, name string) string {
	needle := strings.ToLower(name) + ":missing_value"
	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return ""
		}
		tok := fields[len(fields)-1]
		if trimmed := strings.TrimRight(tok, "bBsSlLfFdDuU"); trimmed != tok {
			if _, err := strconv.ParseFloat(strings.TrimSuffix(trimmed, "."), 64); err == nil {
				tok = trimmed
			}
		}
		if rest := strings.TrimSuffix(tok, "."); rest != tok {
			if _, err := strconv.ParseFloat(rest, 64); err == nil {
				tok = rest
			}
		}
		return tok
	}
	return ""
}

// timeOrigin returns the origin of the first "days since" units
// declaration anywhere in the dump, "" if none is declared.
func timeOrigin(dump string) string {
	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		if m := daysSinceRE.FindStringSubmatch(sc.Text()); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// dimensionSize returns the declared size of the dimension whose
// case-folded name equals name. UNLIMITED dimensions report their
// current size.
func dimensionSize(dump, name string) (int, bool) {
	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		m := dimDeclRE.FindStringSubmatch(sc.Text())
		if m == nil || !strings.EqualFold(m[1], name) {
			continue
		}
		tok := m[2]
		if tok == "UNLIMITED" {
			if m[3] == "" {
				return 0, false
			}
			tok = m[3]
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// rotatedCoords looks for a pair of 2-D coordinate variables holding
// explicit longitudes and latitudes. Bounds variables are skipped.
func rotatedCoords(dump, target string) (lon, lat string, ok bool) {
	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		m := varDeclRE.FindStringSubmatch(sc.Text())
		if m == nil || strings.EqualFold(m[1], target) {
			continue
		}
		folded := strings.ToLower(m[1])
		if strings.Contains(folded, "bnds") || strings.Contains(folded, "bounds") || strings.Contains(folded, "vertices") {
			continue
		}
		if strings.Count(m[2], ",") != 1 {
			continue
		}
		switch {
		case lon == "" && strings.Contains(folded, "lon"):
			lon = m[1]
		case lat == "" && strings.Contains(folded, "lat"):
			lat = m[1]
		}
	}
	if lon == "" || lat == "" {
		return "", "", false
	}
	return lon, lat, true
}
