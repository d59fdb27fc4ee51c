package tmin

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Extract reads the per-record dump of the configured variable and
// writes one CSV row per scalar observation, columns
// (time, x, y, value), no header. Tokens are copied verbatim, so
// values equal to the missing-value sentinel pass through unchanged
// and time stays in raw origin-relative form.
//
// When a coordinate stream is supplied, the grid-position columns are
// replaced by the stream entry at the row's sequential position,
// giving (time, longitude, latitude, value).
func Extract(r io.Reader, cfg *Config, coords []Coord, w io.Writer) (int64, error) {
	if cfg.VarPos < 0 || cfg.XPos < 0 || cfg.YPos < 0 {
		return 0, errors.Wrap(ErrMalformedConfig, "var, x and y positions are required for extraction")
	}

	bw := bufio.NewWriter(w)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var rows int64
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		val, err := tokenAt(fields, cfg.VarPos)
		if err != nil {
			return rows, err
		}
		x, err := tokenAt(fields, cfg.XPos)
		if err != nil {
			return rows, err
		}
		y, err := tokenAt(fields, cfg.YPos)
		if err != nil {
			return rows, err
		}
		// Datasets without a time axis emit a constant zero column.
		tm := "0"
		if cfg.TimePos >= 0 {
			if tm, err = tokenAt(fields, cfg.TimePos); err != nil {
				return rows, err
			}
		}
		if coords != nil {
			if rows >= int64(len(coords)) {
				return rows, errors.Newf("coordinate stream exhausted after %d pairs", len(coords))
			}
			c := coords[rows]
			x = strconv.FormatFloat(c.Lon, 'g', -1, 64)
			y = strconv.FormatFloat(c.Lat, 'g', -1, 64)
		}

		bw.WriteString(tm)
		bw.WriteByte(',')
		bw.WriteString(x)
		bw.WriteByte(',')
		bw.WriteString(y)
		bw.WriteByte(',')
		bw.WriteString(val)
		bw.WriteByte('\n')
		rows++
	}
	if err := sc.Err(); err != nil {
		return rows, errors.Wrap(err, "reading record dump")
	}
	return rows, bw.Flush()
}

// tokenAt maps a dimension ordinal to its value token. Every column of
// a record line is a label/value token pair, so ordinal p lives at
// token index 2p+1.
func tokenAt(fields []string, pos int) (string, error) {
	i := 2*pos + 1
	if i >= len(fields) {
		return "", errors.Newf("record line has %d tokens, ordinal %d needs %d", len(fields), pos, i+1)
	}
	return fields[i], nil
}
