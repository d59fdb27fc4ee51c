package cdl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// "double tmin(time, lat, lon) ;" up to the dimension list.
var varDeclPrefixRE = regexp.MustCompile(`^\s*[A-Za-z_]\w*\s+([A-Za-z_][\w@.+-]*)\s*\(`)

// Exec delegates the dumps to external NetCDF utilities. Command lines
// are templates with {file} and {var} placeholders, so any tool whose
// output matches the expected projections can be dropped in.
type Exec struct {
	// HeaderArgv emits the CDL metadata dump, e.g.
	// ["ncdump", "-h", "{file}"].
	HeaderArgv []string
	// RecordsArgv emits one observation per line, e.g.
	// ["ncks", "--trd", "-C", "-H", "-v", "{var}", "{file}"].
	// name[idx]=value tokens are normalized into label/value pairs.
	RecordsArgv []string
}

// NewExec returns an Exec wired to the stock NetCDF utilities.
func NewExec() *Exec {
	return &Exec{
		HeaderArgv:  []string{"ncdump", "-h", "{file}"},
		RecordsArgv: []string{"ncks", "--trd", "-C", "-H", "-v", "{var}", "{file}"},
	}
}

func (e *Exec) Header(ctx context.Context, file, variable string) (string, error) {
	out, err := e.run(ctx, e.HeaderArgv, file, variable)
	if err != nil {
		return "", err
	}
	if variable == "" {
		return out, nil
	}
	return variableBlock(out, variable), nil
}

func (e *Exec) Records(ctx context.Context, file, variable string) (io.ReadCloser, error) {
	cmd, err := e.command(ctx, e.RecordsArgv, file, variable)
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "piping record dump")
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting %s", cmd.Path)
	}

	pr, pw := io.Pipe()
	go func() {
		w := bufio.NewWriter(pw)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var err error
		for sc.Scan() {
			line := normalizeRecordLine(sc.Text())
			if line == "" {
				continue
			}
			if _, err = fmt.Fprintln(w, line); err != nil {
				break
			}
		}
		if err == nil {
			err = sc.Err()
		}
		if ferr := w.Flush(); err == nil {
			err = ferr
		}
		if err != nil {
			// The consumer abandoned the stream; a tool still
			// producing would block Wait on a full pipe.
			cmd.Process.Kill()
		}
		if werr := cmd.Wait(); err == nil && werr != nil {
			err = errors.Wrapf(werr, "%s: %s", cmd.Path, strings.TrimSpace(stderr.String()))
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (e *Exec) Coordinates(ctx context.Context, file, variable string) ([]float64, error) {
	rc, err := e.Records(ctx, file, variable)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var vals []float64
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		f, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "coordinate variable %s", variable)
		}
		vals = append(vals, f)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "dumping coordinate variable %s", variable)
	}
	return vals, nil
}

func (e *Exec) command(ctx context.Context, argv []string, file, variable string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, errors.New("cdl: no command configured")
	}
	args := make([]string, 0, len(argv)-1)
	for _, a := range argv[1:] {
		a = strings.ReplaceAll(a, "{file}", file)
		a = strings.ReplaceAll(a, "{var}", variable)
		args = append(args, a)
	}
	return exec.CommandContext(ctx, argv[0], args...), nil
}

func (e *Exec) run(ctx context.Context, argv []string, file, variable string) (string, error) {
	cmd, err := e.command(ctx, argv, file, variable)
	if err != nil {
		return "", err
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "%s: %s", cmd.Path, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// normalizeRecordLine rewrites name[idx]=value tokens into label/value
// pairs. Lines already in pair form pass through unchanged.
func normalizeRecordLine(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	out := make([]string, 0, 2*len(fields))
	for _, tok := range fields {
		label, value, ok := strings.Cut(tok, "=")
		if !ok {
			out = append(out, tok)
			continue
		}
		if i := strings.IndexByte(label, '['); i >= 0 {
			label = label[:i]
		}
		out = append(out, label, value)
	}
	return strings.Join(out, " ")
}

// variableBlock restricts a full CDL dump to one variable's
// declaration and attribute lines.
func variableBlock(dump, variable string) string {
	var b strings.Builder
	attrPrefix := strings.ToLower(variable) + ":"
	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.ToLower(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(trimmed, attrPrefix):
			b.WriteString(line)
			b.WriteByte('\n')
		default:
			if m := varDeclPrefixRE.FindStringSubmatch(line); m != nil && strings.EqualFold(m[1], variable) {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}
