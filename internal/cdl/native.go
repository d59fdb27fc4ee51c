package cdl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/cockroachdb/errors"
)

// Native reads dataset files in-process and renders the same textual
// projections an external dump tool would emit. It keeps the pipeline
// usable on hosts with no NetCDF utilities installed.
type Native struct{}

func (Native) Header(ctx context.Context, file, variable string) (string, error) {
	nc, err := netcdf.Open(file)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", file)
	}
	defer nc.Close()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := readMeta(nc, filepath.Base(file))
	if err != nil {
		return "", errors.Wrapf(err, "reading metadata of %s", file)
	}
	return m.render(variable), nil
}

func (Native) Records(ctx context.Context, file, variable string) (io.ReadCloser, error) {
	nc, err := netcdf.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", file)
	}
	rc, err := groupRecords(ctx, nc, variable)
	if err != nil {
		nc.Close()
		return nil, errors.Wrapf(err, "dumping %s from %s", variable, file)
	}
	return rc, nil
}

// groupRecords streams the record dump of one variable. On success it
// takes ownership of the group and closes it when the stream ends; on
// error the caller keeps ownership.
func groupRecords(ctx context.Context, nc api.Group, variable string) (io.ReadCloser, error) {
	vg, err := nc.GetVarGetter(variable)
	if err != nil {
		return nil, errors.Wrapf(err, "variable %s", variable)
	}
	dims := vg.Dimensions()
	shape, err := varShape(nc, vg)
	if err != nil {
		return nil, err
	}

	// Per-dimension coordinate values; a dimension without a
	// coordinate variable dumps its bare index instead.
	coords := make([][]float64, len(dims))
	for i, d := range dims {
		cg, err := nc.GetVarGetter(d)
		if err != nil || len(cg.Dimensions()) != 1 || cg.Dimensions()[0] != d {
			continue
		}
		if vals, err := floatValues(cg); err == nil {
			coords[i] = vals
		}
	}

	pr, pw := io.Pipe()
	go func() {
		err := writeRecords(ctx, pw, vg, variable, dims, shape, coords)
		nc.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (Native) Coordinates(ctx context.Context, file, variable string) ([]float64, error) {
	nc, err := netcdf.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", file)
	}
	defer nc.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vg, err := nc.GetVarGetter(variable)
	if err != nil {
		return nil, errors.Wrapf(err, "coordinate variable %s in %s", variable, file)
	}
	vals, err := floatValues(vg)
	if err != nil {
		return nil, errors.Wrapf(err, "reading coordinate variable %s", variable)
	}
	return vals, nil
}

// fileMeta is the in-memory form of a dataset header, kept only long
// enough to render CDL.
type fileMeta struct {
	name string
	dims []dimDecl
	vars []varDecl
}

type dimDecl struct {
	name string
	size int
}

type varDecl struct {
	name  string
	typ   string
	dims  []string
	attrs []attrDecl
}

type attrDecl struct {
	name  string
	value string
}

func readMeta(nc api.Group, fileName string) (*fileMeta, error) {
	m := &fileMeta{name: strings.TrimSuffix(fileName, filepath.Ext(fileName))}
	for _, d := range nc.ListDimensions() {
		size, ok := nc.GetDimension(d)
		if !ok {
			return nil, errors.Newf("dimension %s has no size", d)
		}
		m.dims = append(m.dims, dimDecl{name: d, size: int(size)})
	}

	for _, name := range nc.ListVariables() {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %s", name)
		}
		vd := varDecl{name: name, typ: vg.Type(), dims: vg.Dimensions()}
		if attrs := vg.Attributes(); attrs != nil {
			for _, k := range attrs.Keys() {
				if v, ok := attrs.Get(k); ok {
					vd.attrs = append(vd.attrs, attrDecl{name: k, value: attrValue(v)})
				}
			}
		}
		m.vars = append(m.vars, vd)
	}
	return m, nil
}

// render emits the CDL projection, restricted to one variable's block
// when variable is non-empty.
func (m *fileMeta) render(variable string) string {
	vars := m.vars
	dims := m.dims
	if variable != "" {
		vars = nil
		used := map[string]bool{}
		for _, v := range m.vars {
			if strings.EqualFold(v.name, variable) {
				vars = append(vars, v)
				for _, d := range v.dims {
					used[d] = true
				}
			}
		}
		dims = nil
		for _, d := range m.dims {
			if used[d.name] {
				dims = append(dims, d)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "netcdf %s {\n", m.name)
	if len(dims) > 0 {
		b.WriteString("dimensions:\n")
		for _, d := range dims {
			fmt.Fprintf(&b, "\t%s = %d ;\n", d.name, d.size)
		}
	}
	if len(vars) > 0 {
		b.WriteString("variables:\n")
		for _, v := range vars {
			if len(v.dims) == 0 {
				fmt.Fprintf(&b, "\t%s %s ;\n", v.typ, v.name)
			} else {
				fmt.Fprintf(&b, "\t%s %s(%s) ;\n", v.typ, v.name, strings.Join(v.dims, ", "))
			}
			for _, a := range v.attrs {
				fmt.Fprintf(&b, "\t\t%s:%s = %s ;\n", v.name, a.name, a.value)
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func attrValue(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = fmt.Sprintf("%v", rv.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%v", v)
}

// writeRecords walks the variable one outermost index at a time, the
// way the data is laid out on disk, and emits one label/value token
// pair per column.
func writeRecords(ctx context.Context, w io.Writer, vg api.VarGetter, variable string, dims []string, shape []int, coords [][]float64) error {
	bw := bufio.NewWriter(w)

	if len(dims) == 0 {
		v, err := vg.Values()
		if err != nil {
			return errors.Wrapf(err, "reading %s", variable)
		}
		fmt.Fprintf(bw, "%s %v\n", variable, v)
		return bw.Flush()
	}

	idx := make([]int, len(dims))
	for i := 0; i < shape[0]; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := vg.GetSlice(int64(i), int64(i+1))
		if err != nil {
			return errors.Wrapf(err, "reading %s step %d", variable, i)
		}
		rv := reflect.ValueOf(s)
		if rv.Kind() != reflect.Slice || rv.Len() != 1 {
			return errors.Newf("unexpected slice shape for %s step %d", variable, i)
		}
		idx[0] = i
		if err := walkValues(bw, rv.Index(0), 1, idx, dims, coords, variable); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func walkValues(w *bufio.Writer, v reflect.Value, depth int, idx []int, dims []string, coords [][]float64, variable string) error {
	if depth == len(dims) {
		for d, name := range dims {
			w.WriteString(name)
			w.WriteByte(' ')
			w.WriteString(coordToken(coords[d], idx[d]))
			w.WriteByte(' ')
		}
		w.WriteString(variable)
		w.WriteByte(' ')
		fmt.Fprintf(w, "%v\n", v.Interface())
		return nil
	}
	if v.Kind() != reflect.Slice {
		return errors.Newf("variable %s: expected %d dimensions, data ran out at %d", variable, len(dims), depth)
	}
	for j := 0; j < v.Len(); j++ {
		idx[depth] = j
		if err := walkValues(w, v.Index(j), depth+1, idx, dims, coords, variable); err != nil {
			return err
		}
	}
	return nil
}

func coordToken(vals []float64, i int) string {
	if i < len(vals) {
		return strconv.FormatFloat(vals[i], 'g', -1, 64)
	}
	return strconv.Itoa(i)
}

// varShape resolves the variable's extents from the file's dimension
// declarations.
func varShape(nc api.Group, vg api.VarGetter) ([]int, error) {
	dims := vg.Dimensions()
	shape := make([]int, len(dims))
	for i, d := range dims {
		size, ok := nc.GetDimension(d)
		if !ok {
			return nil, errors.Newf("variable dimension %s is not declared", d)
		}
		shape[i] = int(size)
	}
	return shape, nil
}

// floatValues flattens a numeric variable of any rank and width into a
// row-major []float64.
func floatValues(vg api.VarGetter) ([]float64, error) {
	vals, err := vg.Values()
	if err != nil {
		return nil, err
	}
	var out []float64
	if err := flattenFloats(reflect.ValueOf(vals), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenFloats(v reflect.Value, out *[]float64) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := flattenFloats(v.Index(i), out); err != nil {
				return err
			}
		}
		return nil
	case reflect.Float32, reflect.Float64:
		*out = append(*out, v.Float())
		return nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		*out = append(*out, float64(v.Int()))
		return nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		*out = append(*out, float64(v.Uint()))
		return nil
	default:
		return errors.Newf("non-numeric value of kind %s", v.Kind())
	}
}
