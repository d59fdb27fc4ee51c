package cdl

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttrs struct {
	keys []string
	vals map[string]any
}

func (a *fakeAttrs) Keys() []string                  { return a.keys }
func (a *fakeAttrs) Get(key string) (any, bool)      { v, ok := a.vals[key]; return v, ok }
func (a *fakeAttrs) GetType(string) (string, bool)   { return "", false }
func (a *fakeAttrs) GetGoType(string) (string, bool) { return "", false }

type fakeVar struct {
	vals  any
	dims  []string
	typ   string
	attrs api.AttributeMap
}

func (v *fakeVar) Len() int64 {
	rv := reflect.ValueOf(v.vals)
	if rv.Kind() == reflect.Slice {
		return int64(rv.Len())
	}
	return 1
}
func (v *fakeVar) Values() (any, error) { return v.vals, nil }
func (v *fakeVar) GetSlice(begin, end int64) (any, error) {
	return reflect.ValueOf(v.vals).Slice(int(begin), int(end)).Interface(), nil
}
func (v *fakeVar) Dimensions() []string         { return v.dims }
func (v *fakeVar) Attributes() api.AttributeMap { return v.attrs }
func (v *fakeVar) Type() string                 { return v.typ }
func (v *fakeVar) GoType() string               { return "" }

type fakeGroup struct {
	order []string
	vars  map[string]api.VarGetter
	dims  []string
	sizes map[string]uint64
}

func (g *fakeGroup) Close()                       {}
func (g *fakeGroup) Attributes() api.AttributeMap { return nil }
func (g *fakeGroup) ListVariables() []string      { return g.order }
func (g *fakeGroup) GetVariable(string) (*api.Variable, error) {
	return nil, errors.New("not implemented")
}
func (g *fakeGroup) GetVarGetter(name string) (api.VarGetter, error) {
	vg, ok := g.vars[name]
	if !ok {
		return nil, errors.Newf("no variable %q", name)
	}
	return vg, nil
}
func (g *fakeGroup) ListDimensions() []string { return g.dims }
func (g *fakeGroup) GetDimension(name string) (uint64, bool) {
	size, ok := g.sizes[name]
	return size, ok
}
func (g *fakeGroup) ListSubgroups() []string            { return nil }
func (g *fakeGroup) GetGroup(string) (api.Group, error) { return nil, errors.New("no subgroups") }
func (g *fakeGroup) ListTypes() []string                { return nil }
func (g *fakeGroup) GetType(string) (string, bool)      { return "", false }
func (g *fakeGroup) GetGoType(string) (string, bool)    { return "", false }

var _ api.Group = (*fakeGroup)(nil)

func testGroup() *fakeGroup {
	tmin := [][][]float32{
		{{1, 2, 3}, {4, 5, 6}},
		{{7, 8, 9}, {10, 11, 12}},
	}
	return &fakeGroup{
		order: []string{"tmin", "time", "lat", "lon", "mask"},
		dims:  []string{"time", "lat", "lon", "cell"},
		sizes: map[string]uint64{"time": 2, "lat": 2, "lon": 3, "cell": 3},
		vars: map[string]api.VarGetter{
			"tmin": &fakeVar{
				vals: tmin,
				dims: []string{"time", "lat", "lon"},
				typ:  "float",
				attrs: &fakeAttrs{
					keys: []string{"units", "missing_value"},
					vals: map[string]any{"units": "K", "missing_value": float64(-9999)},
				},
			},
			"time": &fakeVar{
				vals: []float64{0, 1},
				dims: []string{"time"},
				typ:  "double",
				attrs: &fakeAttrs{
					keys: []string{"units"},
					vals: map[string]any{"units": "days since 2000-01-01"},
				},
			},
			"lat": &fakeVar{vals: []float64{40.5, 41}, dims: []string{"lat"}, typ: "double"},
			"lon": &fakeVar{vals: []float64{10, 10.5, 11}, dims: []string{"lon"}, typ: "double"},
			// "cell" has no coordinate variable, only a declared size.
			"mask": &fakeVar{vals: []int32{1, 0, 1}, dims: []string{"cell"}, typ: "int"},
		},
	}
}

func TestRenderFullHeader(t *testing.T) {
	m, err := readMeta(testGroup(), "grid.nc")
	require.NoError(t, err)

	out := m.render("")
	assert.True(t, strings.HasPrefix(out, "netcdf grid {\n"))
	assert.Contains(t, out, "\ttime = 2 ;\n")
	assert.Contains(t, out, "\tlat = 2 ;\n")
	assert.Contains(t, out, "\tlon = 3 ;\n")
	assert.Contains(t, out, "\tcell = 3 ;\n", "declared but coordinate-less dimension kept")
	assert.Contains(t, out, "\tfloat tmin(time, lat, lon) ;\n")
	assert.Contains(t, out, "\t\ttmin:missing_value = -9999 ;\n")
	assert.Contains(t, out, "\t\ttime:units = \"days since 2000-01-01\" ;\n")
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestRenderRestrictedHeader(t *testing.T) {
	m, err := readMeta(testGroup(), "grid.nc")
	require.NoError(t, err)

	out := m.render("tmin")
	assert.Contains(t, out, "\tfloat tmin(time, lat, lon) ;\n")
	assert.Contains(t, out, "\t\ttmin:missing_value = -9999 ;\n")
	assert.NotContains(t, out, "time:units")
	assert.NotContains(t, out, "cell = 3")
}

func TestGroupRecords(t *testing.T) {
	rc, err := groupRecords(context.Background(), testGroup(), "tmin")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, "time 0 lat 40.5 lon 10 tmin 1", lines[0])
	assert.Equal(t, "time 0 lat 40.5 lon 11 tmin 3", lines[2])
	assert.Equal(t, "time 1 lat 41 lon 11 tmin 12", lines[11])
}

func TestGroupRecordsIndexFallback(t *testing.T) {
	rc, err := groupRecords(context.Background(), testGroup(), "mask")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "cell 0 mask 1\ncell 1 mask 0\ncell 2 mask 1\n", string(data))
}

func TestGroupRecordsUnknownVariable(t *testing.T) {
	_, err := groupRecords(context.Background(), testGroup(), "tmax")
	assert.Error(t, err)
}

func TestFloatValuesFlattensRowMajor(t *testing.T) {
	vg := &fakeVar{vals: [][]float64{{1, 2, 3}, {4, 5, 6}}, dims: []string{"rlat", "rlon"}, typ: "double"}
	vals, err := floatValues(vg)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, vals)

	vg = &fakeVar{vals: []int16{3, 1}, dims: []string{"x"}, typ: "short"}
	vals, err = floatValues(vg)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, vals)
}

func TestAttrValue(t *testing.T) {
	assert.Equal(t, `"days since 2000-01-01"`, attrValue("days since 2000-01-01"))
	assert.Equal(t, "-9999", attrValue(float64(-9999)))
	assert.Equal(t, "1, 2, 3", attrValue([]int32{1, 2, 3}))
}
