package tmin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfigFromFile(t *testing.T) {
	path := writeConfig(t, `# extraction settings
varname Tmin
var_position 3
time_position 0
y_position 1
x_position 2
time_origin 2000-01-01 00:00:00
time_size 365
missing_value -9999

longitude_name lon
latitude_name lat
`)
	cfg, err := ConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "tmin", cfg.Varname)
	assert.Equal(t, "Tmin", cfg.DisplayName)
	assert.Equal(t, 3, cfg.VarPos)
	assert.Equal(t, 0, cfg.TimePos)
	assert.Equal(t, 1, cfg.YPos)
	assert.Equal(t, 2, cfg.XPos)
	assert.Equal(t, "2000-01-01 00:00:00", cfg.TimeOrigin, "value keeps its embedded spaces")
	assert.Equal(t, 365, cfg.TimeSize)
	assert.Equal(t, "-9999", cfg.MissingValue)
	assert.True(t, cfg.Rotated())
}

func TestConfigFromFileMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no varname", "var_position 3\nx_position 2\ny_position 1\n"},
		{"no var position", "varname tmin\nx_position 2\ny_position 1\n"},
		{"no x position", "varname tmin\nvar_position 3\ny_position 1\n"},
		{"no y position", "varname tmin\nvar_position 3\nx_position 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConfigFromFile(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrMalformedConfig)
		})
	}
}

func TestConfigFromFileBadInteger(t *testing.T) {
	_, err := ConfigFromFile(writeConfig(t, "varname tmin\nvar_position three\nx_position 2\ny_position 1\n"))
	assert.ErrorIs(t, err, ErrMalformedConfig)
}

func TestConfigFromFileDuplicateOrdinals(t *testing.T) {
	_, err := ConfigFromFile(writeConfig(t, "varname tmin\nvar_position 2\nx_position 2\ny_position 1\n"))
	assert.ErrorIs(t, err, ErrMalformedConfig)
}

func TestConfigFromFileLoneCoordinateName(t *testing.T) {
	_, err := ConfigFromFile(writeConfig(t, "varname tmin\nvar_position 3\nx_position 2\ny_position 1\nlongitude_name lon\n"))
	assert.ErrorIs(t, err, ErrMalformedConfig)
}

func TestConfigFromFileTimePositionOptional(t *testing.T) {
	cfg, err := ConfigFromFile(writeConfig(t, "varname tmin\nvar_position 2\nx_position 1\ny_position 0\n"))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.TimePos)
	assert.False(t, cfg.Rotated())
}

func TestConfigFromFileNotFound(t *testing.T) {
	_, err := ConfigFromFile(filepath.Join(t.TempDir(), "absent.conf"))
	assert.Error(t, err)
}
