package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableIdent(t *testing.T) {
	assert.Equal(t, `"tmin_records"`, tableIdent("tmin_records"))
	assert.Equal(t, `"climate"."tmin_records"`, tableIdent("climate.tmin_records"))
	assert.Equal(t, `"bad""name"`, tableIdent(`bad"name`), "quotes are escaped, not interpreted")
}
