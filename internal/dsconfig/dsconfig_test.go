package dsconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/dsconfig"
)

func TestLoadBytes_ParsesDatasourceTable(t *testing.T) {
	f, err := dsconfig.LoadBytes([]byte(`
[datasources.default]
provider = "sqlite"
url = "file:app.db"
`))
	require.NoError(t, err)

	e, err := f.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", e.Provider)
	assert.Equal(t, "file:app.db", e.URL)
}

func TestLoadBytes_RejectsUnsupportedProvider(t *testing.T) {
	_, err := dsconfig.LoadBytes([]byte(`
[datasources.default]
provider = "postgres"
url = "postgres://localhost/app"
`))
	assert.Error(t, err)
}

func TestResolve_FallsBackToEnvironmentWhenURLBlank(t *testing.T) {
	f, err := dsconfig.LoadBytes([]byte(`
[datasources.default]
provider = "sqlite"
`))
	require.NoError(t, err)

	t.Setenv("ORMGEN_default_URL", "file:from-env.db")

	e, err := f.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "file:from-env.db", e.URL)
}

func TestResolve_ErrorsWhenNoURLAnywhere(t *testing.T) {
	f, err := dsconfig.LoadBytes([]byte(`
[datasources.default]
provider = "sqlite"
`))
	require.NoError(t, err)

	_, err = f.Resolve("default")
	assert.Error(t, err)
}

func TestResolve_ErrorsOnUnknownDatasource(t *testing.T) {
	f, err := dsconfig.LoadBytes([]byte(`
[datasources.default]
provider = "sqlite"
url = "file:app.db"
`))
	require.NoError(t, err)

	_, err = f.Resolve("missing")
	assert.Error(t, err)
}
