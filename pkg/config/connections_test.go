package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/querypad/pkg/models"
)

func TestLoadConnections_FromFileWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  sales:
    name: Sales
    driver: postgres
    inactivity_timeout_ms: 60000
    host: db.internal
    port: 5432
    user: "{{user.email}}"
    ssl_mode: require
  local:
    name: Local
    driver: sqlite
    filename: /data/local.db
`), 0644))

	t.Setenv("QUERYPAD_CONNECTIONS__sales__password", "from-env")
	t.Setenv("QUERYPAD_CONNECTIONS__sales__max_rows", "250")
	t.Setenv("QUERYPAD_CONNECTIONS__extra__name", "Extra")
	t.Setenv("QUERYPAD_CONNECTIONS__extra__driver", "mysql")
	t.Setenv("QUERYPAD_CONNECTIONS__extra__host", "mysql")

	conns, err := LoadConnections(path)
	require.NoError(t, err)
	require.Len(t, conns, 3)

	assert.Equal(t, []string{"extra", "local", "sales"}, []string{conns[0].ID, conns[1].ID, conns[2].ID})

	sales := conns[2]
	assert.Equal(t, "Sales", sales.Name)
	assert.Equal(t, "postgres", sales.Driver)
	assert.Equal(t, int64(60000), sales.InactivityTimeoutMs)
	assert.Equal(t, 250, sales.MaxRows)
	assert.Equal(t, "db.internal", sales.Fields["host"])
	assert.Equal(t, 5432, sales.Fields["port"])
	assert.Equal(t, "{{user.email}}", sales.Fields["user"])
	assert.Equal(t, "from-env", sales.Fields["password"])
	assert.NotContains(t, sales.Fields, "name")
	assert.NotContains(t, sales.Fields, "driver")

	extra := conns[0]
	assert.Equal(t, models.ConnectionConfig{
		ID: "extra", Name: "Extra", Driver: "mysql",
		Fields: map[string]any{"host": "mysql"},
	}, extra)
}

func TestLoadConnections_MissingFile(t *testing.T) {
	conns, err := LoadConnections(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestApplyConnectionEnv_Malformed(t *testing.T) {
	byID := map[string]models.ConnectionConfig{}

	err := applyConnectionEnv(byID, []string{"QUERYPAD_CONNECTIONS__onlyid=x"})
	assert.Error(t, err)

	err = applyConnectionEnv(byID, []string{"QUERYPAD_CONNECTIONS__c__max_rows=lots"})
	assert.Error(t, err)

	err = applyConnectionEnv(byID, []string{"UNRELATED=1", "PATH=/bin"})
	assert.NoError(t, err)
	assert.Empty(t, byID)
}
