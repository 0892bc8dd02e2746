package database

import (
	"strings"
	"testing"

	"github.com/nexuscrm/tenantcrm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	local := DSN(&config.Config{DBHost: "127.0.0.1", DBPort: 4000, DBUser: "root", DBName: "tenantcrm"})
	assert.True(t, strings.HasPrefix(local, "root@tcp(127.0.0.1:4000)/tenantcrm?"))
	assert.Contains(t, local, "parseTime=true")
	assert.Contains(t, local, "multiStatements=true")
	assert.NotContains(t, local, "tls=")

	remote := DSN(&config.Config{DBHost: "gateway.tidbcloud.com", DBPort: 4000, DBUser: "u", DBPassword: "p", DBName: "crm"})
	assert.Contains(t, remote, "tls=tidb")
}

func TestUpMigrationSQL(t *testing.T) {
	files, names, err := UpMigrationSQL()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "000001_core.up.sql", names[0])
	for _, n := range names {
		assert.Contains(t, files[n], "CREATE TABLE")
	}
}
