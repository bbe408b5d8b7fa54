package migration

import (
	"strings"
	"testing"

	"github.com/smallbiznis/tryon/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAutoMigratesNonPostgres(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Apply(conn, "sqlite"))
	for _, table := range []string{"accounts", "sessions", "usage_events", "credit_purchases", "payment_events", "audit_logs", "widget_configs", "products", "widget_events"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	// idempotent
	require.NoError(t, Apply(conn, "sqlite"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir(migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
	assert.Positive(t, ups)
}

func TestApplyRequiresConnection(t *testing.T) {
	assert.Error(t, Apply(nil, "sqlite"))
}
