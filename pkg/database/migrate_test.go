package database

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrderedAndEmbedded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "001_webinars.sql", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS webinars")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Name, migrations[i].Name)
	}
	for _, m := range migrations {
		assert.True(t, strings.HasSuffix(m.Name, ".sql"))
	}
}

func TestMigrateRunsOnce(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, dsn, nil)
	require.NoError(t, err)
	defer pool.Close()

	_, err = Migrate(ctx, pool)
	require.NoError(t, err)
	again, err := Migrate(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, again)

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE name = '001_webinars.sql'").Scan(&n))
	assert.Equal(t, 1, n)
}
