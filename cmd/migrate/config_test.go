package main

import (
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfscan/internal/config"
)

func TestMigrationSource_EnvOverride(t *testing.T) {
	fsys, dir := migrationSource(config.Config{MigrationsDir: "/custom/migrations"})
	assert.Nil(t, fsys)
	assert.Equal(t, "/custom/migrations", dir)
}

func TestMigrationSource_Embedded(t *testing.T) {
	fsys, dir := migrationSource(config.Config{})
	require.NotNil(t, fsys)
	assert.Equal(t, "migrations", dir)

	goose.SetBaseFS(fsys)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	require.NoError(t, err)
	assert.Len(t, migrations, 3)
}
