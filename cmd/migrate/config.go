package main

import (
	"io/fs"

	"shelfscan/db"
	"shelfscan/internal/config"
)

// migrationSource returns the filesystem and directory goose should read.
// MIGRATIONS_DIR points at an on-disk directory; otherwise the migrations
// compiled into the binary are used.
func migrationSource(cfg config.Config) (fs.FS, string) {
	if cfg.MigrationsDir != "" {
		return nil, cfg.MigrationsDir
	}
	return db.Migrations, "migrations"
}
