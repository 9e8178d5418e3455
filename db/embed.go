// Package db holds the goose migrations for the Postgres store.
package db

import "embed"

// Migrations is rooted at the repository's db directory; use "migrations" as
// the goose dir.
//
//go:embed migrations/*.sql
var Migrations embed.FS
