// Package teammigrations registers the team module's schema migrations.
package teammigrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
