// Package eventmigrations registers the event module's schema migrations.
package eventmigrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
