// Package racemigrations registers the race module's schema migrations.
package racemigrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
