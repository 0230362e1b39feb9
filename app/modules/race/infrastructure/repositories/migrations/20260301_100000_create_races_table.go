package racemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*racedb.Race)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create races table: %w", err)
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS races_event_set_idx ON races (event_id, set_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS races_room_idx ON races (room) WHERE room IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS races_thread_idx ON races (scheduling_thread) WHERE scheduling_thread IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS races_status_idx ON races (status)`,
			`CREATE INDEX IF NOT EXISTS races_entrants_idx ON races USING GIN (entrants)`,
		}
		for _, stmt := range indexes {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create race index: %w", err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewDropTable().Model((*racedb.Race)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop races table: %w", err)
		}
		return nil
	})
}
