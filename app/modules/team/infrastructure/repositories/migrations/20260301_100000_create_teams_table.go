package teammigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*teamdb.Team)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create teams table: %w", err)
		}
		if _, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS teams_event_name_idx ON teams (event_id, name)`); err != nil {
			return fmt.Errorf("failed to create team index: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewDropTable().Model((*teamdb.Team)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop teams table: %w", err)
		}
		return nil
	})
}
