package eventmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*eventdb.EventConfigModel)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create event_configs table: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewDropTable().Model((*eventdb.EventConfigModel)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop event_configs table: %w", err)
		}
		return nil
	})
}
