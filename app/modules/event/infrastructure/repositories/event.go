// Package eventdb persists event configuration records with bun.
package eventdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// EventDBImpl is the bun-backed Repository implementation.
type EventDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*EventDBImpl)(nil)

func (db *EventDBImpl) GetConfig(ctx context.Context, id sharedtypes.EventID) (*eventtypes.EventConfig, error) {
	model := new(EventConfigModel)
	err := db.DB.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event config: %w", err)
	}
	return model.ToConfig(), nil
}

func (db *EventDBImpl) SaveConfig(ctx context.Context, cfg *eventtypes.EventConfig) error {
	model := FromConfig(cfg)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now
	if _, err := db.DB.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("failed to save event config: %w", err)
	}
	return nil
}

func (db *EventDBImpl) UpdateConfig(ctx context.Context, cfg *eventtypes.EventConfig) error {
	model := FromConfig(cfg)
	model.UpdatedAt = time.Now().UTC()
	res, err := db.DB.NewUpdate().
		Model(model).
		WherePK().
		ExcludeColumn("created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update event config: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (db *EventDBImpl) ListConfigs(ctx context.Context) ([]*eventtypes.EventConfig, error) {
	var models []*EventConfigModel
	if err := db.DB.NewSelect().Model(&models).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list event configs: %w", err)
	}
	out := make([]*eventtypes.EventConfig, len(models))
	for i, m := range models {
		out[i] = m.ToConfig()
	}
	return out, nil
}
