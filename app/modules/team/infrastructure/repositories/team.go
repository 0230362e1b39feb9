// Package teamdb persists team records with bun.
package teamdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// TeamDBImpl is the bun-backed Repository implementation.
type TeamDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*TeamDBImpl)(nil)

func (db *TeamDBImpl) CreateTeam(ctx context.Context, team *Team) error {
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now
	if _, err := db.DB.NewInsert().Model(team).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (db *TeamDBImpl) GetTeam(ctx context.Context, id sharedtypes.TeamID) (*Team, error) {
	team := new(Team)
	err := db.DB.NewSelect().Model(team).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch team: %w", err)
	}
	return team, nil
}

func (db *TeamDBImpl) UpdateTeam(ctx context.Context, team *Team) error {
	team.UpdatedAt = time.Now().UTC()
	res, err := db.DB.NewUpdate().
		Model(team).
		WherePK().
		ExcludeColumn("created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrTeamNotFound
	}
	return nil
}

func (db *TeamDBImpl) ListByEvent(ctx context.Context, eventID sharedtypes.EventID) ([]*Team, error) {
	var teams []*Team
	if err := db.DB.NewSelect().Model(&teams).Where("event_id = ?", eventID).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}
