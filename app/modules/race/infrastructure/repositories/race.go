// Package racedb persists race records with bun and linearizes per-race
// mutations through an optimistic revision check.
package racedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// RaceDBImpl is the bun-backed Repository implementation.
type RaceDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*RaceDBImpl)(nil)

func (db *RaceDBImpl) CreateRace(ctx context.Context, race *Race) error {
	if err := race.Validate(); err != nil {
		return fmt.Errorf("invalid race: %w", err)
	}
	now := time.Now().UTC()
	race.CreatedAt = now
	race.UpdatedAt = now
	if _, err := db.DB.NewInsert().Model(race).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create race: %w", err)
	}
	return nil
}

func (db *RaceDBImpl) GetRace(ctx context.Context, id sharedtypes.RaceID) (*Race, error) {
	race := new(Race)
	err := db.DB.NewSelect().Model(race).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch race: %w", err)
	}
	return race, nil
}

// UpdateRace reads the row, applies mutate, and writes it back guarded by the
// revision it read. A lost guard means a concurrent writer got there first:
// re-read once and retry against the fresher state, then give up with
// ErrRevisionConflict.
func (db *RaceDBImpl) UpdateRace(ctx context.Context, id sharedtypes.RaceID, mutate Mutation) (*Race, error) {
	const attempts = 2
	for attempt := 0; attempt < attempts; attempt++ {
		race, err := db.GetRace(ctx, id)
		if err != nil {
			return nil, err
		}
		base := race.Revision

		if err := mutate(race); err != nil {
			if errors.Is(err, ErrNoChange) {
				return race, nil
			}
			return nil, err
		}
		if err := race.Validate(); err != nil {
			return nil, fmt.Errorf("mutation violates race invariants: %w", err)
		}

		race.Revision = base + 1
		race.UpdatedAt = time.Now().UTC()

		res, err := db.DB.NewUpdate().
			Model(race).
			WherePK().
			Where("revision = ?", base).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to update race: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read update result: %w", err)
		}
		if rows == 1 {
			return race, nil
		}
		// Revision moved underneath us; loop re-reads the fresher row.
	}
	return nil, ErrRevisionConflict
}

func (db *RaceDBImpl) FindActiveByTeam(ctx context.Context, teamID sharedtypes.TeamID) ([]*Race, error) {
	var races []*Race
	err := db.DB.NewSelect().
		Model(&races).
		Where("status NOT IN (?, ?)", sharedtypes.RaceStatusRecorded, sharedtypes.RaceStatusWithdrawn).
		Where("entrants @> ?", fmt.Sprintf(`[{"team_id": %q}]`, teamID)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find active races for team: %w", err)
	}
	return races, nil
}

func (db *RaceDBImpl) FindByRoom(ctx context.Context, handle sharedtypes.RoomHandle) (*Race, sharedtypes.RoomKind, error) {
	race := new(Race)
	err := db.DB.NewSelect().
		Model(race).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("room = ?", handle).
				WhereOr("async_room_1 = ?", handle).
				WhereOr("async_room_2 = ?", handle).
				WhereOr("async_room_3 = ?", handle)
		}).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrRaceNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to find race by room: %w", err)
	}
	switch handle {
	case race.AsyncRoom1:
		return race, sharedtypes.RoomKindAsync1, nil
	case race.AsyncRoom2:
		return race, sharedtypes.RoomKindAsync2, nil
	case race.AsyncRoom3:
		return race, sharedtypes.RoomKindAsync3, nil
	default:
		return race, sharedtypes.RoomKindNormal, nil
	}
}

func (db *RaceDBImpl) FindByThread(ctx context.Context, ref sharedtypes.ThreadRef) (*Race, error) {
	race := new(Race)
	err := db.DB.NewSelect().Model(race).Where("scheduling_thread = ?", ref).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find race by thread: %w", err)
	}
	return race, nil
}

func (db *RaceDBImpl) FindBySet(ctx context.Context, eventID sharedtypes.EventID, setID sharedtypes.SetID) ([]*Race, error) {
	var races []*Race
	err := db.DB.NewSelect().
		Model(&races).
		Where("event_id = ?", eventID).
		Where("set_id = ?", setID).
		Order("game ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find races by set: %w", err)
	}
	return races, nil
}

// ListRoomCandidates returns non-terminal races whose start falls within
// horizon of now and which still miss at least one room handle. Used at
// startup to recover room-open deadlines lost to a crash.
func (db *RaceDBImpl) ListRoomCandidates(ctx context.Context, now time.Time, horizon time.Duration) ([]*Race, error) {
	until := now.Add(horizon)
	var races []*Race
	err := db.DB.NewSelect().
		Model(&races).
		Where("status IN (?, ?)", sharedtypes.RaceStatusScheduling, sharedtypes.RaceStatusPendingRoom).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("scheduled_start IS NOT NULL AND scheduled_start <= ? AND room IS NULL", until)
				}).
				WhereOr("async_start_1 IS NOT NULL AND async_start_1 <= ? AND async_room_1 IS NULL", until).
				WhereOr("async_start_2 IS NOT NULL AND async_start_2 <= ? AND async_room_2 IS NULL", until).
				WhereOr("async_start_3 IS NOT NULL AND async_start_3 <= ? AND async_room_3 IS NULL", until)
		}).
		Order("scheduled_start ASC NULLS LAST").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list room candidates: %w", err)
	}
	return races, nil
}

// ListSeedCandidates returns races with finalized settings, no seed yet, and a
// start within horizon of now.
func (db *RaceDBImpl) ListSeedCandidates(ctx context.Context, now time.Time, horizon time.Duration) ([]*Race, error) {
	until := now.Add(horizon)
	var races []*Race
	err := db.DB.NewSelect().
		Model(&races).
		Where("status NOT IN (?, ?)", sharedtypes.RaceStatusRecorded, sharedtypes.RaceStatusWithdrawn).
		Where("settings IS NOT NULL").
		Where("seed_file IS NULL").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("scheduled_start <= ?", until).
				WhereOr("async_start_1 <= ?", until)
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list seed candidates: %w", err)
	}
	return races, nil
}

func (db *RaceDBImpl) ListRecordedByEvent(ctx context.Context, eventID sharedtypes.EventID) ([]*Race, error) {
	var races []*Race
	err := db.DB.NewSelect().
		Model(&races).
		Where("event_id = ?", eventID).
		Where("recorded = TRUE").
		Order("phase ASC", "round ASC", "game ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recorded races: %w", err)
	}
	return races, nil
}
