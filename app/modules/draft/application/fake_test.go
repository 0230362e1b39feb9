package draftservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// fakeRaceRepo keeps races in a map; UpdateRace mirrors the revision loop.
type fakeRaceRepo struct {
	races map[sharedtypes.RaceID]*racedb.Race
}

var _ racedb.Repository = (*fakeRaceRepo)(nil)

func newFakeRaceRepo() *fakeRaceRepo {
	return &fakeRaceRepo{races: map[sharedtypes.RaceID]*racedb.Race{}}
}

func (f *fakeRaceRepo) CreateRace(_ context.Context, race *racedb.Race) error {
	clone := *race
	f.races[race.ID] = &clone
	return nil
}

func (f *fakeRaceRepo) GetRace(_ context.Context, id sharedtypes.RaceID) (*racedb.Race, error) {
	race, ok := f.races[id]
	if !ok {
		return nil, racedb.ErrRaceNotFound
	}
	clone := *race
	return &clone, nil
}

func (f *fakeRaceRepo) UpdateRace(_ context.Context, id sharedtypes.RaceID, mutate racedb.Mutation) (*racedb.Race, error) {
	race, ok := f.races[id]
	if !ok {
		return nil, racedb.ErrRaceNotFound
	}
	clone := *race
	if err := mutate(&clone); err != nil {
		if errors.Is(err, racedb.ErrNoChange) {
			return &clone, nil
		}
		return nil, err
	}
	clone.Revision = race.Revision + 1
	f.races[id] = &clone
	out := clone
	return &out, nil
}

func (f *fakeRaceRepo) FindActiveByTeam(context.Context, sharedtypes.TeamID) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) FindByRoom(context.Context, sharedtypes.RoomHandle) (*racedb.Race, sharedtypes.RoomKind, error) {
	return nil, sharedtypes.RoomKindNormal, racedb.ErrRaceNotFound
}

func (f *fakeRaceRepo) FindByThread(context.Context, sharedtypes.ThreadRef) (*racedb.Race, error) {
	return nil, racedb.ErrRaceNotFound
}

func (f *fakeRaceRepo) FindBySet(context.Context, sharedtypes.EventID, sharedtypes.SetID) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) ListRoomCandidates(context.Context, time.Time, time.Duration) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) ListSeedCandidates(context.Context, time.Time, time.Duration) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) ListRecordedByEvent(context.Context, sharedtypes.EventID) ([]*racedb.Race, error) {
	return nil, nil
}

// fakeEventRepo serves one config.
type fakeEventRepo struct {
	cfg *eventtypes.EventConfig
}

var _ eventdb.Repository = (*fakeEventRepo)(nil)

func (f *fakeEventRepo) GetConfig(_ context.Context, id sharedtypes.EventID) (*eventtypes.EventConfig, error) {
	if f.cfg == nil || f.cfg.ID != id {
		return nil, eventdb.ErrEventNotFound
	}
	return f.cfg, nil
}

func (f *fakeEventRepo) SaveConfig(context.Context, *eventtypes.EventConfig) error   { return nil }
func (f *fakeEventRepo) UpdateConfig(context.Context, *eventtypes.EventConfig) error { return nil }
func (f *fakeEventRepo) ListConfigs(context.Context) ([]*eventtypes.EventConfig, error) {
	return nil, nil
}

// fakeQueue records scheduling calls.
type fakeQueue struct {
	calls []string
}

func (f *fakeQueue) ScheduleRoomOpen(_ context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, _ time.Time) error {
	f.calls = append(f.calls, fmt.Sprintf("room_open:%s:%s", raceID, kind))
	return nil
}

func (f *fakeQueue) ScheduleRoomCreateRetry(_ context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, attempt int, _ time.Time) error {
	f.calls = append(f.calls, fmt.Sprintf("room_retry:%s:%s:%d", raceID, kind, attempt))
	return nil
}

func (f *fakeQueue) ScheduleSeedRoll(_ context.Context, raceID sharedtypes.RaceID, attempt int, _ time.Time) error {
	f.calls = append(f.calls, fmt.Sprintf("seed_roll:%s:%d", raceID, attempt))
	return nil
}

func (f *fakeQueue) ScheduleDraftReminder(_ context.Context, raceID sharedtypes.RaceID, stepsDone int, _ time.Time) error {
	f.calls = append(f.calls, fmt.Sprintf("draft_reminder:%s:%d", raceID, stepsDone))
	return nil
}

func (f *fakeQueue) CancelRaceJobs(_ context.Context, raceID sharedtypes.RaceID) error {
	f.calls = append(f.calls, fmt.Sprintf("cancel:%s", raceID))
	return nil
}

func (f *fakeQueue) HealthCheck(context.Context) error { return nil }
func (f *fakeQueue) Start(context.Context) error       { return nil }
func (f *fakeQueue) Stop(context.Context) error        { return nil }
