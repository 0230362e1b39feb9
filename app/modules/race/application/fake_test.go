package raceservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// FakeRaceRepository keeps races in a map and mimics the revision-guarded
// update loop of the real repository.
type FakeRaceRepository struct {
	races map[sharedtypes.RaceID]*racedb.Race
	trace []string
}

var _ racedb.Repository = (*FakeRaceRepository)(nil)

func NewFakeRaceRepository() *FakeRaceRepository {
	return &FakeRaceRepository{races: map[sharedtypes.RaceID]*racedb.Race{}}
}

func (f *FakeRaceRepository) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeRaceRepository) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRaceRepository) CreateRace(_ context.Context, race *racedb.Race) error {
	f.record("CreateRace")
	if err := race.Validate(); err != nil {
		return err
	}
	clone := *race
	f.races[race.ID] = &clone
	return nil
}

func (f *FakeRaceRepository) GetRace(_ context.Context, id sharedtypes.RaceID) (*racedb.Race, error) {
	f.record("GetRace")
	race, ok := f.races[id]
	if !ok {
		return nil, racedb.ErrRaceNotFound
	}
	clone := *race
	return &clone, nil
}

func (f *FakeRaceRepository) UpdateRace(ctx context.Context, id sharedtypes.RaceID, mutate racedb.Mutation) (*racedb.Race, error) {
	f.record("UpdateRace")
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
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	clone.Revision = race.Revision + 1
	f.races[id] = &clone
	out := clone
	return &out, nil
}

func (f *FakeRaceRepository) FindActiveByTeam(_ context.Context, teamID sharedtypes.TeamID) ([]*racedb.Race, error) {
	f.record("FindActiveByTeam")
	var out []*racedb.Race
	for _, race := range f.races {
		if race.Status.Terminal() {
			continue
		}
		if race.Entrant(teamID) != nil {
			clone := *race
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *FakeRaceRepository) FindByRoom(_ context.Context, handle sharedtypes.RoomHandle) (*racedb.Race, sharedtypes.RoomKind, error) {
	f.record("FindByRoom")
	for _, race := range f.races {
		for _, kind := range []sharedtypes.RoomKind{
			sharedtypes.RoomKindNormal,
			sharedtypes.RoomKindAsync1,
			sharedtypes.RoomKindAsync2,
			sharedtypes.RoomKindAsync3,
		} {
			if race.RoomHandle(kind) == handle {
				clone := *race
				return &clone, kind, nil
			}
		}
	}
	return nil, sharedtypes.RoomKindNormal, racedb.ErrRaceNotFound
}

func (f *FakeRaceRepository) FindByThread(_ context.Context, ref sharedtypes.ThreadRef) (*racedb.Race, error) {
	f.record("FindByThread")
	for _, race := range f.races {
		if race.SchedulingThread == ref {
			clone := *race
			return &clone, nil
		}
	}
	return nil, racedb.ErrRaceNotFound
}

func (f *FakeRaceRepository) FindBySet(_ context.Context, eventID sharedtypes.EventID, setID sharedtypes.SetID) ([]*racedb.Race, error) {
	f.record("FindBySet")
	var out []*racedb.Race
	for _, race := range f.races {
		if race.EventID == eventID && race.SetID == setID {
			clone := *race
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *FakeRaceRepository) ListRoomCandidates(context.Context, time.Time, time.Duration) ([]*racedb.Race, error) {
	f.record("ListRoomCandidates")
	return nil, nil
}

func (f *FakeRaceRepository) ListSeedCandidates(context.Context, time.Time, time.Duration) ([]*racedb.Race, error) {
	f.record("ListSeedCandidates")
	return nil, nil
}

func (f *FakeRaceRepository) ListRecordedByEvent(_ context.Context, eventID sharedtypes.EventID) ([]*racedb.Race, error) {
	f.record("ListRecordedByEvent")
	var out []*racedb.Race
	for _, race := range f.races {
		if race.EventID == eventID && race.Recorded {
			clone := *race
			out = append(out, &clone)
		}
	}
	return out, nil
}

// FakeEventRepo serves a single fixed config.
type FakeEventRepo struct {
	Config *eventtypes.EventConfig
}

var _ eventdb.Repository = (*FakeEventRepo)(nil)

func (f *FakeEventRepo) GetConfig(_ context.Context, id sharedtypes.EventID) (*eventtypes.EventConfig, error) {
	if f.Config == nil || f.Config.ID != id {
		return nil, eventdb.ErrEventNotFound
	}
	return f.Config, nil
}

func (f *FakeEventRepo) SaveConfig(context.Context, *eventtypes.EventConfig) error   { return nil }
func (f *FakeEventRepo) UpdateConfig(context.Context, *eventtypes.EventConfig) error { return nil }
func (f *FakeEventRepo) ListConfigs(context.Context) ([]*eventtypes.EventConfig, error) {
	return nil, nil
}

// FakeTeamRepo serves teams from a map.
type FakeTeamRepo struct {
	Teams map[sharedtypes.TeamID]*teamdb.Team
}

var _ teamdb.Repository = (*FakeTeamRepo)(nil)

func (f *FakeTeamRepo) CreateTeam(_ context.Context, team *teamdb.Team) error {
	f.Teams[team.ID] = team
	return nil
}

func (f *FakeTeamRepo) GetTeam(_ context.Context, id sharedtypes.TeamID) (*teamdb.Team, error) {
	team, ok := f.Teams[id]
	if !ok {
		return nil, teamdb.ErrTeamNotFound
	}
	return team, nil
}

func (f *FakeTeamRepo) UpdateTeam(_ context.Context, team *teamdb.Team) error {
	f.Teams[team.ID] = team
	return nil
}

func (f *FakeTeamRepo) ListByEvent(context.Context, sharedtypes.EventID) ([]*teamdb.Team, error) {
	return nil, nil
}

// FakeQueue records every scheduling call.
type FakeQueue struct {
	Calls []string
}

func (f *FakeQueue) ScheduleRoomOpen(_ context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, at time.Time) error {
	f.Calls = append(f.Calls, fmt.Sprintf("room_open:%s:%s:%s", raceID, kind, at.UTC().Format(time.RFC3339)))
	return nil
}

func (f *FakeQueue) ScheduleRoomCreateRetry(_ context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, attempt int, _ time.Time) error {
	f.Calls = append(f.Calls, fmt.Sprintf("room_retry:%s:%s:%d", raceID, kind, attempt))
	return nil
}

func (f *FakeQueue) ScheduleSeedRoll(_ context.Context, raceID sharedtypes.RaceID, attempt int, at time.Time) error {
	f.Calls = append(f.Calls, fmt.Sprintf("seed_roll:%s:%d:%s", raceID, attempt, at.UTC().Format(time.RFC3339)))
	return nil
}

func (f *FakeQueue) ScheduleDraftReminder(_ context.Context, raceID sharedtypes.RaceID, stepsDone int, _ time.Time) error {
	f.Calls = append(f.Calls, fmt.Sprintf("draft_reminder:%s:%d", raceID, stepsDone))
	return nil
}

func (f *FakeQueue) CancelRaceJobs(_ context.Context, raceID sharedtypes.RaceID) error {
	f.Calls = append(f.Calls, fmt.Sprintf("cancel:%s", raceID))
	return nil
}

func (f *FakeQueue) HealthCheck(context.Context) error { return nil }
func (f *FakeQueue) Start(context.Context) error       { return nil }
func (f *FakeQueue) Stop(context.Context) error        { return nil }
