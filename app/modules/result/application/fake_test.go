package resultservice

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

type fakeRaceRepo struct {
	races map[sharedtypes.RaceID]*racedb.Race
}

var _ racedb.Repository = (*fakeRaceRepo)(nil)

func newFakeRaceRepo() *fakeRaceRepo {
	return &fakeRaceRepo{races: map[sharedtypes.RaceID]*racedb.Race{}}
}

func cloneRace(race *racedb.Race) *racedb.Race {
	clone := *race
	clone.Entrants = append([]racedb.Entrant(nil), race.Entrants...)
	return &clone
}

func (f *fakeRaceRepo) CreateRace(_ context.Context, race *racedb.Race) error {
	if err := race.Validate(); err != nil {
		return err
	}
	f.races[race.ID] = cloneRace(race)
	return nil
}

func (f *fakeRaceRepo) GetRace(_ context.Context, id sharedtypes.RaceID) (*racedb.Race, error) {
	race, ok := f.races[id]
	if !ok {
		return nil, racedb.ErrRaceNotFound
	}
	return cloneRace(race), nil
}

func (f *fakeRaceRepo) UpdateRace(_ context.Context, id sharedtypes.RaceID, mutate racedb.Mutation) (*racedb.Race, error) {
	race, ok := f.races[id]
	if !ok {
		return nil, racedb.ErrRaceNotFound
	}
	clone := cloneRace(race)
	if err := mutate(clone); err != nil {
		if errors.Is(err, racedb.ErrNoChange) {
			return clone, nil
		}
		return nil, err
	}
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	clone.Revision = race.Revision + 1
	f.races[id] = clone
	return cloneRace(clone), nil
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

func (f *fakeRaceRepo) FindBySet(_ context.Context, eventID sharedtypes.EventID, setID sharedtypes.SetID) ([]*racedb.Race, error) {
	var out []*racedb.Race
	for _, race := range f.races {
		if race.EventID == eventID && race.SetID == setID {
			out = append(out, cloneRace(race))
		}
	}
	return out, nil
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

type fakeTeamRepo struct {
	teams map[sharedtypes.TeamID]*teamdb.Team
}

var _ teamdb.Repository = (*fakeTeamRepo)(nil)

func (f *fakeTeamRepo) CreateTeam(_ context.Context, team *teamdb.Team) error {
	f.teams[team.ID] = team
	return nil
}

func (f *fakeTeamRepo) GetTeam(_ context.Context, id sharedtypes.TeamID) (*teamdb.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, teamdb.ErrTeamNotFound
	}
	return team, nil
}

func (f *fakeTeamRepo) UpdateTeam(_ context.Context, team *teamdb.Team) error {
	f.teams[team.ID] = team
	return nil
}

func (f *fakeTeamRepo) ListByEvent(context.Context, sharedtypes.EventID) ([]*teamdb.Team, error) {
	return nil, nil
}

type fakeQueue struct {
	calls []string
}

func (f *fakeQueue) ScheduleRoomOpen(_ context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, at time.Time) error {
	f.calls = append(f.calls, fmt.Sprintf("room_open:%s:%s:%s", raceID, kind, at.UTC().Format(time.RFC3339)))
	return nil
}

func (f *fakeQueue) ScheduleRoomCreateRetry(_ context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, attempt int, _ time.Time) error {
	f.calls = append(f.calls, fmt.Sprintf("room_retry:%s:%s:%d", raceID, kind, attempt))
	return nil
}

func (f *fakeQueue) ScheduleSeedRoll(_ context.Context, raceID sharedtypes.RaceID, attempt int, at time.Time) error {
	f.calls = append(f.calls, fmt.Sprintf("seed_roll:%s:%d:%s", raceID, attempt, at.UTC().Format(time.RFC3339)))
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
