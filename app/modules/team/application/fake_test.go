package teamservice

import (
	"context"

	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// FakeTeamRepository is a programmable stub for teamdb.Repository.
type FakeTeamRepository struct {
	trace []string

	CreateTeamFunc  func(ctx context.Context, team *teamdb.Team) error
	GetTeamFunc     func(ctx context.Context, id sharedtypes.TeamID) (*teamdb.Team, error)
	UpdateTeamFunc  func(ctx context.Context, team *teamdb.Team) error
	ListByEventFunc func(ctx context.Context, eventID sharedtypes.EventID) ([]*teamdb.Team, error)
}

var _ teamdb.Repository = (*FakeTeamRepository)(nil)

func NewFakeTeamRepository() *FakeTeamRepository {
	return &FakeTeamRepository{trace: []string{}}
}

func (f *FakeTeamRepository) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeTeamRepository) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeTeamRepository) CreateTeam(ctx context.Context, team *teamdb.Team) error {
	f.record("CreateTeam")
	if f.CreateTeamFunc != nil {
		return f.CreateTeamFunc(ctx, team)
	}
	return nil
}

func (f *FakeTeamRepository) GetTeam(ctx context.Context, id sharedtypes.TeamID) (*teamdb.Team, error) {
	f.record("GetTeam")
	if f.GetTeamFunc != nil {
		return f.GetTeamFunc(ctx, id)
	}
	return nil, teamdb.ErrTeamNotFound
}

func (f *FakeTeamRepository) UpdateTeam(ctx context.Context, team *teamdb.Team) error {
	f.record("UpdateTeam")
	if f.UpdateTeamFunc != nil {
		return f.UpdateTeamFunc(ctx, team)
	}
	return nil
}

func (f *FakeTeamRepository) ListByEvent(ctx context.Context, eventID sharedtypes.EventID) ([]*teamdb.Team, error) {
	f.record("ListByEvent")
	if f.ListByEventFunc != nil {
		return f.ListByEventFunc(ctx, eventID)
	}
	return nil, nil
}
