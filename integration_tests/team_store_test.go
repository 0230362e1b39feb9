package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

func fakeTeam(eventID sharedtypes.EventID) *teamdb.Team {
	return &teamdb.Team{
		ID:      sharedtypes.TeamID(uuid.NewString()),
		EventID: eventID,
		Name:    gofakeit.Gamertag(),
		Members: []teamdb.Member{
			{UserID: sharedtypes.UserID(uuid.NewString()), DisplayName: gofakeit.Username(), Status: teamdb.MemberStatusCreated},
			{UserID: sharedtypes.UserID(uuid.NewString()), DisplayName: gofakeit.Username(), Status: teamdb.MemberStatusCreated},
		},
	}
}

func TestTeamStore_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	repo := &teamdb.TeamDBImpl{DB: env.db}
	ctx := context.Background()

	team := fakeTeam("s5")
	require.NoError(t, repo.CreateTeam(ctx, team))

	got, err := repo.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, team.Name, got.Name)
	require.Len(t, got.Members, 2)
	require.False(t, got.Confirmed())

	_, err = repo.GetTeam(ctx, sharedtypes.TeamID(uuid.NewString()))
	require.True(t, errors.Is(err, teamdb.ErrTeamNotFound))
}

func TestTeamStore_ConfirmationPersists(t *testing.T) {
	env := newTestEnv(t)
	repo := &teamdb.TeamDBImpl{DB: env.db}
	ctx := context.Background()

	team := fakeTeam("s5")
	require.NoError(t, repo.CreateTeam(ctx, team))

	for i := range team.Members {
		team.Members[i].Status = teamdb.MemberStatusConfirmed
	}
	require.NoError(t, repo.UpdateTeam(ctx, team))

	got, err := repo.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	require.True(t, got.Confirmed())
}

func TestTeamStore_ListByEvent(t *testing.T) {
	env := newTestEnv(t)
	repo := &teamdb.TeamDBImpl{DB: env.db}
	ctx := context.Background()

	for range 3 {
		require.NoError(t, repo.CreateTeam(ctx, fakeTeam("s5")))
	}
	require.NoError(t, repo.CreateTeam(ctx, fakeTeam("s6")))

	teams, err := repo.ListByEvent(ctx, "s5")
	require.NoError(t, err)
	require.Len(t, teams, 3)
	for _, team := range teams {
		require.Equal(t, sharedtypes.EventID("s5"), team.EventID)
	}
}
