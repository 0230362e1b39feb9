package raceservice

import (
	"context"

	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Service owns the authoritative race record: creation, scheduling policy,
// locks, withdrawal, and the entrant confirmation snapshot.
type Service interface {
	CreateRace(ctx context.Context, req *raceevents.RaceCreateRequestedPayloadV1) (results.OperationResult, error)
	SetSchedule(ctx context.Context, req *raceevents.ScheduleSetRequestedPayloadV1) (results.OperationResult, error)
	RemoveSchedule(ctx context.Context, raceID sharedtypes.RaceID, requestedBy sharedtypes.UserID) (results.OperationResult, error)
	SetLock(ctx context.Context, raceID sharedtypes.RaceID, lock bool, by sharedtypes.UserID) (results.OperationResult, error)
	Withdraw(ctx context.Context, raceID sharedtypes.RaceID, teamID sharedtypes.TeamID, by sharedtypes.UserID, reason string) (results.OperationResult, error)

	// SyncTeamConfirmation refreshes the confirmation snapshot on every active
	// race the team is entered in, returning one update per changed race.
	SyncTeamConfirmation(ctx context.Context, teamID sharedtypes.TeamID) ([]*raceevents.EntrantsUpdatedPayloadV1, error)
	// WithdrawTeam withdraws the team from all its active races (resignation).
	WithdrawTeam(ctx context.Context, teamID sharedtypes.TeamID) ([]*raceevents.RaceWithdrawnPayloadV1, error)
}
