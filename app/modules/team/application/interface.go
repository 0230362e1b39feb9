package teamservice

import (
	"context"

	teamevents "github.com/midoshouse/midos.house/app/shared/events/team"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Service is the team registry's application surface.
type Service interface {
	RegisterTeam(ctx context.Context, req *teamevents.RegisterRequestedPayloadV1) (results.OperationResult, error)
	ConfirmMember(ctx context.Context, teamID sharedtypes.TeamID, userID sharedtypes.UserID) (results.OperationResult, error)
	UpdateOptIns(ctx context.Context, teamID sharedtypes.TeamID, optIns teamevents.OptInsV1) (results.OperationResult, error)
	Resign(ctx context.Context, teamID sharedtypes.TeamID, requestedBy sharedtypes.UserID) (results.OperationResult, error)
}
