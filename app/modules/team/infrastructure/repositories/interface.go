package teamdb

import (
	"context"
	"errors"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// ErrTeamNotFound indicates the referenced team does not exist.
var ErrTeamNotFound = errors.New("team not found")

// Repository stores team records.
type Repository interface {
	CreateTeam(ctx context.Context, team *Team) error
	GetTeam(ctx context.Context, id sharedtypes.TeamID) (*Team, error)
	UpdateTeam(ctx context.Context, team *Team) error
	ListByEvent(ctx context.Context, eventID sharedtypes.EventID) ([]*Team, error)
}
