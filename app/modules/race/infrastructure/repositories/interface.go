package racedb

import (
	"context"
	"time"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// Mutation transforms a freshly loaded race inside UpdateRace. Returning an
// error aborts the write; returning ErrNoChange turns the call into a read.
type Mutation func(race *Race) error

// Repository is the single authoritative access path for race records.
type Repository interface {
	CreateRace(ctx context.Context, race *Race) error
	GetRace(ctx context.Context, id sharedtypes.RaceID) (*Race, error)

	// UpdateRace performs an optimistic read-modify-write: the mutation is
	// applied to the current row and written only if the revision is
	// unchanged; on a lost check it re-reads and retries once, then fails
	// with ErrRevisionConflict. The returned race reflects the written state.
	UpdateRace(ctx context.Context, id sharedtypes.RaceID, mutate Mutation) (*Race, error)

	// Lookups used to map inbound external events back to a race.
	FindActiveByTeam(ctx context.Context, teamID sharedtypes.TeamID) ([]*Race, error)
	FindByRoom(ctx context.Context, handle sharedtypes.RoomHandle) (*Race, sharedtypes.RoomKind, error)
	FindByThread(ctx context.Context, ref sharedtypes.ThreadRef) (*Race, error)
	FindBySet(ctx context.Context, eventID sharedtypes.EventID, setID sharedtypes.SetID) ([]*Race, error)

	// Startup reconciliation scans.
	ListRoomCandidates(ctx context.Context, now time.Time, horizon time.Duration) ([]*Race, error)
	ListSeedCandidates(ctx context.Context, now time.Time, horizon time.Duration) ([]*Race, error)

	// ListRecordedByEvent feeds the results export.
	ListRecordedByEvent(ctx context.Context, eventID sharedtypes.EventID) ([]*Race, error)
}
