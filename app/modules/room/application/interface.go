package roomservice

import (
	"context"

	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Service drives the room lifecycle: opening when due, bounded creation
// retries, status monitoring, and in-room chat commands.
type Service interface {
	// EvaluateOpen checks the opening guards for one room and, when they all
	// pass, returns the creation effect. A failed guard is a silent no-op so
	// the same evaluation can be triggered from timers and entrant updates
	// without coordination.
	EvaluateOpen(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, attempt int) (results.OperationResult, error)
	// EvaluateAll runs EvaluateOpen for every room of the race that has a
	// start time and no handle yet.
	EvaluateAll(ctx context.Context, raceID sharedtypes.RaceID) ([]results.HandlerResult, error)
	// RecordCreated stores the room handle (write-once) and starts monitoring.
	RecordCreated(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, handle sharedtypes.RoomHandle) (results.OperationResult, error)
	// RecordCreationFailure schedules a bounded retry or abandons the room.
	RecordCreationFailure(ctx context.Context, payload *roomevents.CreationFailedPayloadV1) (results.OperationResult, error)
	// RecordStatus ingests a room status report; a closing status yields the
	// extracted results.
	RecordStatus(ctx context.Context, payload *roomevents.StatusChangedPayloadV1) (results.OperationResult, error)
	// HandleChat parses an in-room chat line into draft actions, FPA, break
	// agreements, or an error reply.
	HandleChat(ctx context.Context, payload *roomevents.ChatReceivedPayloadV1) ([]results.HandlerResult, error)
	// RelayDraftAdvanced posts draft progress into the race's open room.
	RelayDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) (results.OperationResult, error)
	// RelayDraftRejected replies the reason to room-sourced draft actions.
	RelayDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) (results.OperationResult, error)
}
