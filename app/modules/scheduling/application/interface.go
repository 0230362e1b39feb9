package schedulingservice

import (
	"context"

	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	schedevents "github.com/midoshouse/midos.house/app/shared/events/scheduling"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Service owns the per-race coordination thread: creation, command parsing,
// and relaying race and draft notifications into it.
type Service interface {
	// BuildThreadRequest turns a freshly created race into a thread-create
	// effect for the platform adapter.
	BuildThreadRequest(ctx context.Context, payload *raceevents.RaceCreatedPayloadV1) (results.OperationResult, error)

	// RecordThread stores the adapter's thread handle on the race.
	RecordThread(ctx context.Context, payload *schedevents.ThreadCreatedPayloadV1) (results.OperationResult, error)

	// RecordThreadFailure audits a failed thread creation.
	RecordThreadFailure(ctx context.Context, payload *schedevents.ThreadCreationFailedPayloadV1) error

	// HandleMessage parses one thread message into requests or replies.
	HandleMessage(ctx context.Context, payload *schedevents.ThreadMessageReceivedPayloadV1) ([]results.HandlerResult, error)

	// Relays post module notifications into the race's thread.
	RelayScheduleSet(ctx context.Context, payload *raceevents.ScheduleSetPayloadV1) (results.OperationResult, error)
	RelayScheduleRemoved(ctx context.Context, payload *raceevents.ScheduleRemovedPayloadV1) (results.OperationResult, error)
	RelayScheduleRejected(ctx context.Context, payload *raceevents.ScheduleRejectedPayloadV1) (results.OperationResult, error)
	RelayDraftStarted(ctx context.Context, payload *draftevents.StartedPayloadV1) (results.OperationResult, error)
	RelayDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) (results.OperationResult, error)
	RelayDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) (results.OperationResult, error)
	RelayDraftCompleted(ctx context.Context, payload *draftevents.CompletedPayloadV1) (results.OperationResult, error)
}
