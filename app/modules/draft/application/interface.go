package draftservice

import (
	"context"

	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Completion bundles the final advancement notice with the settings snapshot
// so both can be published from one submission.
type Completion struct {
	Advanced  *draftevents.AdvancedPayloadV1
	Completed *draftevents.CompletedPayloadV1
}

// Service drives the settings draft over persisted race records.
type Service interface {
	// SubmitAction applies one negotiation move. Success carries either
	// *draftevents.AdvancedPayloadV1 or *Completion.
	SubmitAction(ctx context.Context, req *draftevents.ActionSubmittedPayloadV1) (results.OperationResult, error)
	// StartDraft announces the opening turn and schedules the first reminder.
	StartDraft(ctx context.Context, raceID sharedtypes.RaceID) (results.OperationResult, error)
	// Remind nudges the team on turn if the draft is still stuck at the step
	// the reminder was armed for; a stale reminder is silently dropped.
	Remind(ctx context.Context, raceID sharedtypes.RaceID, stepsDone int) (results.OperationResult, error)
}
