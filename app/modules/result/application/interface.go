package resultservice

import (
	"context"

	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Service reconciles closed-room outcomes into the authoritative race record
// and drives the best-of-N match forward.
type Service interface {
	// RecordClosedRoom merges one closed room's results. Room-reported results
	// are authoritative for finish order and times.
	RecordClosedRoom(ctx context.Context, payload *roomevents.ClosedPayloadV1) ([]results.HandlerResult, error)

	// HandleBracketSetUpdated checks the bracket side's reported winner against
	// our recorded outcome. Disagreement flags review, never auto-corrects.
	HandleBracketSetUpdated(ctx context.Context, payload *bracketevents.SetUpdatedPayloadV1) ([]results.HandlerResult, error)
}
