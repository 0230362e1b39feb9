package seedservice

import (
	"context"

	resultevents "github.com/midoshouse/midos.house/app/shared/events/result"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Service drives seed generation for races: submitting generator jobs when
// the roll deadline fires, retrying bounded failures, attaching completed
// seeds, and unlocking spoiler logs once the race is recorded.
type Service interface {
	EvaluateRoll(ctx context.Context, payload *seedevents.RollDuePayloadV1) ([]results.HandlerResult, error)
	RecordRolled(ctx context.Context, payload *seedevents.RolledPayloadV1) ([]results.HandlerResult, error)
	RecordRollFailure(ctx context.Context, payload *seedevents.RollFailedPayloadV1) ([]results.HandlerResult, error)
	UnlockSpoiler(ctx context.Context, payload *resultevents.RecordedPayloadV1) ([]results.HandlerResult, error)
}
