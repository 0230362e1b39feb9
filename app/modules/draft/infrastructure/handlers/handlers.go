// Package drafthandlers maps draft bus messages onto the service.
package drafthandlers

import (
	"context"
	"errors"

	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"

	draftservice "github.com/midoshouse/midos.house/app/modules/draft/application"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleActionSubmitted(ctx context.Context, payload *draftevents.ActionSubmittedPayloadV1) ([]handlerwrapper.Result, error)
	HandleRaceCreated(ctx context.Context, payload *raceevents.RaceCreatedPayloadV1) ([]handlerwrapper.Result, error)
	HandleReminderDue(ctx context.Context, payload *draftevents.ReminderDuePayloadV1) ([]handlerwrapper.Result, error)
}

// DraftHandlers implements Handlers.
type DraftHandlers struct {
	service draftservice.Service
}

var _ Handlers = (*DraftHandlers)(nil)

// NewDraftHandlers creates a DraftHandlers.
func NewDraftHandlers(service draftservice.Service) *DraftHandlers {
	return &DraftHandlers{service: service}
}

func (h *DraftHandlers) HandleActionSubmitted(ctx context.Context, payload *draftevents.ActionSubmittedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.SubmitAction(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.Failure != nil {
		return []handlerwrapper.Result{{Topic: draftevents.DraftRejectedV1, Payload: result.Failure}}, nil
	}
	switch success := result.Success.(type) {
	case *draftevents.AdvancedPayloadV1:
		return []handlerwrapper.Result{{Topic: draftevents.DraftAdvancedV1, Payload: success}}, nil
	case *draftservice.Completion:
		return []handlerwrapper.Result{
			{Topic: draftevents.DraftAdvancedV1, Payload: success.Advanced},
			{Topic: draftevents.DraftCompletedV1, Payload: success.Completed},
		}, nil
	case nil:
		return nil, nil
	default:
		return nil, errors.New("unexpected submit result payload")
	}
}

func (h *DraftHandlers) HandleRaceCreated(ctx context.Context, payload *raceevents.RaceCreatedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	if !payload.DraftRequired {
		return nil, nil
	}
	result, err := h.service.StartDraft(ctx, payload.RaceID)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: draftevents.DraftStartedV1, Payload: result.Success}}, nil
}

func (h *DraftHandlers) HandleReminderDue(ctx context.Context, payload *draftevents.ReminderDuePayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.Remind(ctx, payload.RaceID, payload.StepsDone)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: draftevents.DraftStartedV1, Payload: result.Success}}, nil
}
