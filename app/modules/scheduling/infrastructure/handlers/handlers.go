// Package schedulinghandlers maps thread lifecycle and relay messages onto the
// scheduling service.
package schedulinghandlers

import (
	"context"
	"errors"

	schedulingservice "github.com/midoshouse/midos.house/app/modules/scheduling/application"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	schedevents "github.com/midoshouse/midos.house/app/shared/events/scheduling"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleRaceCreated(ctx context.Context, payload *raceevents.RaceCreatedPayloadV1) ([]handlerwrapper.Result, error)
	HandleThreadCreated(ctx context.Context, payload *schedevents.ThreadCreatedPayloadV1) ([]handlerwrapper.Result, error)
	HandleThreadCreationFailed(ctx context.Context, payload *schedevents.ThreadCreationFailedPayloadV1) ([]handlerwrapper.Result, error)
	HandleThreadMessage(ctx context.Context, payload *schedevents.ThreadMessageReceivedPayloadV1) ([]handlerwrapper.Result, error)
	HandleScheduleSet(ctx context.Context, payload *raceevents.ScheduleSetPayloadV1) ([]handlerwrapper.Result, error)
	HandleScheduleRemoved(ctx context.Context, payload *raceevents.ScheduleRemovedPayloadV1) ([]handlerwrapper.Result, error)
	HandleScheduleRejected(ctx context.Context, payload *raceevents.ScheduleRejectedPayloadV1) ([]handlerwrapper.Result, error)
	HandleDraftStarted(ctx context.Context, payload *draftevents.StartedPayloadV1) ([]handlerwrapper.Result, error)
	HandleDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) ([]handlerwrapper.Result, error)
	HandleDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) ([]handlerwrapper.Result, error)
	HandleDraftCompleted(ctx context.Context, payload *draftevents.CompletedPayloadV1) ([]handlerwrapper.Result, error)
}

// SchedulingHandlers implements Handlers.
type SchedulingHandlers struct {
	service schedulingservice.Service
}

var _ Handlers = (*SchedulingHandlers)(nil)

// NewSchedulingHandlers creates a SchedulingHandlers.
func NewSchedulingHandlers(service schedulingservice.Service) *SchedulingHandlers {
	return &SchedulingHandlers{service: service}
}

// postResult maps an operation result whose success payload is a thread post.
func postResult(result results.OperationResult, err error) ([]handlerwrapper.Result, error) {
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: threadevents.MessagePostV1, Payload: result.Success}}, nil
}

func (h *SchedulingHandlers) HandleRaceCreated(ctx context.Context, payload *raceevents.RaceCreatedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.BuildThreadRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: threadevents.ThreadCreateV1, Payload: result.Success}}, nil
}

func (h *SchedulingHandlers) HandleThreadCreated(ctx context.Context, payload *schedevents.ThreadCreatedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RecordThread(ctx, payload))
}

func (h *SchedulingHandlers) HandleThreadCreationFailed(ctx context.Context, payload *schedevents.ThreadCreationFailedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return nil, h.service.RecordThreadFailure(ctx, payload)
}

func (h *SchedulingHandlers) HandleThreadMessage(ctx context.Context, payload *schedevents.ThreadMessageReceivedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.HandleMessage(ctx, payload)
	if err != nil {
		return nil, err
	}
	mapped := make([]handlerwrapper.Result, len(out))
	for i, hr := range out {
		mapped[i] = handlerwrapper.Result{Topic: hr.Topic, Payload: hr.Payload, Metadata: hr.Metadata}
	}
	return mapped, nil
}

func (h *SchedulingHandlers) HandleScheduleSet(ctx context.Context, payload *raceevents.ScheduleSetPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RelayScheduleSet(ctx, payload))
}

func (h *SchedulingHandlers) HandleScheduleRemoved(ctx context.Context, payload *raceevents.ScheduleRemovedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RelayScheduleRemoved(ctx, payload))
}

func (h *SchedulingHandlers) HandleScheduleRejected(ctx context.Context, payload *raceevents.ScheduleRejectedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RelayScheduleRejected(ctx, payload))
}

func (h *SchedulingHandlers) HandleDraftStarted(ctx context.Context, payload *draftevents.StartedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RelayDraftStarted(ctx, payload))
}

func (h *SchedulingHandlers) HandleDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RelayDraftAdvanced(ctx, payload))
}

func (h *SchedulingHandlers) HandleDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RelayDraftRejected(ctx, payload))
}

func (h *SchedulingHandlers) HandleDraftCompleted(ctx context.Context, payload *draftevents.CompletedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	return postResult(h.service.RelayDraftCompleted(ctx, payload))
}
