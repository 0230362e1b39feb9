// Package roomhandlers maps room lifecycle bus messages onto the service.
package roomhandlers

import (
	"context"
	"errors"

	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
	"github.com/midoshouse/midos.house/app/shared/utils/results"

	roomservice "github.com/midoshouse/midos.house/app/modules/room/application"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleOpenDue(ctx context.Context, payload *roomevents.OpenDuePayloadV1) ([]handlerwrapper.Result, error)
	HandleRetryDue(ctx context.Context, payload *roomevents.CreateRetryDuePayloadV1) ([]handlerwrapper.Result, error)
	HandleEntrantsUpdated(ctx context.Context, payload *raceevents.EntrantsUpdatedPayloadV1) ([]handlerwrapper.Result, error)
	HandleRoomCreated(ctx context.Context, payload *roomevents.CreatedPayloadV1) ([]handlerwrapper.Result, error)
	HandleCreationFailed(ctx context.Context, payload *roomevents.CreationFailedPayloadV1) ([]handlerwrapper.Result, error)
	HandleStatusChanged(ctx context.Context, payload *roomevents.StatusChangedPayloadV1) ([]handlerwrapper.Result, error)
	HandleChatReceived(ctx context.Context, payload *roomevents.ChatReceivedPayloadV1) ([]handlerwrapper.Result, error)
	HandleDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) ([]handlerwrapper.Result, error)
	HandleDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) ([]handlerwrapper.Result, error)
}

// RoomHandlers implements Handlers.
type RoomHandlers struct {
	service roomservice.Service
}

var _ Handlers = (*RoomHandlers)(nil)

// NewRoomHandlers creates a RoomHandlers.
func NewRoomHandlers(service roomservice.Service) *RoomHandlers {
	return &RoomHandlers{service: service}
}

func toResults(in []results.HandlerResult) []handlerwrapper.Result {
	out := make([]handlerwrapper.Result, len(in))
	for i, hr := range in {
		out[i] = handlerwrapper.Result{Topic: hr.Topic, Payload: hr.Payload, Metadata: hr.Metadata}
	}
	return out
}

func (h *RoomHandlers) HandleOpenDue(ctx context.Context, payload *roomevents.OpenDuePayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.EvaluateOpen(ctx, payload.RaceID, payload.Kind, 1)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: racechatevents.RoomCreateV1, Payload: result.Success}}, nil
}

func (h *RoomHandlers) HandleRetryDue(ctx context.Context, payload *roomevents.CreateRetryDuePayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.EvaluateOpen(ctx, payload.RaceID, payload.Kind, payload.Attempt)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: racechatevents.RoomCreateV1, Payload: result.Success}}, nil
}

func (h *RoomHandlers) HandleEntrantsUpdated(ctx context.Context, payload *raceevents.EntrantsUpdatedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	if !payload.AllConfirmed {
		return nil, nil
	}
	out, err := h.service.EvaluateAll(ctx, payload.RaceID)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}

func (h *RoomHandlers) HandleRoomCreated(ctx context.Context, payload *roomevents.CreatedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.RecordCreated(ctx, payload.RaceID, payload.Kind, payload.Handle)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: roomevents.RoomOpenedV1, Payload: result.Success}}, nil
}

func (h *RoomHandlers) HandleCreationFailed(ctx context.Context, payload *roomevents.CreationFailedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.RecordCreationFailure(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: roomevents.RoomCreationAbandonedV1, Payload: result.Success}}, nil
}

func (h *RoomHandlers) HandleStatusChanged(ctx context.Context, payload *roomevents.StatusChangedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.RecordStatus(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: roomevents.RoomClosedV1, Payload: result.Success}}, nil
}

func (h *RoomHandlers) HandleChatReceived(ctx context.Context, payload *roomevents.ChatReceivedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.HandleChat(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}

func (h *RoomHandlers) HandleDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.RelayDraftAdvanced(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: racechatevents.MessageSendV1, Payload: result.Success}}, nil
}

func (h *RoomHandlers) HandleDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.RelayDraftRejected(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.Success == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{Topic: racechatevents.MessageSendV1, Payload: result.Success}}, nil
}
