// Package resulthandlers maps closed rooms and bracket updates onto the
// reconciler.
package resulthandlers

import (
	"context"
	"errors"

	resultservice "github.com/midoshouse/midos.house/app/modules/result/application"
	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleRoomClosed(ctx context.Context, payload *roomevents.ClosedPayloadV1) ([]handlerwrapper.Result, error)
	HandleBracketSetUpdated(ctx context.Context, payload *bracketevents.SetUpdatedPayloadV1) ([]handlerwrapper.Result, error)
}

// ResultHandlers implements Handlers.
type ResultHandlers struct {
	service resultservice.Service
}

var _ Handlers = (*ResultHandlers)(nil)

// NewResultHandlers creates a ResultHandlers.
func NewResultHandlers(service resultservice.Service) *ResultHandlers {
	return &ResultHandlers{service: service}
}

func toResults(in []results.HandlerResult) []handlerwrapper.Result {
	out := make([]handlerwrapper.Result, len(in))
	for i, hr := range in {
		out[i] = handlerwrapper.Result{Topic: hr.Topic, Payload: hr.Payload, Metadata: hr.Metadata}
	}
	return out
}

func (h *ResultHandlers) HandleRoomClosed(ctx context.Context, payload *roomevents.ClosedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.RecordClosedRoom(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}

func (h *ResultHandlers) HandleBracketSetUpdated(ctx context.Context, payload *bracketevents.SetUpdatedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.HandleBracketSetUpdated(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}
