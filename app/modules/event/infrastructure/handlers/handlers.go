// Package eventhandlers maps event-config bus messages onto the service.
package eventhandlers

import (
	"context"
	"errors"

	configevents "github.com/midoshouse/midos.house/app/shared/events/config"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
	"github.com/midoshouse/midos.house/app/shared/utils/results"

	eventservice "github.com/midoshouse/midos.house/app/modules/event/application"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleCreateConfig(ctx context.Context, payload *configevents.CreateRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleUpdateConfig(ctx context.Context, payload *configevents.UpdateRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleRetrieveConfig(ctx context.Context, payload *configevents.RetrievalRequestedPayloadV1) ([]handlerwrapper.Result, error)
}

// EventHandlers implements Handlers.
type EventHandlers struct {
	service eventservice.Service
}

var _ Handlers = (*EventHandlers)(nil)

// NewEventHandlers creates an EventHandlers.
func NewEventHandlers(service eventservice.Service) *EventHandlers {
	return &EventHandlers{service: service}
}

func mapOperationResult(result results.OperationResult, successTopic, failureTopic string) []handlerwrapper.Result {
	handlerResults := result.MapToHandlerResults(successTopic, failureTopic)
	out := make([]handlerwrapper.Result, len(handlerResults))
	for i, hr := range handlerResults {
		out[i] = handlerwrapper.Result{Topic: hr.Topic, Payload: hr.Payload, Metadata: hr.Metadata}
	}
	return out
}

func (h *EventHandlers) HandleCreateConfig(ctx context.Context, payload *configevents.CreateRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	cfg := payload.Config
	result, err := h.service.CreateConfig(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, configevents.EventConfigCreatedV1, configevents.EventConfigCreationFailedV1), nil
}

func (h *EventHandlers) HandleUpdateConfig(ctx context.Context, payload *configevents.UpdateRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	cfg := payload.Config
	result, err := h.service.UpdateConfig(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, configevents.EventConfigUpdatedV1, configevents.EventConfigUpdateFailedV1), nil
}

func (h *EventHandlers) HandleRetrieveConfig(ctx context.Context, payload *configevents.RetrievalRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.GetConfig(ctx, payload.EventID)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, configevents.EventConfigRetrievedV1, configevents.EventConfigRetrievalFailedV1), nil
}
