// Package seedhandlers maps seed lifecycle topics onto the seed service.
package seedhandlers

import (
	"context"
	"errors"

	seedservice "github.com/midoshouse/midos.house/app/modules/seed/application"
	resultevents "github.com/midoshouse/midos.house/app/shared/events/result"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleRollDue(ctx context.Context, payload *seedevents.RollDuePayloadV1) ([]handlerwrapper.Result, error)
	HandleRolled(ctx context.Context, payload *seedevents.RolledPayloadV1) ([]handlerwrapper.Result, error)
	HandleRollFailed(ctx context.Context, payload *seedevents.RollFailedPayloadV1) ([]handlerwrapper.Result, error)
	HandleResultRecorded(ctx context.Context, payload *resultevents.RecordedPayloadV1) ([]handlerwrapper.Result, error)
}

// SeedHandlers implements Handlers.
type SeedHandlers struct {
	service seedservice.Service
}

var _ Handlers = (*SeedHandlers)(nil)

// NewSeedHandlers creates a SeedHandlers.
func NewSeedHandlers(service seedservice.Service) *SeedHandlers {
	return &SeedHandlers{service: service}
}

func toResults(in []results.HandlerResult) []handlerwrapper.Result {
	out := make([]handlerwrapper.Result, len(in))
	for i, hr := range in {
		out[i] = handlerwrapper.Result{Topic: hr.Topic, Payload: hr.Payload, Metadata: hr.Metadata}
	}
	return out
}

func (h *SeedHandlers) HandleRollDue(ctx context.Context, payload *seedevents.RollDuePayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.EvaluateRoll(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}

func (h *SeedHandlers) HandleRolled(ctx context.Context, payload *seedevents.RolledPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.RecordRolled(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}

func (h *SeedHandlers) HandleRollFailed(ctx context.Context, payload *seedevents.RollFailedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.RecordRollFailure(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}

func (h *SeedHandlers) HandleResultRecorded(ctx context.Context, payload *resultevents.RecordedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	out, err := h.service.UnlockSpoiler(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toResults(out), nil
}
