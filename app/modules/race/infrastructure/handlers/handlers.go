// Package racehandlers maps race lifecycle bus messages onto the service.
package racehandlers

import (
	"context"
	"errors"

	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	teamevents "github.com/midoshouse/midos.house/app/shared/events/team"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
	"github.com/midoshouse/midos.house/app/shared/utils/results"

	raceservice "github.com/midoshouse/midos.house/app/modules/race/application"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleCreateRace(ctx context.Context, payload *raceevents.RaceCreateRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleSetSchedule(ctx context.Context, payload *raceevents.ScheduleSetRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleRemoveSchedule(ctx context.Context, payload *raceevents.ScheduleRemoveRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleLock(ctx context.Context, payload *raceevents.LockRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleUnlock(ctx context.Context, payload *raceevents.LockRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleWithdraw(ctx context.Context, payload *raceevents.WithdrawRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleMemberConfirmed(ctx context.Context, payload *teamevents.MemberConfirmedPayloadV1) ([]handlerwrapper.Result, error)
	HandleTeamResigned(ctx context.Context, payload *teamevents.ResignedPayloadV1) ([]handlerwrapper.Result, error)
}

// RaceHandlers implements Handlers.
type RaceHandlers struct {
	service raceservice.Service
}

var _ Handlers = (*RaceHandlers)(nil)

// NewRaceHandlers creates a RaceHandlers.
func NewRaceHandlers(service raceservice.Service) *RaceHandlers {
	return &RaceHandlers{service: service}
}

func mapOperationResult(result results.OperationResult, successTopic, failureTopic string) []handlerwrapper.Result {
	handlerResults := result.MapToHandlerResults(successTopic, failureTopic)
	out := make([]handlerwrapper.Result, len(handlerResults))
	for i, hr := range handlerResults {
		out[i] = handlerwrapper.Result{Topic: hr.Topic, Payload: hr.Payload, Metadata: hr.Metadata}
	}
	return out
}

func (h *RaceHandlers) HandleCreateRace(ctx context.Context, payload *raceevents.RaceCreateRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.CreateRace(ctx, payload)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, raceevents.RaceCreatedV1, raceevents.RaceCreationFailedV1), nil
}

func (h *RaceHandlers) HandleSetSchedule(ctx context.Context, payload *raceevents.ScheduleSetRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.SetSchedule(ctx, payload)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, raceevents.RaceScheduleSetV1, raceevents.RaceScheduleRejectedV1), nil
}

func (h *RaceHandlers) HandleRemoveSchedule(ctx context.Context, payload *raceevents.ScheduleRemoveRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.RemoveSchedule(ctx, payload.RaceID, payload.RequestedBy)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, raceevents.RaceScheduleRemovedV1, raceevents.RaceScheduleRejectedV1), nil
}

func (h *RaceHandlers) HandleLock(ctx context.Context, payload *raceevents.LockRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.SetLock(ctx, payload.RaceID, true, payload.RequestedBy)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, raceevents.RaceLockedV1, raceevents.RaceLockFailedV1), nil
}

func (h *RaceHandlers) HandleUnlock(ctx context.Context, payload *raceevents.LockRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.SetLock(ctx, payload.RaceID, false, payload.RequestedBy)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, raceevents.RaceUnlockedV1, raceevents.RaceLockFailedV1), nil
}

func (h *RaceHandlers) HandleWithdraw(ctx context.Context, payload *raceevents.WithdrawRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.Withdraw(ctx, payload.RaceID, payload.TeamID, payload.RequestedBy, payload.Reason)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, raceevents.RaceWithdrawnV1, raceevents.RaceWithdrawFailedV1), nil
}

func (h *RaceHandlers) HandleMemberConfirmed(ctx context.Context, payload *teamevents.MemberConfirmedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	updates, err := h.service.SyncTeamConfirmation(ctx, payload.TeamID)
	if err != nil {
		return nil, err
	}
	out := make([]handlerwrapper.Result, len(updates))
	for i, update := range updates {
		out[i] = handlerwrapper.Result{Topic: raceevents.RaceEntrantsUpdatedV1, Payload: update}
	}
	return out, nil
}

func (h *RaceHandlers) HandleTeamResigned(ctx context.Context, payload *teamevents.ResignedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	withdrawn, err := h.service.WithdrawTeam(ctx, payload.TeamID)
	if err != nil {
		return nil, err
	}
	out := make([]handlerwrapper.Result, len(withdrawn))
	for i, payload := range withdrawn {
		out[i] = handlerwrapper.Result{Topic: raceevents.RaceWithdrawnV1, Payload: payload}
	}
	return out, nil
}
