// Package teamhandlers maps team bus messages onto the service.
package teamhandlers

import (
	"context"
	"errors"

	teamevents "github.com/midoshouse/midos.house/app/shared/events/team"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
	"github.com/midoshouse/midos.house/app/shared/utils/results"

	teamservice "github.com/midoshouse/midos.house/app/modules/team/application"
)

// Handlers is the set of typed handlers the router registers.
type Handlers interface {
	HandleRegisterTeam(ctx context.Context, payload *teamevents.RegisterRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleConfirmMember(ctx context.Context, payload *teamevents.MemberConfirmRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleUpdateOptIns(ctx context.Context, payload *teamevents.OptInUpdateRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleResign(ctx context.Context, payload *teamevents.ResignRequestedPayloadV1) ([]handlerwrapper.Result, error)
}

// TeamHandlers implements Handlers.
type TeamHandlers struct {
	service teamservice.Service
}

var _ Handlers = (*TeamHandlers)(nil)

// NewTeamHandlers creates a TeamHandlers.
func NewTeamHandlers(service teamservice.Service) *TeamHandlers {
	return &TeamHandlers{service: service}
}

func mapOperationResult(result results.OperationResult, successTopic, failureTopic string) []handlerwrapper.Result {
	handlerResults := result.MapToHandlerResults(successTopic, failureTopic)
	out := make([]handlerwrapper.Result, len(handlerResults))
	for i, hr := range handlerResults {
		out[i] = handlerwrapper.Result{Topic: hr.Topic, Payload: hr.Payload, Metadata: hr.Metadata}
	}
	return out
}

func (h *TeamHandlers) HandleRegisterTeam(ctx context.Context, payload *teamevents.RegisterRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.RegisterTeam(ctx, payload)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, teamevents.TeamRegisteredV1, teamevents.TeamRegistrationFailedV1), nil
}

func (h *TeamHandlers) HandleConfirmMember(ctx context.Context, payload *teamevents.MemberConfirmRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.ConfirmMember(ctx, payload.TeamID, payload.UserID)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, teamevents.TeamMemberConfirmedV1, teamevents.TeamMemberConfirmFailedV1), nil
}

func (h *TeamHandlers) HandleUpdateOptIns(ctx context.Context, payload *teamevents.OptInUpdateRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.UpdateOptIns(ctx, payload.TeamID, payload.OptIns)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, teamevents.TeamOptInUpdatedV1, teamevents.TeamOptInUpdateFailedV1), nil
}

func (h *TeamHandlers) HandleResign(ctx context.Context, payload *teamevents.ResignRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	result, err := h.service.Resign(ctx, payload.TeamID, payload.RequestedBy)
	if err != nil {
		return nil, err
	}
	return mapOperationResult(result, teamevents.TeamResignedV1, teamevents.TeamResignFailedV1), nil
}
