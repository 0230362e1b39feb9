package roomservice

import (
	"context"
	"errors"
	"fmt"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// RelayDraftAdvanced mirrors draft progress into the race's open room, so
// in-room drafters see the step land without watching the thread.
func (s *RoomService) RelayDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayDraftAdvanced", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		text := payload.Summary
		if payload.Prompt != "" {
			text += "\n" + payload.Prompt
		}
		return s.roomPost(ctx, payload.RaceID, text)
	})
}

// RelayDraftRejected replies the rejection reason to room-sourced actions.
// Thread-sourced rejections belong to the scheduling module.
func (s *RoomService) RelayDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayDraftRejected", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		if payload.Source != "room" {
			return results.OperationResult{}, nil
		}
		return s.roomPost(ctx, payload.RaceID, "Draft action rejected: "+payload.Reason)
	})
}

// roomPost builds a message for the race's normal room, or an empty result
// when no room is open yet.
func (s *RoomService) roomPost(ctx context.Context, raceID sharedtypes.RaceID, text string) (results.OperationResult, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if errors.Is(err, racedb.ErrRaceNotFound) {
		return results.OperationResult{}, nil
	}
	if err != nil {
		return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
	}
	handle := race.RoomHandle(sharedtypes.RoomKindNormal)
	if handle == "" {
		return results.OperationResult{}, nil
	}
	return results.SuccessResult(&racechatevents.MessageSendPayloadV1{Handle: handle, Text: text}), nil
}
