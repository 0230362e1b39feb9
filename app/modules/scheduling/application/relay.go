package schedulingservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// postTo builds the thread post for a race, or an empty result when the race
// has no thread (operator-created races may never get one).
func (s *SchedulingService) postTo(ctx context.Context, raceID sharedtypes.RaceID, text string) (results.OperationResult, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if errors.Is(err, racedb.ErrRaceNotFound) {
		return results.OperationResult{}, nil
	}
	if err != nil {
		return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
	}
	if race.SchedulingThread == "" {
		return results.OperationResult{}, nil
	}
	return results.SuccessResult(&threadevents.MessagePostPayloadV1{
		Ref:  race.SchedulingThread,
		Text: text,
	}), nil
}

// RelayScheduleSet confirms an accepted schedule in the thread.
func (s *SchedulingService) RelayScheduleSet(ctx context.Context, payload *raceevents.ScheduleSetPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayScheduleSet", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		if payload.Start != nil {
			return s.postTo(ctx, payload.RaceID,
				fmt.Sprintf("Race scheduled for %s.", payload.Start.UTC().Format("Mon Jan 2 15:04 MST")))
		}
		kinds := make([]string, 0, len(payload.AsyncStarts))
		for kind := range payload.AsyncStarts {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		lines := make([]string, len(kinds))
		for i, kind := range kinds {
			lines[i] = fmt.Sprintf("%s at %s", kind, payload.AsyncStarts[sharedtypes.RoomKind(kind)].UTC().Format("Mon Jan 2 15:04 MST"))
		}
		return s.postTo(ctx, payload.RaceID, "Async halves scheduled: "+strings.Join(lines, ", ")+".")
	})
}

// RelayScheduleRemoved announces a cleared schedule.
func (s *SchedulingService) RelayScheduleRemoved(ctx context.Context, payload *raceevents.ScheduleRemovedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayScheduleRemoved", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		return s.postTo(ctx, payload.RaceID, "Schedule removed; propose a new time with !schedule.")
	})
}

// RelayScheduleRejected explains a refused proposal.
func (s *SchedulingService) RelayScheduleRejected(ctx context.Context, payload *raceevents.ScheduleRejectedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayScheduleRejected", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		text := "Schedule proposal rejected: " + payload.Reason
		if payload.Locked {
			text = "The schedule is locked; ask an organizer to change it."
		}
		return s.postTo(ctx, payload.RaceID, text)
	})
}

// RelayDraftStarted posts the opening draft prompt.
func (s *SchedulingService) RelayDraftStarted(ctx context.Context, payload *draftevents.StartedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayDraftStarted", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		return s.postTo(ctx, payload.RaceID, payload.Prompt)
	})
}

// RelayDraftAdvanced posts the step summary and the next prompt.
func (s *SchedulingService) RelayDraftAdvanced(ctx context.Context, payload *draftevents.AdvancedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayDraftAdvanced", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		text := payload.Summary
		if payload.Prompt != "" {
			text += "\n" + payload.Prompt
		}
		return s.postTo(ctx, payload.RaceID, text)
	})
}

// RelayDraftRejected posts the rejection reason for thread-sourced actions.
// Room-sourced rejections are replied to in the room by the room module.
func (s *SchedulingService) RelayDraftRejected(ctx context.Context, payload *draftevents.RejectedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayDraftRejected", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		if payload.Source != "thread" {
			return results.OperationResult{}, nil
		}
		return s.postTo(ctx, payload.RaceID, "Draft action rejected: "+payload.Reason)
	})
}

// RelayDraftCompleted posts the final settings.
func (s *SchedulingService) RelayDraftCompleted(ctx context.Context, payload *draftevents.CompletedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RelayDraftCompleted", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		names := make([]string, 0, len(payload.Settings))
		for name := range payload.Settings {
			names = append(names, name)
		}
		sort.Strings(names)
		pairs := make([]string, len(names))
		for i, name := range names {
			pairs[i] = fmt.Sprintf("%s: %s", name, payload.Settings[name])
		}
		return s.postTo(ctx, payload.RaceID, "Draft complete. Final settings: "+strings.Join(pairs, ", ")+".")
	})
}
