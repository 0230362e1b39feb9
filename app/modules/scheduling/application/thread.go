package schedulingservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	schedevents "github.com/midoshouse/midos.house/app/shared/events/scheduling"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

const threadUsage = "Propose a start time with `!schedule <time> [timezone]` " +
	"(async halves: `!schedule async1 <time>`). " +
	"Other commands: `!schedule-remove`, `!withdraw`, and draft actions once the draft opens."

// BuildThreadRequest assembles the thread-create effect for a new race.
func (s *SchedulingService) BuildThreadRequest(ctx context.Context, payload *raceevents.RaceCreatedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "BuildThreadRequest", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		race, err := s.repo.GetRace(ctx, payload.RaceID)
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.OperationResult{}, nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
		}
		if race.SchedulingThread != "" {
			// Redelivered creation event; the thread already exists.
			return results.OperationResult{}, nil
		}

		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load event config: %w", err)
		}

		var names []string
		var participants []sharedtypes.UserID
		for _, entrant := range race.Entrants {
			team, err := s.teamRepo.GetTeam(ctx, entrant.TeamID)
			if err != nil {
				return results.OperationResult{}, fmt.Errorf("failed to load team %s: %w", entrant.TeamID, err)
			}
			names = append(names, team.Name)
			for _, member := range team.Members {
				participants = append(participants, member.UserID)
			}
		}

		title := fmt.Sprintf("%s: %s", threadScope(cfg.DisplayName, race), strings.Join(names, " vs "))
		return results.SuccessResult(&threadevents.ThreadCreatePayloadV1{
			RaceID:       race.ID,
			Title:        title,
			Content:      fmt.Sprintf("Scheduling thread for %s.", strings.Join(names, " vs ")),
			Participants: participants,
		}), nil
	})
}

func threadScope(display string, race *racedb.Race) string {
	parts := []string{display}
	if race.Phase != "" {
		parts = append(parts, race.Phase)
	}
	if race.Round != "" {
		parts = append(parts, race.Round)
	}
	if race.GameCount > 1 {
		parts = append(parts, fmt.Sprintf("Game %d", race.Game))
	}
	return strings.Join(parts, " ")
}

// RecordThread stores the adapter's thread handle and posts the usage note.
func (s *SchedulingService) RecordThread(ctx context.Context, payload *schedevents.ThreadCreatedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RecordThread", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		already := false
		_, err := s.repo.UpdateRace(ctx, payload.RaceID, func(race *racedb.Race) error {
			if race.SchedulingThread == payload.Ref {
				already = true
				return racedb.ErrNoChange
			}
			race.SchedulingThread = payload.Ref
			race.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		})
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.OperationResult{}, nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to record thread handle: %w", err)
		}
		if already {
			return results.OperationResult{}, nil
		}

		return results.SuccessResult(&threadevents.MessagePostPayloadV1{
			Ref:  payload.Ref,
			Text: threadUsage,
		}), nil
	})
}

// RecordThreadFailure audits a failed thread creation. Races stay schedulable
// through operator channels, so this only alerts.
func (s *SchedulingService) RecordThreadFailure(ctx context.Context, payload *schedevents.ThreadCreationFailedPayloadV1) error {
	s.logger.ErrorContext(ctx, "Scheduling thread creation failed",
		attr.ExtractCorrelationID(ctx),
		attr.RaceID("race_id", payload.RaceID),
		attr.String("reason", payload.Reason),
	)
	return nil
}
