package draftservice

import (
	"context"
	"errors"
	"fmt"

	draftdomain "github.com/midoshouse/midos.house/app/modules/draft/domain"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// StartDraft announces the opening turn of a freshly created race's draft and
// arms the first reminder. Races without a draft are a silent no-op so every
// race creation can fan in here.
func (s *DraftService) StartDraft(ctx context.Context, raceID sharedtypes.RaceID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "StartDraft", raceID, func(ctx context.Context) (results.OperationResult, error) {
		race, err := s.repo.GetRace(ctx, raceID)
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.OperationResult{}, nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
		}
		if race.DraftState == nil || race.DraftState.Complete() || race.Status.Terminal() {
			return results.OperationResult{}, nil
		}
		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load event config: %w", err)
		}

		turn, _ := race.DraftState.CurrentTurn()
		if err := s.queue.ScheduleDraftReminder(ctx, raceID, race.DraftState.StepsDone, s.clock().Add(reminderInterval)); err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to schedule draft reminder: %w", err)
		}

		return results.SuccessResult(&draftevents.StartedPayloadV1{
			RaceID: raceID,
			Turn:   turn,
			Prompt: draftdomain.Prompt(cfg.Draft, *race.DraftState),
		}), nil
	})
}

// Remind re-announces the pending turn. The StepsDone guard drops reminders
// armed for a step the teams have since moved past.
func (s *DraftService) Remind(ctx context.Context, raceID sharedtypes.RaceID, stepsDone int) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "Remind", raceID, func(ctx context.Context) (results.OperationResult, error) {
		race, err := s.repo.GetRace(ctx, raceID)
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.OperationResult{}, nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
		}
		if race.DraftState == nil || race.DraftState.Complete() || race.Status.Terminal() {
			return results.OperationResult{}, nil
		}
		if race.DraftState.StepsDone != stepsDone {
			s.logger.DebugContext(ctx, "Dropping stale draft reminder",
				attr.RaceID("race_id", raceID),
				attr.Int("armed_for", stepsDone),
				attr.Int("steps_done", race.DraftState.StepsDone),
			)
			return results.OperationResult{}, nil
		}
		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load event config: %w", err)
		}

		turn, _ := race.DraftState.CurrentTurn()
		if err := s.queue.ScheduleDraftReminder(ctx, raceID, stepsDone, s.clock().Add(reminderInterval)); err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to re-arm draft reminder: %w", err)
		}

		return results.SuccessResult(&draftevents.StartedPayloadV1{
			RaceID: raceID,
			Turn:   turn,
			Prompt: draftdomain.Prompt(cfg.Draft, *race.DraftState),
		}), nil
	})
}
