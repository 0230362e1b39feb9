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

var errNoDraft = errors.New("no draft on this race")

// SubmitAction applies one negotiation move to the race's draft state. The
// transition runs inside the repository's update loop so a concurrent
// submission loses cleanly instead of overwriting.
func (s *DraftService) SubmitAction(ctx context.Context, req *draftevents.ActionSubmittedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "SubmitAction", req.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		reject := func(reason string) results.OperationResult {
			return results.FailureResult(&draftevents.RejectedPayloadV1{
				RaceID: req.RaceID,
				TeamID: req.TeamID,
				By:     req.By,
				Reason: reason,
				Source: req.Source,
			})
		}

		race, err := s.repo.GetRace(ctx, req.RaceID)
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return reject("race not found"), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
		}
		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load event config: %w", err)
		}

		action := draftdomain.Action{
			Kind:    req.Action.Kind,
			Setting: req.Action.Setting,
			Value:   req.Action.Value,
			First:   req.Action.First,
		}

		var outcome draftdomain.Outcome
		var finalState draftdomain.State
		updated, err := s.repo.UpdateRace(ctx, req.RaceID, func(race *racedb.Race) error {
			if race.Status.Terminal() {
				return fmt.Errorf("%w: race is %s", errNoDraft, race.Status)
			}
			if race.DraftState == nil {
				return errNoDraft
			}
			next, out, err := draftdomain.Submit(cfg.Draft, *race.DraftState, req.TeamID, action)
			if err != nil {
				return err
			}
			outcome = out
			finalState = next
			race.DraftState = &next
			if next.Complete() {
				// Finalized settings replace the draft state entirely.
				race.DraftState = nil
				race.Settings = draftdomain.FinalSettings(cfg.Draft, next)
				if race.ScheduledStart != nil || race.Async() {
					race.Status = sharedtypes.RaceStatusPendingRoom
				} else {
					race.Status = sharedtypes.RaceStatusScheduling
				}
			}
			race.Touch(req.By, s.clock())
			return nil
		})
		switch {
		case errors.Is(err, draftdomain.ErrWrongParty):
			return reject("it is not your turn"), nil
		case errors.Is(err, draftdomain.ErrComplete):
			return reject("the draft is already complete"), nil
		case errors.Is(err, draftdomain.ErrInvalidChoice), errors.Is(err, errNoDraft):
			return reject(err.Error()), nil
		case err != nil:
			return results.OperationResult{}, fmt.Errorf("failed to store draft transition: %w", err)
		}

		advanced := &draftevents.AdvancedPayloadV1{
			RaceID:   req.RaceID,
			By:       outcome.By,
			Summary:  outcome.Summary,
			NextTurn: outcome.NextTurn,
			Prompt:   outcome.Prompt,
			Complete: outcome.Complete,
		}

		if !outcome.Complete {
			if err := s.queue.ScheduleDraftReminder(ctx, req.RaceID, finalState.StepsDone, s.clock().Add(reminderInterval)); err != nil {
				return results.OperationResult{}, fmt.Errorf("failed to schedule draft reminder: %w", err)
			}
			return results.SuccessResult(advanced), nil
		}

		s.logger.InfoContext(ctx, "Draft completed",
			attr.RaceID("race_id", req.RaceID),
			attr.Int("settings", len(updated.Settings)),
		)
		return results.SuccessResult(&Completion{
			Advanced: advanced,
			Completed: &draftevents.CompletedPayloadV1{
				RaceID:   req.RaceID,
				Settings: updated.Settings,
				Picked:   finalState.Picks,
			},
		}), nil
	})
}
