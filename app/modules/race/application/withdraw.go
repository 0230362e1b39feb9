package raceservice

import (
	"context"
	"errors"
	"fmt"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Withdraw moves the race to its withdrawn terminal state. Withdrawal is
// allowed from any non-terminal state; a second withdrawal is a no-op success
// so redeliveries and concurrent team resignations stay harmless.
func (s *RaceService) Withdraw(ctx context.Context, raceID sharedtypes.RaceID, teamID sharedtypes.TeamID, by sharedtypes.UserID, reason string) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "Withdraw", raceID, func(ctx context.Context) (results.OperationResult, error) {
		_, err := s.repo.UpdateRace(ctx, raceID, func(race *racedb.Race) error {
			if race.Status == sharedtypes.RaceStatusWithdrawn {
				return racedb.ErrNoChange
			}
			if race.Status == sharedtypes.RaceStatusRecorded {
				return fmt.Errorf("%w: result already recorded", errRaceClosed)
			}
			if teamID != "" && race.Entrant(teamID) == nil {
				return fmt.Errorf("%w: team %q is not entered", errNotAnEntrant, teamID)
			}
			race.Status = sharedtypes.RaceStatusWithdrawn
			race.Touch(by, s.clock())
			return nil
		})
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.FailureResult(&raceevents.WithdrawFailedPayloadV1{
				RaceID: raceID,
				Reason: "race not found",
			}), nil
		}
		if errors.Is(err, errRaceClosed) || errors.Is(err, errNotAnEntrant) {
			return results.FailureResult(&raceevents.WithdrawFailedPayloadV1{
				RaceID: raceID,
				Reason: err.Error(),
			}), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to withdraw race: %w", err)
		}

		if err := s.queue.CancelRaceJobs(ctx, raceID); err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to cancel race timers: %w", err)
		}

		s.logger.InfoContext(ctx, "Race withdrawn",
			attr.RaceID("race_id", raceID),
			attr.TeamID("team_id", teamID),
			attr.String("reason", reason),
		)

		return results.SuccessResult(&raceevents.RaceWithdrawnPayloadV1{
			RaceID: raceID,
			TeamID: teamID,
			By:     by,
		}), nil
	})
}

var errNotAnEntrant = errors.New("withdrawal refused")

// WithdrawTeam withdraws every active race the team is entered in. Used when
// a team resigns from its event.
func (s *RaceService) WithdrawTeam(ctx context.Context, teamID sharedtypes.TeamID) ([]*raceevents.RaceWithdrawnPayloadV1, error) {
	races, err := s.repo.FindActiveByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active races for team %s: %w", teamID, err)
	}

	var withdrawn []*raceevents.RaceWithdrawnPayloadV1
	for _, race := range races {
		result, err := s.Withdraw(ctx, race.ID, teamID, sharedtypes.SystemActor, "team resigned")
		if err != nil {
			return withdrawn, err
		}
		if payload, ok := result.Success.(*raceevents.RaceWithdrawnPayloadV1); ok {
			withdrawn = append(withdrawn, payload)
		}
	}
	return withdrawn, nil
}
