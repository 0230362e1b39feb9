package raceservice

import (
	"context"
	"errors"
	"fmt"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// SetLock freezes (or unfreezes) the race's schedule against further edits.
// Re-applying the current lock state is a no-op success.
func (s *RaceService) SetLock(ctx context.Context, raceID sharedtypes.RaceID, lock bool, by sharedtypes.UserID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "SetLock", raceID, func(ctx context.Context) (results.OperationResult, error) {
		_, err := s.repo.UpdateRace(ctx, raceID, func(race *racedb.Race) error {
			if race.Status.Terminal() {
				return fmt.Errorf("%w: race is %s", errRaceClosed, race.Status)
			}
			if race.ScheduleLocked == lock {
				return racedb.ErrNoChange
			}
			race.ScheduleLocked = lock
			race.Touch(by, s.clock())
			return nil
		})
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.FailureResult(&raceevents.LockFailedPayloadV1{
				RaceID: raceID,
				Reason: "race not found",
			}), nil
		}
		if errors.Is(err, errRaceClosed) {
			return results.FailureResult(&raceevents.LockFailedPayloadV1{
				RaceID: raceID,
				Reason: err.Error(),
			}), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to update lock: %w", err)
		}

		return results.SuccessResult(&raceevents.LockChangedPayloadV1{
			RaceID: raceID,
			Locked: lock,
			By:     by,
		}), nil
	})
}
