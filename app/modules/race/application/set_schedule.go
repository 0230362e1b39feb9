package raceservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// SetSchedule applies a proposed start time after policy validation and
// re-plans the race's durable timers. Exactly one of Start and AsyncStarts
// must be present. The system actor bypasses the notice check so startup
// reconciliation and bracket imports can backfill past schedules.
func (s *RaceService) SetSchedule(ctx context.Context, req *raceevents.ScheduleSetRequestedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "SetSchedule", req.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		reject := func(reason string, locked bool) results.OperationResult {
			return results.FailureResult(&raceevents.ScheduleRejectedPayloadV1{
				RaceID:      req.RaceID,
				RequestedBy: req.RequestedBy,
				Reason:      reason,
				Locked:      locked,
			})
		}

		race, err := s.repo.GetRace(ctx, req.RaceID)
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return reject("race not found", false), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
		}

		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load event config: %w", err)
		}

		if reason, locked := s.validateSchedule(cfg, race, req); reason != "" {
			return reject(reason, locked), nil
		}

		updated, err := s.repo.UpdateRace(ctx, req.RaceID, func(race *racedb.Race) error {
			if race.Status.Terminal() {
				return fmt.Errorf("%w: race is %s", errRaceClosed, race.Status)
			}
			race.ScheduledStart = nil
			race.AsyncStart1, race.AsyncStart2, race.AsyncStart3 = nil, nil, nil
			if req.Start != nil {
				start := req.Start.UTC()
				race.ScheduledStart = &start
			}
			for kind, at := range req.AsyncStarts {
				at := at.UTC()
				switch kind {
				case sharedtypes.RoomKindAsync1:
					race.AsyncStart1 = &at
				case sharedtypes.RoomKindAsync2:
					race.AsyncStart2 = &at
				case sharedtypes.RoomKindAsync3:
					race.AsyncStart3 = &at
				}
			}
			race.Status = nextStatusAfterScheduling(race)
			race.Touch(req.RequestedBy, s.clock())
			return nil
		})
		if err != nil {
			if errors.Is(err, errRaceClosed) {
				return reject(err.Error(), false), nil
			}
			return results.OperationResult{}, fmt.Errorf("failed to store schedule: %w", err)
		}

		if err := s.replanTimers(ctx, updated, cfg); err != nil {
			return results.OperationResult{}, err
		}

		return results.SuccessResult(&raceevents.ScheduleSetPayloadV1{
			RaceID:      req.RaceID,
			Start:       req.Start,
			AsyncStarts: req.AsyncStarts,
			By:          req.RequestedBy,
		}), nil
	})
}

// RemoveSchedule clears the start time and cancels the race's pending timers.
func (s *RaceService) RemoveSchedule(ctx context.Context, raceID sharedtypes.RaceID, requestedBy sharedtypes.UserID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RemoveSchedule", raceID, func(ctx context.Context) (results.OperationResult, error) {
		reject := func(reason string, locked bool) results.OperationResult {
			return results.FailureResult(&raceevents.ScheduleRejectedPayloadV1{
				RaceID:      raceID,
				RequestedBy: requestedBy,
				Reason:      reason,
				Locked:      locked,
			})
		}

		_, err := s.repo.UpdateRace(ctx, raceID, func(race *racedb.Race) error {
			if race.Status.Terminal() {
				return fmt.Errorf("%w: race is %s", errRaceClosed, race.Status)
			}
			if race.ScheduleLocked && requestedBy != sharedtypes.SystemActor {
				return errScheduleLocked
			}
			if race.ScheduledStart == nil && !race.Async() {
				return racedb.ErrNoChange
			}
			race.ScheduledStart = nil
			race.AsyncStart1, race.AsyncStart2, race.AsyncStart3 = nil, nil, nil
			race.Status = sharedtypes.RaceStatusScheduling
			race.Touch(requestedBy, s.clock())
			return nil
		})
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return reject("race not found", false), nil
		}
		if errors.Is(err, errScheduleLocked) {
			return reject("schedule is locked", true), nil
		}
		if errors.Is(err, errRaceClosed) {
			return reject(err.Error(), false), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to clear schedule: %w", err)
		}

		if err := s.queue.CancelRaceJobs(ctx, raceID); err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to cancel race timers: %w", err)
		}

		return results.SuccessResult(&raceevents.ScheduleRemovedPayloadV1{
			RaceID: raceID,
			By:     requestedBy,
		}), nil
	})
}

var (
	errRaceClosed     = errors.New("race no longer accepts changes")
	errScheduleLocked = errors.New("schedule is locked")
)

func (s *RaceService) validateSchedule(cfg *eventtypes.EventConfig, race *racedb.Race, req *raceevents.ScheduleSetRequestedPayloadV1) (string, bool) {
	if race.Status.Terminal() {
		return fmt.Sprintf("race is already %s", race.Status), false
	}
	if race.ScheduleLocked && req.RequestedBy != sharedtypes.SystemActor {
		return "schedule is locked", true
	}

	if (req.Start == nil) == (len(req.AsyncStarts) == 0) {
		return "exactly one of a start time or async start times is required", false
	}

	var starts []time.Time
	if req.Start != nil {
		starts = append(starts, *req.Start)
	}
	for kind, at := range req.AsyncStarts {
		if kind.AsyncIndex() == 0 {
			return fmt.Sprintf("unknown async room kind %q", kind), false
		}
		starts = append(starts, at)
	}

	now := s.clock()
	for _, start := range starts {
		if req.RequestedBy != sharedtypes.SystemActor && start.Before(now.Add(cfg.MinScheduleNotice)) {
			return fmt.Sprintf("start must be at least %s away", cfg.MinScheduleNotice), false
		}
		for _, window := range cfg.Blackouts {
			if window.Contains(start) {
				return fmt.Sprintf("start falls in a blackout window (%s to %s)",
					window.From.Format(time.RFC3339), window.To.Format(time.RFC3339)), false
			}
		}
	}
	return "", false
}

// nextStatusAfterScheduling picks the phase a freshly scheduled race sits in:
// the draft still gates the room when settings are not final.
func nextStatusAfterScheduling(race *racedb.Race) sharedtypes.RaceStatus {
	if race.DraftState != nil && race.Settings == nil {
		return sharedtypes.RaceStatusDrafting
	}
	return sharedtypes.RaceStatusPendingRoom
}

// replanTimers cancels pending timers and schedules room opens and the seed
// roll against the new start times.
func (s *RaceService) replanTimers(ctx context.Context, race *racedb.Race, cfg *eventtypes.EventConfig) error {
	if err := s.queue.CancelRaceJobs(ctx, race.ID); err != nil {
		return fmt.Errorf("failed to cancel stale timers: %w", err)
	}

	var earliest *time.Time
	schedule := func(kind sharedtypes.RoomKind, start *time.Time) error {
		if start == nil {
			return nil
		}
		if earliest == nil || start.Before(*earliest) {
			earliest = start
		}
		return s.queue.ScheduleRoomOpen(ctx, race.ID, kind, start.Add(-cfg.OpenRoomLead))
	}
	for _, kind := range []sharedtypes.RoomKind{
		sharedtypes.RoomKindNormal,
		sharedtypes.RoomKindAsync1,
		sharedtypes.RoomKindAsync2,
		sharedtypes.RoomKindAsync3,
	} {
		if err := schedule(kind, race.StartFor(kind)); err != nil {
			return fmt.Errorf("failed to schedule room open: %w", err)
		}
	}

	if earliest != nil {
		if err := s.queue.ScheduleSeedRoll(ctx, race.ID, 1, earliest.Add(-cfg.SeedLead)); err != nil {
			return fmt.Errorf("failed to schedule seed roll: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Re-planned race timers",
		attr.RaceID("race_id", race.ID),
	)
	return nil
}
