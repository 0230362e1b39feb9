package seedservice

import (
	"context"
	"errors"
	"fmt"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	seedgenevents "github.com/midoshouse/midos.house/app/shared/events/seedgen"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// EvaluateRoll handles a roll deadline: if the race still needs a seed and its
// settings are finalized, it submits a generator job.
func (s *SeedService) EvaluateRoll(ctx context.Context, payload *seedevents.RollDuePayloadV1) ([]results.HandlerResult, error) {
	return s.withTelemetry(ctx, "EvaluateRoll", payload.RaceID, func(ctx context.Context) ([]results.HandlerResult, error) {
		race, err := s.repo.GetRace(ctx, payload.RaceID)
		if err != nil {
			if errors.Is(err, racedb.ErrRaceNotFound) {
				s.logger.InfoContext(ctx, "Roll deadline for unknown race, skipping",
					attr.RaceID("race_id", payload.RaceID))
				return nil, nil
			}
			return nil, fmt.Errorf("failed to load race: %w", err)
		}

		if race.Status.Terminal() || race.Status == sharedtypes.RaceStatusNeedsReview {
			s.logger.InfoContext(ctx, "Race no longer rollable, skipping seed roll",
				attr.RaceID("race_id", race.ID),
				attr.String("status", string(race.Status)))
			return nil, nil
		}
		if race.SeedFile != "" {
			s.logger.DebugContext(ctx, "Seed already attached, skipping roll",
				attr.RaceID("race_id", race.ID))
			return nil, nil
		}

		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load event config: %w", err)
		}
		if cfg.DraftRequired() && race.Settings == nil {
			s.logger.WarnContext(ctx, "Roll deadline reached before settings were finalized, skipping",
				attr.RaceID("race_id", race.ID))
			return nil, nil
		}

		attempt := payload.Attempt
		if attempt < 1 {
			attempt = 1
		}

		return []results.HandlerResult{{
			Topic: seedgenevents.JobSubmitV1,
			Payload: &seedgenevents.JobSubmitPayloadV1{
				RaceID:   race.ID,
				EventID:  race.EventID,
				Settings: race.Settings,
				Attempt:  attempt,
			},
		}}, nil
	})
}

// RecordRollFailure retries a failed generator job with a delay, up to
// maxRollAttempts, then abandons and alerts organizers.
func (s *SeedService) RecordRollFailure(ctx context.Context, payload *seedevents.RollFailedPayloadV1) ([]results.HandlerResult, error) {
	return s.withTelemetry(ctx, "RecordRollFailure", payload.RaceID, func(ctx context.Context) ([]results.HandlerResult, error) {
		race, err := s.repo.GetRace(ctx, payload.RaceID)
		if err != nil {
			if errors.Is(err, racedb.ErrRaceNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to load race: %w", err)
		}
		if race.Status.Terminal() || race.SeedFile != "" {
			s.logger.InfoContext(ctx, "Discarding roll failure for settled race",
				attr.RaceID("race_id", race.ID))
			return nil, nil
		}

		attempt := payload.Attempt
		if attempt < 1 {
			attempt = 1
		}
		if attempt >= maxRollAttempts {
			s.logger.ErrorContext(ctx, "Seed generation abandoned, organizers must roll manually",
				attr.RaceID("race_id", race.ID),
				attr.Int("attempts", attempt),
				attr.String("reason", payload.Reason),
			)
			out := []results.HandlerResult{{
				Topic: seedevents.SeedRollAbandonedV1,
				Payload: &seedevents.RollAbandonedPayloadV1{
					RaceID:   race.ID,
					Attempts: attempt,
					Reason:   payload.Reason,
				},
			}}
			if post := threadPost(race, fmt.Sprintf("Seed generation failed %d times (%s). An organizer needs to roll this seed manually.", attempt, payload.Reason)); post != nil {
				out = append(out, *post)
			}
			return out, nil
		}

		retryAt := s.clock().Add(rollRetryDelay)
		if err := s.queue.ScheduleSeedRoll(ctx, race.ID, attempt+1, retryAt); err != nil {
			return nil, fmt.Errorf("failed to schedule seed roll retry: %w", err)
		}
		s.logger.InfoContext(ctx, "Seed roll failed, retry scheduled",
			attr.RaceID("race_id", race.ID),
			attr.Int("attempt", attempt),
			attr.String("reason", payload.Reason),
		)
		return nil, nil
	})
}
