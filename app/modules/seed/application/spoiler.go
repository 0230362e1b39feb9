package seedservice

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	resultevents "github.com/midoshouse/midos.house/app/shared/events/result"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// UnlockSpoiler reacts to a recorded race: it clears the spoiler lock, mints
// a signed expiring download token, and announces the unlock link.
func (s *SeedService) UnlockSpoiler(ctx context.Context, payload *resultevents.RecordedPayloadV1) ([]results.HandlerResult, error) {
	return s.withTelemetry(ctx, "UnlockSpoiler", payload.RaceID, func(ctx context.Context) ([]results.HandlerResult, error) {
		race, err := s.repo.GetRace(ctx, payload.RaceID)
		if err != nil {
			if errors.Is(err, racedb.ErrRaceNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to load race: %w", err)
		}
		if race.SpoilerPath == "" {
			s.logger.DebugContext(ctx, "Recorded race has no spoiler to unlock",
				attr.RaceID("race_id", race.ID))
			return nil, nil
		}

		var applied bool
		updated, err := s.repo.UpdateRace(ctx, race.ID, func(r *racedb.Race) error {
			applied = false
			if !r.SpoilerLocked {
				return racedb.ErrNoChange
			}
			applied = true
			r.SpoilerLocked = false
			r.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to unlock spoiler: %w", err)
		}
		if !applied {
			// Redelivery; the unlock link was already announced.
			return nil, nil
		}

		token, err := s.signer.Mint(updated.ID, s.clock())
		if err != nil {
			return nil, err
		}
		link := fmt.Sprintf("%s/seeds/%s/spoiler?token=%s",
			strings.TrimRight(s.baseURL, "/"), updated.ID, url.QueryEscape(token))

		out := []results.HandlerResult{{
			Topic:   seedevents.SpoilerUnlockedV1,
			Payload: &seedevents.SpoilerUnlockedPayloadV1{RaceID: updated.ID, URL: link},
		}}
		if post := threadPost(updated, "Spoiler log unlocked: "+link); post != nil {
			out = append(out, *post)
		}
		return out, nil
	})
}
