package resultservice

import (
	"context"
	"fmt"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	resultevents "github.com/midoshouse/midos.house/app/shared/events/result"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// HandleBracketSetUpdated checks a bracket-side winner against our recorded
// outcome. Agreement confirms; disagreement flags review and never rewrites
// the race record.
func (s *ResultService) HandleBracketSetUpdated(ctx context.Context, payload *bracketevents.SetUpdatedPayloadV1) ([]results.HandlerResult, error) {
	if payload.ReportedWinner == nil {
		return nil, nil
	}

	races, err := s.repo.FindBySet(ctx, payload.EventID, payload.SetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load set races: %w", err)
	}
	if len(races) == 0 {
		return nil, nil
	}

	return s.withTelemetry(ctx, "HandleBracketSetUpdated", races[0].ID, func(ctx context.Context) ([]results.HandlerResult, error) {
		gameCount := payload.GameCount
		if gameCount < 1 {
			gameCount = 1
		}

		wins := map[sharedtypes.TeamID]int{}
		var lastRecorded sharedtypes.RaceID
		for _, r := range races {
			if !r.Recorded || r.WinnerTeamID == nil {
				continue
			}
			wins[*r.WinnerTeamID]++
			lastRecorded = r.ID
		}

		var ourWinner sharedtypes.TeamID
		for team, n := range wins {
			if 2*n > gameCount {
				ourWinner = team
			}
		}
		if ourWinner == "" {
			// Nothing decided on our side yet; the bracket will be rechecked
			// when the match resolves.
			return nil, nil
		}

		if ourWinner == *payload.ReportedWinner {
			return []results.HandlerResult{{
				Topic:   resultevents.ResultConfirmedV1,
				Payload: &resultevents.ConfirmedPayloadV1{RaceID: lastRecorded, SetID: payload.SetID},
			}}, nil
		}

		s.logger.WarnContext(ctx, "Bracket disagrees with recorded winner",
			attr.String("set_id", string(payload.SetID)),
			attr.TeamID("recorded_winner", ourWinner),
			attr.TeamID("bracket_winner", *payload.ReportedWinner),
		)
		// The recorded winner stands; the race is held for an organizer.
		if _, err := s.repo.UpdateRace(ctx, lastRecorded, func(race *racedb.Race) error {
			if race.Status == sharedtypes.RaceStatusNeedsReview {
				return racedb.ErrNoChange
			}
			race.Status = sharedtypes.RaceStatusNeedsReview
			race.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to flag bracket disagreement: %w", err)
		}
		return []results.HandlerResult{{
			Topic: resultevents.ResultNeedsReviewV1,
			Payload: &resultevents.NeedsReviewPayloadV1{
				RaceID: lastRecorded,
				Reason: "bracket reports a different winner",
			},
		}}, nil
	})
}
