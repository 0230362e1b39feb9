package raceservice

import (
	"context"
	"errors"
	"fmt"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// SyncTeamConfirmation re-snapshots the team's confirmation state onto every
// active race it is entered in. Races whose snapshot did not change produce no
// update, so redelivered confirmation events settle to silence.
func (s *RaceService) SyncTeamConfirmation(ctx context.Context, teamID sharedtypes.TeamID) ([]*raceevents.EntrantsUpdatedPayloadV1, error) {
	team, err := s.teamRepo.GetTeam(ctx, teamID)
	if errors.Is(err, teamdb.ErrTeamNotFound) {
		// Nothing to sync; the team may have been deleted out of band.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load team %s: %w", teamID, err)
	}
	confirmed := team.Confirmed()

	races, err := s.repo.FindActiveByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active races for team %s: %w", teamID, err)
	}

	var updates []*raceevents.EntrantsUpdatedPayloadV1
	for _, candidate := range races {
		var changed bool
		updated, err := s.repo.UpdateRace(ctx, candidate.ID, func(race *racedb.Race) error {
			changed = false
			entrant := race.Entrant(teamID)
			if entrant == nil || entrant.Confirmed == confirmed {
				return racedb.ErrNoChange
			}
			entrant.Confirmed = confirmed
			race.Touch(sharedtypes.SystemActor, s.clock())
			changed = true
			return nil
		})
		if err != nil {
			return updates, fmt.Errorf("failed to sync entrants on race %s: %w", candidate.ID, err)
		}
		if !changed {
			continue
		}
		updates = append(updates, &raceevents.EntrantsUpdatedPayloadV1{
			RaceID:       updated.ID,
			AllConfirmed: updated.AllConfirmed(),
		})
		s.logger.InfoContext(ctx, "Entrant confirmation snapshot updated",
			attr.RaceID("race_id", updated.ID),
			attr.TeamID("team_id", teamID),
		)
	}
	return updates, nil
}
