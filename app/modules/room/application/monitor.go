package roomservice

import (
	"context"
	"errors"
	"fmt"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// RecordStatus ingests one room status report. Duplicate reports of the
// current status are dropped; a closing status stops monitoring and yields
// the room's results mapped back onto teams.
func (s *RoomService) RecordStatus(ctx context.Context, payload *roomevents.StatusChangedPayloadV1) (results.OperationResult, error) {
	race, kind, err := s.repo.FindByRoom(ctx, payload.Handle)
	if errors.Is(err, racedb.ErrRaceNotFound) {
		// A room we do not own; the adapter watches only rooms we created,
		// but a stale subscription can outlive a deleted race.
		return results.OperationResult{}, nil
	}
	if err != nil {
		return results.OperationResult{}, fmt.Errorf("failed to find race for room %s: %w", payload.Handle, err)
	}

	return s.withTelemetry(ctx, "RecordStatus", race.ID, func(ctx context.Context) (results.OperationResult, error) {
		closing := payload.Status == roomevents.StatusFinished || payload.Status == roomevents.StatusCancelled

		duplicate := false
		updated, err := s.repo.UpdateRace(ctx, race.ID, func(race *racedb.Race) error {
			duplicate = false
			meta := race.Meta(kind)
			if meta.LastStatus == payload.Status {
				duplicate = true
				return racedb.ErrNoChange
			}
			meta.LastStatus = payload.Status
			if closing {
				meta.Monitoring = false
			}
			if payload.Status == roomevents.StatusInProgress && !race.Status.Terminal() && race.Status != sharedtypes.RaceStatusNeedsReview {
				race.Status = sharedtypes.RaceStatusInProgress
			}
			race.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		})
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to record room status: %w", err)
		}
		if duplicate {
			return results.OperationResult{}, nil
		}

		s.logger.InfoContext(ctx, "Room status changed",
			attr.RaceID("race_id", updated.ID),
			attr.String("kind", string(kind)),
			attr.String("status", payload.Status),
		)

		if !closing {
			return results.OperationResult{}, nil
		}

		extracted, err := s.extractResults(ctx, updated, kind, payload.Entrants)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&roomevents.ClosedPayloadV1{
			RaceID:    updated.ID,
			Kind:      kind,
			Handle:    payload.Handle,
			Cancelled: payload.Status == roomevents.StatusCancelled,
			Results:   extracted,
		}), nil
	})
}

// extractResults maps the room's per-user outcomes onto the race's teams. A
// team's finish is its slowest member; a member who forfeited or was
// disqualified drags the whole team with them. In a normal room a team with no
// member present counts as a forfeit; in an async half the absent team simply
// has no outcome yet.
func (s *RoomService) extractResults(ctx context.Context, race *racedb.Race, kind sharedtypes.RoomKind, roomEntrants []roomevents.RoomEntrantV1) ([]roomevents.EntrantResultV1, error) {
	out := make([]roomevents.EntrantResultV1, 0, len(race.Entrants))
	for _, entrant := range race.Entrants {
		team, err := s.teamRepo.GetTeam(ctx, entrant.TeamID)
		if err != nil {
			return nil, fmt.Errorf("failed to load team %s for result extraction: %w", entrant.TeamID, err)
		}

		result := roomevents.EntrantResultV1{TeamID: entrant.TeamID}
		matched := 0
		for _, re := range roomEntrants {
			if team.Member(re.UserID) == nil {
				continue
			}
			matched++
			switch re.Status {
			case "done", "finished":
				if re.FinishTime != nil {
					if result.FinishTime == nil || re.FinishTime.Duration() > result.FinishTime.Duration() {
						result.FinishTime = re.FinishTime
					}
				}
				if result.Place == 0 || (re.Place > 0 && re.Place < result.Place) {
					result.Place = re.Place
				}
			case "dnf", "forfeit":
				result.Forfeited = true
			case "dq", "disqualified":
				result.DQ = true
			}
		}
		if matched == 0 {
			if kind != sharedtypes.RoomKindNormal {
				continue
			}
			result.Forfeited = true
		}
		if result.Forfeited || result.DQ {
			result.FinishTime = nil
			result.Place = 0
		}
		out = append(out, result)
	}
	return out, nil
}
