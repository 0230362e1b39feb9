package raceservice

import (
	"context"
	"errors"
	"fmt"
	"sort"

	draftdomain "github.com/midoshouse/midos.house/app/modules/draft/domain"
	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// CreateRace creates the authoritative record for one game of a match. The
// entrant confirmation snapshot is taken from the team registry at creation
// time; later roster changes flow in through SyncTeamConfirmation.
func (s *RaceService) CreateRace(ctx context.Context, req *raceevents.RaceCreateRequestedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "CreateRace", "", func(ctx context.Context) (results.OperationResult, error) {
		fail := func(reason string) results.OperationResult {
			return results.FailureResult(&raceevents.RaceCreationFailedPayloadV1{
				EventID: req.EventID,
				SetID:   req.SetID,
				Reason:  reason,
			})
		}

		cfg, err := s.eventRepo.GetConfig(ctx, req.EventID)
		if errors.Is(err, eventdb.ErrEventNotFound) {
			return fail(fmt.Sprintf("event %q is not configured", req.EventID)), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load event config: %w", err)
		}

		if len(req.Entrants) < 2 || len(req.Entrants) > 3 {
			return fail(fmt.Sprintf("a race needs 2 or 3 entrants, got %d", len(req.Entrants))), nil
		}
		refs := make([]raceevents.EntrantRefV1, len(req.Entrants))
		copy(refs, req.Entrants)
		sort.Slice(refs, func(i, j int) bool { return refs[i].Seat < refs[j].Seat })
		for i, ref := range refs {
			if ref.Seat != i {
				return fail(fmt.Sprintf("entrant seats must count up from 0, got seat %d", ref.Seat)), nil
			}
		}

		hardOK := true
		entrants := make([]racedb.Entrant, len(refs))
		for i, ref := range refs {
			team, err := s.teamRepo.GetTeam(ctx, ref.TeamID)
			if errors.Is(err, teamdb.ErrTeamNotFound) {
				return fail(fmt.Sprintf("team %q is not registered", ref.TeamID)), nil
			}
			if err != nil {
				return results.OperationResult{}, fmt.Errorf("failed to load team %s: %w", ref.TeamID, err)
			}
			if team.Resigned {
				return fail(fmt.Sprintf("team %q has resigned", ref.TeamID)), nil
			}
			if team.EventID != req.EventID {
				return fail(fmt.Sprintf("team %q belongs to event %q", ref.TeamID, team.EventID)), nil
			}
			if !team.OptIns.HardSettingsOK {
				hardOK = false
			}
			entrants[i] = racedb.Entrant{
				TeamID:    ref.TeamID,
				Seat:      ref.Seat,
				Confirmed: team.Confirmed(),
			}
		}

		gameCount := req.GameCount
		if gameCount == 0 {
			gameCount = cfg.GameCount
		}
		game := req.Game
		if game == 0 {
			game = 1
		}

		race := &racedb.Race{
			ID:        sharedtypes.NewRaceID(),
			EventID:   req.EventID,
			Phase:     req.Phase,
			Round:     req.Round,
			Game:      game,
			GameCount: gameCount,
			SetID:     req.SetID,
			Entrants:  entrants,
			Status:    sharedtypes.RaceStatusScheduling,
		}

		if cfg.DraftRequired() {
			if len(entrants) != 2 {
				return fail("a settings draft needs exactly 2 entrants"), nil
			}
			var state draftdomain.State
			if req.LoserPicksFirst != nil {
				loser := *req.LoserPicksFirst
				winner := entrants[0].TeamID
				if winner == loser {
					winner = entrants[1].TeamID
				}
				if race.Entrant(loser) == nil {
					return fail(fmt.Sprintf("loser %q is not an entrant of this race", loser)), nil
				}
				state = draftdomain.ForNextGame(cfg.Draft, loser, winner)
			} else {
				state = draftdomain.New(cfg.Draft, entrants[0].TeamID, entrants[1].TeamID)
			}
			// Hard settings stay off the board unless every team opted in.
			state.HardOK = hardOK
			race.DraftState = &state
		}

		if err := s.repo.CreateRace(ctx, race); err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to create race: %w", err)
		}

		return results.SuccessResult(&raceevents.RaceCreatedPayloadV1{
			RaceID:        race.ID,
			EventID:       race.EventID,
			SetID:         race.SetID,
			Phase:         race.Phase,
			Round:         race.Round,
			Game:          race.Game,
			GameCount:     race.GameCount,
			Entrants:      refs,
			DraftRequired: cfg.DraftRequired(),
		}), nil
	})
}
