package schedulingservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/commands"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	schedevents "github.com/midoshouse/midos.house/app/shared/events/scheduling"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// HandleMessage parses one thread message. Plain chatter is ignored; commands
// become race or draft requests, with validation outcomes relayed back by the
// owning module.
func (s *SchedulingService) HandleMessage(ctx context.Context, payload *schedevents.ThreadMessageReceivedPayloadV1) ([]results.HandlerResult, error) {
	cmd, err := s.parser.Parse(payload.Text)
	if errors.Is(err, commands.ErrNotCommand) {
		return nil, nil
	}
	var unknown *commands.UnknownCommandError
	if errors.As(err, &unknown) {
		return post(payload.Ref, unknown.Error()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse thread command: %w", err)
	}

	race, err := s.repo.FindByThread(ctx, payload.Ref)
	if errors.Is(err, racedb.ErrRaceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find race for thread %s: %w", payload.Ref, err)
	}

	cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event config: %w", err)
	}
	organizer := cfg.IsOrganizer(payload.AuthorID)

	teamID, err := s.teamOf(ctx, race, payload.AuthorID)
	if err != nil {
		return nil, err
	}
	if teamID == "" && !organizer {
		return post(payload.Ref, "only race entrants can use commands here"), nil
	}

	switch cmd.Name {
	case "schedule":
		return s.proposeSchedule(race, payload, cmd), nil
	case "schedule-remove":
		return []results.HandlerResult{{
			Topic: raceevents.RaceScheduleRemoveRequestedV1,
			Payload: &raceevents.ScheduleRemoveRequestedPayloadV1{
				RaceID:      race.ID,
				RequestedBy: payload.AuthorID,
			},
		}}, nil
	case "withdraw":
		if teamID == "" {
			return post(payload.Ref, "only race entrants can withdraw"), nil
		}
		return []results.HandlerResult{{
			Topic: raceevents.RaceWithdrawRequestedV1,
			Payload: &raceevents.WithdrawRequestedPayloadV1{
				RaceID:      race.ID,
				TeamID:      teamID,
				RequestedBy: payload.AuthorID,
				Reason:      "withdrew in the scheduling thread",
			},
		}}, nil
	case "lock", "unlock":
		if !organizer {
			return post(payload.Ref, "only organizers can lock or unlock the schedule"), nil
		}
		topic := raceevents.RaceLockRequestedV1
		if cmd.Name == "unlock" {
			topic = raceevents.RaceUnlockRequestedV1
		}
		return []results.HandlerResult{{
			Topic: topic,
			Payload: &raceevents.LockRequestedPayloadV1{
				RaceID:      race.ID,
				RequestedBy: payload.AuthorID,
				Lock:        cmd.Name == "lock",
			},
		}}, nil
	case "first", "second":
		return s.draftAction(race, teamID, payload, draftevents.ActionV1{
			Kind:  draftevents.ActionGoFirst,
			First: cmd.Name == "first",
		}), nil
	case "ban":
		return s.draftAction(race, teamID, payload, draftevents.ActionV1{
			Kind:    draftevents.ActionBan,
			Setting: cmd.Arg(0),
		}), nil
	case "pick":
		return s.draftAction(race, teamID, payload, draftevents.ActionV1{
			Kind:    draftevents.ActionPick,
			Setting: cmd.Arg(0),
			Value:   cmd.Arg(1),
		}), nil
	case "choice":
		return s.draftAction(race, teamID, payload, draftevents.ActionV1{
			Kind:    draftevents.ActionChoice,
			Setting: cmd.Arg(0),
			Value:   cmd.Arg(1),
		}), nil
	case "skip":
		return s.draftAction(race, teamID, payload, draftevents.ActionV1{
			Kind: draftevents.ActionSkip,
		}), nil
	}
	return nil, nil
}

// proposeSchedule parses "!schedule friday 7pm est" or the async form
// "!schedule async1 friday 7pm est" into a schedule request. Policy checks
// (notice, blackouts, lock) belong to the race module; only time parsing is
// local.
func (s *SchedulingService) proposeSchedule(race *racedb.Race, payload *schedevents.ThreadMessageReceivedPayloadV1, cmd *commands.Command) []results.HandlerResult {
	var kind sharedtypes.RoomKind
	rest := cmd.Rest(0)
	switch sharedtypes.RoomKind(cmd.Arg(0)) {
	case sharedtypes.RoomKindAsync1, sharedtypes.RoomKindAsync2, sharedtypes.RoomKindAsync3:
		kind = sharedtypes.RoomKind(cmd.Arg(0))
		rest = cmd.Rest(1)
	}
	if rest == "" {
		return post(payload.Ref, "usage: !schedule <time> [timezone]")
	}

	start, err := s.times.Parse(rest, s.clock())
	if err != nil {
		return post(payload.Ref, err.Error())
	}

	request := &raceevents.ScheduleSetRequestedPayloadV1{
		RaceID:      race.ID,
		RequestedBy: payload.AuthorID,
		Source:      "thread",
	}
	if kind == "" {
		request.Start = &start
	} else {
		request.AsyncStarts = map[sharedtypes.RoomKind]time.Time{kind: start}
	}
	return []results.HandlerResult{{Topic: raceevents.RaceScheduleSetRequestedV1, Payload: request}}
}

func post(ref sharedtypes.ThreadRef, text string) []results.HandlerResult {
	return []results.HandlerResult{{
		Topic:   threadevents.MessagePostV1,
		Payload: &threadevents.MessagePostPayloadV1{Ref: ref, Text: text},
	}}
}

func (s *SchedulingService) teamOf(ctx context.Context, race *racedb.Race, userID sharedtypes.UserID) (sharedtypes.TeamID, error) {
	for _, entrant := range race.Entrants {
		team, err := s.teamRepo.GetTeam(ctx, entrant.TeamID)
		if err != nil {
			return "", fmt.Errorf("failed to load team %s: %w", entrant.TeamID, err)
		}
		if team.Member(userID) != nil {
			return entrant.TeamID, nil
		}
	}
	return "", nil
}

func (s *SchedulingService) draftAction(race *racedb.Race, teamID sharedtypes.TeamID, payload *schedevents.ThreadMessageReceivedPayloadV1, action draftevents.ActionV1) []results.HandlerResult {
	if teamID == "" {
		return post(payload.Ref, "only race entrants can submit draft actions")
	}
	return []results.HandlerResult{{
		Topic: draftevents.DraftActionSubmittedV1,
		Payload: &draftevents.ActionSubmittedPayloadV1{
			RaceID: race.ID,
			TeamID: teamID,
			By:     payload.AuthorID,
			Action: action,
			Source: "thread",
		},
	}}
}
