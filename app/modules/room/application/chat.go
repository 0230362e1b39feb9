package roomservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/commands"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// HandleChat parses one in-room chat line. Plain chatter is ignored; a
// recognized command becomes a draft action or a race mutation; a bang
// command outside the set gets an error reply so typos never vanish silently.
func (s *RoomService) HandleChat(ctx context.Context, payload *roomevents.ChatReceivedPayloadV1) ([]results.HandlerResult, error) {
	cmd, err := s.parser.Parse(payload.Text)
	if errors.Is(err, commands.ErrNotCommand) {
		return nil, nil
	}
	var unknown *commands.UnknownCommandError
	if errors.As(err, &unknown) {
		return reply(payload.Handle, unknown.Error()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse chat command: %w", err)
	}

	race, _, err := s.repo.FindByRoom(ctx, payload.Handle)
	if errors.Is(err, racedb.ErrRaceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find race for room %s: %w", payload.Handle, err)
	}

	// Lock commands are organizer-only; organizers are not entrants, so they
	// are resolved before the entrant gate.
	if cmd.Name == "lock" || cmd.Name == "unlock" {
		return s.requestLock(ctx, race, payload, cmd.Name == "lock")
	}

	teamID, err := s.teamOf(ctx, race, payload.UserID)
	if err != nil {
		return nil, err
	}
	if teamID == "" {
		return reply(payload.Handle, "only race entrants can use commands here"), nil
	}

	switch cmd.Name {
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
	case "fpa":
		return s.invokeFPA(ctx, race, payload)
	case "breaks":
		return s.agreeBreaks(ctx, race, payload, cmd)
	}
	return nil, nil
}

func reply(handle sharedtypes.RoomHandle, text string) []results.HandlerResult {
	return []results.HandlerResult{{
		Topic:   racechatevents.MessageSendV1,
		Payload: &racechatevents.MessageSendPayloadV1{Handle: handle, Text: text},
	}}
}

func (s *RoomService) teamOf(ctx context.Context, race *racedb.Race, userID sharedtypes.UserID) (sharedtypes.TeamID, error) {
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

func (s *RoomService) draftAction(race *racedb.Race, teamID sharedtypes.TeamID, payload *roomevents.ChatReceivedPayloadV1, action draftevents.ActionV1) []results.HandlerResult {
	return []results.HandlerResult{{
		Topic: draftevents.DraftActionSubmittedV1,
		Payload: &draftevents.ActionSubmittedPayloadV1{
			RaceID: race.ID,
			TeamID: teamID,
			By:     payload.UserID,
			Action: action,
			Source: "room",
		},
	}}
}

// requestLock relays an organizer's lock command to the race module. The same
// commands work in the scheduling thread.
func (s *RoomService) requestLock(ctx context.Context, race *racedb.Race, payload *roomevents.ChatReceivedPayloadV1, lock bool) ([]results.HandlerResult, error) {
	cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event config: %w", err)
	}
	if !cfg.IsOrganizer(payload.UserID) {
		return reply(payload.Handle, "only organizers can lock or unlock the schedule"), nil
	}
	topic := raceevents.RaceLockRequestedV1
	if !lock {
		topic = raceevents.RaceUnlockRequestedV1
	}
	return []results.HandlerResult{{
		Topic: topic,
		Payload: &raceevents.LockRequestedPayloadV1{
			RaceID:      race.ID,
			RequestedBy: payload.UserID,
			Lock:        lock,
		},
	}}, nil
}

// invokeFPA flags the race for the fair-play agreement: a technical failure
// occurred and the affected team asks monitors to adjudicate instead of
// racing on.
func (s *RoomService) invokeFPA(ctx context.Context, race *racedb.Race, payload *roomevents.ChatReceivedPayloadV1) ([]results.HandlerResult, error) {
	cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event config: %w", err)
	}
	if !cfg.FPAEnabled {
		return reply(payload.Handle, "FPA is not enabled for this event"), nil
	}

	already := false
	_, err = s.repo.UpdateRace(ctx, race.ID, func(race *racedb.Race) error {
		already = race.FPAInvoked
		if race.FPAInvoked {
			return racedb.ErrNoChange
		}
		race.FPAInvoked = true
		race.Touch(payload.UserID, s.clock())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record FPA invocation: %w", err)
	}
	if already {
		return reply(payload.Handle, "FPA has already been invoked for this race"), nil
	}

	s.logger.WarnContext(ctx, "FPA invoked",
		attr.RaceID("race_id", race.ID),
		attr.UserID("user_id", payload.UserID),
	)
	return reply(payload.Handle,
		fmt.Sprintf("@everyone FPA invoked by %s. Finish the race; monitors will adjudicate the result.", payload.UserName)), nil
}

// agreeBreaks records the break cadence: "!breaks 5m every 1h".
func (s *RoomService) agreeBreaks(ctx context.Context, race *racedb.Race, payload *roomevents.ChatReceivedPayloadV1, cmd *commands.Command) ([]results.HandlerResult, error) {
	const usage = "usage: !breaks <duration> every <interval>, e.g. !breaks 5m every 1h"
	if len(cmd.Args) != 3 || cmd.Arg(1) != "every" {
		return reply(payload.Handle, usage), nil
	}
	duration, err := time.ParseDuration(cmd.Arg(0))
	if err != nil {
		return reply(payload.Handle, usage), nil
	}
	interval, err := time.ParseDuration(cmd.Arg(2))
	if err != nil {
		return reply(payload.Handle, usage), nil
	}
	if duration <= 0 || interval <= 0 || duration >= interval {
		return reply(payload.Handle, "breaks must be shorter than the interval between them"), nil
	}

	_, err = s.repo.UpdateRace(ctx, race.ID, func(race *racedb.Race) error {
		race.Breaks = &racedb.BreakConfig{Duration: duration, Interval: interval}
		race.Touch(payload.UserID, s.clock())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record break agreement: %w", err)
	}

	return reply(payload.Handle,
		fmt.Sprintf("Breaks agreed: %s every %s.", duration, interval)), nil
}
