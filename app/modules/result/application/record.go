package resultservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	resultevents "github.com/midoshouse/midos.house/app/shared/events/result"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// recordVerdict classifies what one closed-room report did to the race.
type recordVerdict int

const (
	verdictPartial recordVerdict = iota // async half settled, others pending
	verdictIdentical
	verdictMismatch
	verdictReview
	verdictRecorded
)

// RecordClosedRoom merges one closed room's results into the race record.
func (s *ResultService) RecordClosedRoom(ctx context.Context, payload *roomevents.ClosedPayloadV1) ([]results.HandlerResult, error) {
	return s.withTelemetry(ctx, "RecordClosedRoom", payload.RaceID, func(ctx context.Context) ([]results.HandlerResult, error) {
		race, err := s.repo.GetRace(ctx, payload.RaceID)
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load race: %w", err)
		}

		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load event config: %w", err)
		}

		if payload.Cancelled {
			return s.flagCancelled(ctx, race)
		}

		if !race.Recorded && race.SetID != "" {
			decided, err := s.setAlreadyDecided(ctx, race)
			if err != nil {
				return nil, err
			}
			if decided {
				s.logger.WarnContext(ctx, "Result for an already-decided set dropped",
					attr.RaceID("race_id", race.ID),
					attr.String("set_id", string(race.SetID)),
				)
				return s.threadPost(race, "The match is already decided; this result was not recorded. Ping an organizer if that is wrong."), nil
			}
		}

		verdict := verdictPartial
		var reviewReason string
		var winner sharedtypes.TeamID
		updated, err := s.repo.UpdateRace(ctx, race.ID, func(race *racedb.Race) error {
			if race.Recorded {
				if outcomesMatch(race, payload.Results) {
					verdict = verdictIdentical
					return racedb.ErrNoChange
				}
				// Keep the recorded winner; hold the race for an organizer.
				verdict = verdictMismatch
				if race.Status == sharedtypes.RaceStatusNeedsReview {
					return racedb.ErrNoChange
				}
				race.Status = sharedtypes.RaceStatusNeedsReview
				race.Touch(sharedtypes.SystemActor, s.clock())
				return nil
			}

			mergeOutcomes(race, payload.Results)
			if !allSettled(race) {
				verdict = verdictPartial
				race.Touch(sharedtypes.SystemActor, s.clock())
				return nil
			}

			winner, reviewReason = decideWinner(race, cfg.RetimeWindow)
			if reviewReason != "" {
				verdict = verdictReview
				race.Status = sharedtypes.RaceStatusNeedsReview
			} else {
				verdict = verdictRecorded
				w := winner
				race.WinnerTeamID = &w
				race.Recorded = true
				race.Status = sharedtypes.RaceStatusRecorded
			}
			race.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record result: %w", err)
		}

		switch verdict {
		case verdictIdentical:
			return nil, nil
		case verdictMismatch:
			s.logger.WarnContext(ctx, "Conflicting result for a recorded race",
				attr.RaceID("race_id", race.ID),
			)
			out := []results.HandlerResult{{
				Topic:   resultevents.ResultNeedsReviewV1,
				Payload: &resultevents.NeedsReviewPayloadV1{RaceID: race.ID, Reason: "conflicting result for a recorded race"},
			}}
			return append(out, s.threadPost(race, "A conflicting result arrived for a recorded race; an organizer will review it.")...), nil
		case verdictPartial:
			s.logger.InfoContext(ctx, "Async half settled, race still open",
				attr.RaceID("race_id", race.ID),
				attr.String("kind", string(payload.Kind)),
			)
			return nil, nil
		case verdictReview:
			out := []results.HandlerResult{{
				Topic:   resultevents.ResultNeedsReviewV1,
				Payload: &resultevents.NeedsReviewPayloadV1{RaceID: race.ID, Reason: reviewReason},
			}}
			return append(out, s.threadPost(updated, "This race needs a manual review: "+reviewReason+".")...), nil
		}

		return s.decisionEffects(ctx, cfg, updated, winner)
	})
}

// flagCancelled holds a race whose room was cancelled for manual attention.
func (s *ResultService) flagCancelled(ctx context.Context, race *racedb.Race) ([]results.HandlerResult, error) {
	if race.Status.Terminal() {
		return nil, nil
	}
	already := false
	updated, err := s.repo.UpdateRace(ctx, race.ID, func(race *racedb.Race) error {
		if race.Status == sharedtypes.RaceStatusNeedsReview {
			already = true
			return racedb.ErrNoChange
		}
		race.Status = sharedtypes.RaceStatusNeedsReview
		race.Touch(sharedtypes.SystemActor, s.clock())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to flag cancelled room: %w", err)
	}
	if already {
		return nil, nil
	}
	out := []results.HandlerResult{{
		Topic:   resultevents.ResultNeedsReviewV1,
		Payload: &resultevents.NeedsReviewPayloadV1{RaceID: race.ID, Reason: "race room was cancelled"},
	}}
	return append(out, s.threadPost(updated, "The race room was cancelled; an organizer will follow up.")...), nil
}

// decisionEffects publishes everything a freshly recorded game triggers.
func (s *ResultService) decisionEffects(ctx context.Context, cfg *eventtypes.EventConfig, race *racedb.Race, winner sharedtypes.TeamID) ([]results.HandlerResult, error) {
	if err := s.queue.CancelRaceJobs(ctx, race.ID); err != nil {
		return nil, fmt.Errorf("failed to cancel timers for recorded race: %w", err)
	}

	wins, games, err := s.setTally(ctx, race)
	if err != nil {
		return nil, err
	}
	gameCount := race.GameCount
	if gameCount < 1 {
		gameCount = 1
	}
	decided := 2*wins[winner] > gameCount

	w := winner
	out := []results.HandlerResult{{
		Topic: resultevents.ResultRecordedV1,
		Payload: &resultevents.RecordedPayloadV1{
			RaceID:    race.ID,
			EventID:   race.EventID,
			SetID:     race.SetID,
			Game:      race.Game,
			GameCount: gameCount,
			Winner:    &w,
			Results:   entrantOutcomes(race),
			Wins:      wins,
			Decided:   decided,
		},
	}}

	winnerName, err := s.teamName(ctx, winner)
	if err != nil {
		return nil, err
	}

	if !decided {
		loser := otherEntrant(race, winner)
		next := &raceevents.RaceCreateRequestedPayloadV1{
			EventID:   race.EventID,
			SetID:     race.SetID,
			Phase:     race.Phase,
			Round:     race.Round,
			Game:      race.Game + 1,
			GameCount: gameCount,
			Source:    "result",
		}
		for _, e := range race.Entrants {
			next.Entrants = append(next.Entrants, raceevents.EntrantRefV1{TeamID: e.TeamID, Seat: e.Seat})
		}
		if loser != "" {
			l := loser
			next.LoserPicksFirst = &l
		}
		out = append(out, results.HandlerResult{Topic: raceevents.RaceCreateRequestedV1, Payload: next})
		out = append(out, s.threadPost(race,
			fmt.Sprintf("Game %d goes to %s. The match continues; a new scheduling thread is on its way.", race.Game, winnerName))...)
		return out, nil
	}

	out = append(out, results.HandlerResult{
		Topic: resultevents.ResultMatchDecidedV1,
		Payload: &resultevents.MatchDecidedPayloadV1{
			EventID:   race.EventID,
			SetID:     race.SetID,
			RaceID:    race.ID,
			Winner:    winner,
			Wins:      wins,
			GameCount: gameCount,
		},
	})

	if cfg.AutoReport && race.SetID != "" {
		out = append(out, results.HandlerResult{
			Topic: bracketevents.BracketReportSubmitV1,
			Payload: &bracketevents.ReportSubmitPayloadV1{
				RaceID:  race.ID,
				EventID: race.EventID,
				SetID:   race.SetID,
				Winner:  winner,
				Games:   games,
			},
		})
	}

	text := fmt.Sprintf("%s wins the match", winnerName)
	if gameCount > 1 {
		text = fmt.Sprintf("%s %d-%d", text, wins[winner], totalWins(wins)-wins[winner])
	}
	out = append(out, s.threadPost(race, text+". Congratulations!")...)
	return out, nil
}

// setAlreadyDecided tallies the set's other recorded games.
func (s *ResultService) setAlreadyDecided(ctx context.Context, race *racedb.Race) (bool, error) {
	races, err := s.repo.FindBySet(ctx, race.EventID, race.SetID)
	if err != nil {
		return false, fmt.Errorf("failed to load set races: %w", err)
	}
	gameCount := race.GameCount
	if gameCount < 1 {
		gameCount = 1
	}
	wins := map[sharedtypes.TeamID]int{}
	for _, r := range races {
		if r.ID == race.ID || !r.Recorded || r.WinnerTeamID == nil {
			continue
		}
		wins[*r.WinnerTeamID]++
		if 2*wins[*r.WinnerTeamID] > gameCount {
			return true, nil
		}
	}
	return false, nil
}

// setTally collects per-team wins and the ordered game lines of the set,
// including the race just recorded.
func (s *ResultService) setTally(ctx context.Context, race *racedb.Race) (map[sharedtypes.TeamID]int, []bracketevents.GameLineV1, error) {
	wins := map[sharedtypes.TeamID]int{}
	var games []bracketevents.GameLineV1

	if race.SetID == "" {
		wins[*race.WinnerTeamID] = 1
		games = append(games, bracketevents.GameLineV1{Game: race.Game, Winner: *race.WinnerTeamID})
		return wins, games, nil
	}

	races, err := s.repo.FindBySet(ctx, race.EventID, race.SetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load set races: %w", err)
	}
	for _, r := range races {
		if !r.Recorded || r.WinnerTeamID == nil {
			continue
		}
		wins[*r.WinnerTeamID]++
		games = append(games, bracketevents.GameLineV1{Game: r.Game, Winner: *r.WinnerTeamID})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Game < games[j].Game })
	return wins, games, nil
}

func (s *ResultService) teamName(ctx context.Context, teamID sharedtypes.TeamID) (string, error) {
	team, err := s.teamRepo.GetTeam(ctx, teamID)
	if err != nil {
		return "", fmt.Errorf("failed to load team %s: %w", teamID, err)
	}
	return team.Name, nil
}

// threadPost wraps a message for the race's thread, or nothing without one.
func (s *ResultService) threadPost(race *racedb.Race, text string) []results.HandlerResult {
	if race.SchedulingThread == "" {
		return nil
	}
	return []results.HandlerResult{{
		Topic:   threadevents.MessagePostV1,
		Payload: &threadevents.MessagePostPayloadV1{Ref: race.SchedulingThread, Text: text},
	}}
}

// mergeOutcomes applies the room's per-team outcomes onto the race entrants.
func mergeOutcomes(race *racedb.Race, reported []roomevents.EntrantResultV1) {
	for _, res := range reported {
		entrant := race.Entrant(res.TeamID)
		if entrant == nil {
			continue
		}
		entrant.FinishTime = res.FinishTime
		entrant.Forfeited = res.Forfeited
		entrant.DQ = res.DQ
		entrant.Place = res.Place
	}
}

// allSettled reports whether every entrant has an outcome.
func allSettled(race *racedb.Race) bool {
	for _, e := range race.Entrants {
		if e.FinishTime == nil && !e.Forfeited && !e.DQ {
			return false
		}
	}
	return len(race.Entrants) > 0
}

// outcomesMatch compares a reported result against the recorded one.
func outcomesMatch(race *racedb.Race, reported []roomevents.EntrantResultV1) bool {
	for _, res := range reported {
		entrant := race.Entrant(res.TeamID)
		if entrant == nil {
			return false
		}
		if entrant.Forfeited != res.Forfeited || entrant.DQ != res.DQ {
			return false
		}
		if (entrant.FinishTime == nil) != (res.FinishTime == nil) {
			return false
		}
		if entrant.FinishTime != nil && *entrant.FinishTime != *res.FinishTime {
			return false
		}
	}
	return true
}

// decideWinner picks the winner from settled outcomes, or a review reason when
// the outcome cannot be trusted to automation.
func decideWinner(race *racedb.Race, retimeWindow time.Duration) (sharedtypes.TeamID, string) {
	var finishers []*racedb.Entrant
	for i := range race.Entrants {
		e := &race.Entrants[i]
		if e.FinishTime != nil && !e.Forfeited && !e.DQ {
			finishers = append(finishers, e)
		}
	}
	switch len(finishers) {
	case 0:
		return "", "no entrant finished"
	case 1:
		return finishers[0].TeamID, ""
	}

	sort.Slice(finishers, func(i, j int) bool {
		return finishers[i].FinishTime.Duration() < finishers[j].FinishTime.Duration()
	})
	delta := finishers[1].FinishTime.Duration() - finishers[0].FinishTime.Duration()
	if delta == 0 {
		return "", "dead heat"
	}
	if delta < retimeWindow {
		return "", fmt.Sprintf("finish times within the retime window (%s apart)", delta)
	}
	return finishers[0].TeamID, ""
}

func otherEntrant(race *racedb.Race, teamID sharedtypes.TeamID) sharedtypes.TeamID {
	for _, e := range race.Entrants {
		if e.TeamID != teamID {
			return e.TeamID
		}
	}
	return ""
}

// entrantOutcomes snapshots the recorded outcomes for publication.
func entrantOutcomes(race *racedb.Race) []roomevents.EntrantResultV1 {
	out := make([]roomevents.EntrantResultV1, 0, len(race.Entrants))
	for _, e := range race.Entrants {
		out = append(out, roomevents.EntrantResultV1{
			TeamID:     e.TeamID,
			FinishTime: e.FinishTime,
			Forfeited:  e.Forfeited,
			DQ:         e.DQ,
			Place:      e.Place,
		})
	}
	return out
}

func totalWins(wins map[sharedtypes.TeamID]int) int {
	total := 0
	for _, n := range wins {
		total += n
	}
	return total
}
