package roomservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// EvaluateOpen re-checks every opening guard at evaluation time. Guards that
// fail yield an empty result: the evaluation may fire again from the next
// entrant update or a rescheduled timer, and an already-open room makes
// repeated evaluations harmless.
func (s *RoomService) EvaluateOpen(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, attempt int) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "EvaluateOpen", raceID, func(ctx context.Context) (results.OperationResult, error) {
		race, err := s.repo.GetRace(ctx, raceID)
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.OperationResult{}, nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load race: %w", err)
		}

		cfg, err := s.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to load event config: %w", err)
		}

		if reason := s.openGuard(race, kind, cfg); reason != "" {
			s.logger.DebugContext(ctx, "Room open evaluation skipped",
				attr.RaceID("race_id", raceID),
				attr.String("kind", string(kind)),
				attr.String("reason", reason),
			)
			return results.OperationResult{}, nil
		}

		invites, err := s.inviteList(ctx, race)
		if err != nil {
			return results.OperationResult{}, err
		}

		if attempt < 1 {
			attempt = 1
		}
		return results.SuccessResult(&racechatevents.RoomCreatePayloadV1{
			RaceID:  raceID,
			Kind:    kind,
			Attempt: attempt,
			Config: racechatevents.RoomConfigV1{
				Goal:              roomGoal(cfg, race),
				Info:              settingsInfo(race.Settings),
				Unlisted:          kind.AsyncIndex() > 0,
				AutoStart:         false,
				StreamingRequired: cfg.RestreamConsentRequired,
				InviteUserIDs:     invites,
			},
		}), nil
	})
}

// EvaluateAll evaluates every room of the race that could open now. Driven by
// entrant confirmation updates.
func (s *RoomService) EvaluateAll(ctx context.Context, raceID sharedtypes.RaceID) ([]results.HandlerResult, error) {
	var out []results.HandlerResult
	for _, kind := range []sharedtypes.RoomKind{
		sharedtypes.RoomKindNormal,
		sharedtypes.RoomKindAsync1,
		sharedtypes.RoomKindAsync2,
		sharedtypes.RoomKindAsync3,
	} {
		result, err := s.EvaluateOpen(ctx, raceID, kind, 1)
		if err != nil {
			return out, err
		}
		if result.Success != nil {
			out = append(out, results.HandlerResult{Topic: racechatevents.RoomCreateV1, Payload: result.Success})
		}
	}
	return out, nil
}

// openGuard returns the reason the room must not open now, or "".
func (s *RoomService) openGuard(race *racedb.Race, kind sharedtypes.RoomKind, cfg *eventtypes.EventConfig) string {
	if race.Status.Terminal() || race.Status == sharedtypes.RaceStatusNeedsReview {
		return fmt.Sprintf("race is %s", race.Status)
	}
	if race.Meta(kind).Failed {
		return "room creation abandoned"
	}
	if race.RoomHandle(kind) != "" {
		return "room already exists"
	}
	start := race.StartFor(kind)
	if start == nil {
		return "no start time"
	}
	lead := cfg.OpenRoomLead
	if lead <= 0 {
		lead = defaultOpenRoomLead
	}
	if start.After(s.clock().Add(lead)) {
		return "start outside the open window"
	}
	if race.DraftState != nil && race.Settings == nil {
		return "draft not complete"
	}
	if !race.AllConfirmed() {
		return "entrants not fully confirmed"
	}
	return ""
}

func (s *RoomService) inviteList(ctx context.Context, race *racedb.Race) ([]sharedtypes.UserID, error) {
	var invites []sharedtypes.UserID
	for _, entrant := range race.Entrants {
		team, err := s.teamRepo.GetTeam(ctx, entrant.TeamID)
		if err != nil {
			return nil, fmt.Errorf("failed to load team %s for invites: %w", entrant.TeamID, err)
		}
		for _, member := range team.Members {
			invites = append(invites, member.UserID)
		}
	}
	return invites, nil
}

func roomGoal(cfg *eventtypes.EventConfig, race *racedb.Race) string {
	parts := []string{cfg.DisplayName}
	if race.Phase != "" {
		parts = append(parts, race.Phase)
	}
	if race.Round != "" {
		parts = append(parts, race.Round)
	}
	if race.GameCount > 1 {
		parts = append(parts, fmt.Sprintf("Game %d", race.Game))
	}
	return strings.Join(parts, " - ")
}

func settingsInfo(settings map[string]string) string {
	if len(settings) == 0 {
		return ""
	}
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = fmt.Sprintf("%s: %s", name, settings[name])
	}
	return strings.Join(pairs, ", ")
}

// RecordCreated stores the handle and switches the room into monitoring. The
// write-once handle makes redelivered acknowledgements idempotent.
func (s *RoomService) RecordCreated(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, handle sharedtypes.RoomHandle) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RecordCreated", raceID, func(ctx context.Context) (results.OperationResult, error) {
		_, err := s.repo.UpdateRace(ctx, raceID, func(race *racedb.Race) error {
			if existing := race.RoomHandle(kind); existing == handle {
				meta := race.Meta(kind)
				if meta.Monitoring {
					return racedb.ErrNoChange
				}
			}
			if err := race.SetRoomHandle(kind, handle); err != nil {
				return err
			}
			meta := race.Meta(kind)
			meta.AutoOpened = true
			meta.Monitoring = true
			meta.LastStatus = roomevents.StatusOpen
			race.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		})
		if errors.Is(err, racedb.ErrRoomExists) {
			// A different handle is already recorded; keep the authoritative
			// one and drop the conflicting acknowledgement.
			s.logger.WarnContext(ctx, "Conflicting room handle dropped",
				attr.RaceID("race_id", raceID),
				attr.String("kind", string(kind)),
				attr.String("handle", string(handle)),
			)
			return results.OperationResult{}, nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to record room handle: %w", err)
		}

		return results.SuccessResult(&roomevents.OpenedPayloadV1{
			RaceID: raceID,
			Kind:   kind,
			Handle: handle,
		}), nil
	})
}

// RecordCreationFailure counts the attempt and either schedules a backoff
// retry or abandons the room for manual handling.
func (s *RoomService) RecordCreationFailure(ctx context.Context, payload *roomevents.CreationFailedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RecordCreationFailure", payload.RaceID, func(ctx context.Context) (results.OperationResult, error) {
		abandoned := false
		_, err := s.repo.UpdateRace(ctx, payload.RaceID, func(race *racedb.Race) error {
			meta := race.Meta(payload.Kind)
			if payload.Attempt <= meta.Attempts {
				// Redelivered failure for an attempt already counted.
				abandoned = meta.Failed
				return racedb.ErrNoChange
			}
			meta.Attempts = payload.Attempt
			if payload.Attempt >= maxCreateAttempts {
				meta.Failed = true
				abandoned = true
			}
			race.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		})
		if errors.Is(err, racedb.ErrRaceNotFound) {
			return results.OperationResult{}, nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to record creation failure: %w", err)
		}

		if !abandoned {
			at := s.clock().Add(retryBackoff * time.Duration(payload.Attempt))
			if err := s.queue.ScheduleRoomCreateRetry(ctx, payload.RaceID, payload.Kind, payload.Attempt+1, at); err != nil {
				return results.OperationResult{}, fmt.Errorf("failed to schedule creation retry: %w", err)
			}
			s.logger.WarnContext(ctx, "Room creation failed, retry scheduled",
				attr.RaceID("race_id", payload.RaceID),
				attr.String("kind", string(payload.Kind)),
				attr.Int("attempt", payload.Attempt),
				attr.String("reason", payload.Reason),
			)
			return results.OperationResult{}, nil
		}

		s.logger.ErrorContext(ctx, "Room creation abandoned",
			attr.RaceID("race_id", payload.RaceID),
			attr.String("kind", string(payload.Kind)),
			attr.Int("attempts", payload.Attempt),
		)
		return results.SuccessResult(&roomevents.CreationAbandonedPayloadV1{
			RaceID:   payload.RaceID,
			Kind:     payload.Kind,
			Attempts: payload.Attempt,
			Reason:   payload.Reason,
		}), nil
	})
}
