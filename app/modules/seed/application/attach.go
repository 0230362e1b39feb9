package seedservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

var roomKinds = []sharedtypes.RoomKind{
	sharedtypes.RoomKindNormal,
	sharedtypes.RoomKindAsync1,
	sharedtypes.RoomKindAsync2,
	sharedtypes.RoomKindAsync3,
}

// threadPost builds a scheduling-thread announcement, or nil when the race
// has no thread.
func threadPost(race *racedb.Race, text string) *results.HandlerResult {
	if race.SchedulingThread == "" {
		return nil
	}
	return &results.HandlerResult{
		Topic:   threadevents.MessagePostV1,
		Payload: &threadevents.MessagePostPayloadV1{Ref: race.SchedulingThread, Text: text},
	}
}

// RecordRolled attaches a completed seed to its race: the file, the locked
// spoiler path, and the hash-icon quintuple land in one write. Completions
// for races that settled in the meantime are discarded.
func (s *SeedService) RecordRolled(ctx context.Context, payload *seedevents.RolledPayloadV1) ([]results.HandlerResult, error) {
	return s.withTelemetry(ctx, "RecordRolled", payload.RaceID, func(ctx context.Context) ([]results.HandlerResult, error) {
		if len(payload.HashIcons) != 5 {
			s.logger.WarnContext(ctx, "Dropping seed completion without a full hash quintuple",
				attr.RaceID("race_id", payload.RaceID),
				attr.Int("hash_icons", len(payload.HashIcons)),
			)
			return nil, nil
		}

		race, err := s.repo.GetRace(ctx, payload.RaceID)
		if err != nil {
			if errors.Is(err, racedb.ErrRaceNotFound) {
				s.logger.InfoContext(ctx, "Seed completion for unknown race, discarding",
					attr.RaceID("race_id", payload.RaceID))
				return nil, nil
			}
			return nil, fmt.Errorf("failed to load race: %w", err)
		}
		if race.Status.Terminal() {
			s.logger.WarnContext(ctx, "Discarding stale seed completion for settled race",
				attr.RaceID("race_id", race.ID),
				attr.String("status", string(race.Status)),
				attr.String("file", payload.File),
			)
			return nil, nil
		}

		var applied, conflict bool
		updated, err := s.repo.UpdateRace(ctx, race.ID, func(r *racedb.Race) error {
			applied, conflict = false, false
			if r.SeedFile == payload.File {
				return racedb.ErrNoChange
			}
			if r.SeedFile != "" {
				conflict = true
				return racedb.ErrNoChange
			}
			applied = true
			r.SeedFile = payload.File
			r.SpoilerPath = payload.SpoilerPath
			r.SpoilerLocked = true
			if err := r.SetHashIcons(payload.HashIcons); err != nil {
				return err
			}
			r.Touch(sharedtypes.SystemActor, s.clock())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to attach seed: %w", err)
		}
		if conflict {
			s.logger.WarnContext(ctx, "Race already has a different seed, dropping completion",
				attr.RaceID("race_id", race.ID),
				attr.String("kept", updated.SeedFile),
				attr.String("dropped", payload.File),
			)
			return nil, nil
		}
		if !applied {
			// Redelivery of an already-applied completion.
			return nil, nil
		}

		hashes := strings.Join(payload.HashIcons, ", ")
		out := []results.HandlerResult{{
			Topic: seedevents.SeedAttachedV1,
			Payload: &seedevents.AttachedPayloadV1{
				RaceID:    updated.ID,
				File:      updated.SeedFile,
				HashIcons: payload.HashIcons,
			},
		}}
		if post := threadPost(updated, fmt.Sprintf("Seed rolled: %s\nHash: %s", updated.SeedFile, hashes)); post != nil {
			out = append(out, *post)
		}
		for _, kind := range roomKinds {
			handle := updated.RoomHandle(kind)
			if handle == "" {
				continue
			}
			out = append(out, results.HandlerResult{
				Topic: racechatevents.MessageSendV1,
				Payload: &racechatevents.MessageSendPayloadV1{
					Handle: handle,
					Text:   fmt.Sprintf("Seed: %s (hash: %s)", updated.SeedFile, hashes),
					Pin:    true,
				},
			})
		}
		return out, nil
	})
}
