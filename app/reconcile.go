package app

import (
	"context"
	"fmt"
	"time"

	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// reconcileHorizon bounds the startup scans; anything further out will be
// picked up by its durable timer job.
const reconcileHorizon = 48 * time.Hour

var roomKinds = []sharedtypes.RoomKind{
	sharedtypes.RoomKindNormal,
	sharedtypes.RoomKindAsync1,
	sharedtypes.RoomKindAsync2,
	sharedtypes.RoomKindAsync3,
}

// reconcile restores in-memory state lost across a restart: the chat monitor
// re-attaches to open rooms, the thread adapter re-tracks scheduling threads,
// and missing timer jobs are reinserted (inserts are unique per race and
// kind, so jobs that survived in Postgres stay untouched).
func (a *App) reconcile(ctx context.Context) error {
	logger := a.Observability.Provider.Logger
	now := time.Now().UTC()

	rooms, err := a.raceRepo.ListRoomCandidates(ctx, now, reconcileHorizon)
	if err != nil {
		return fmt.Errorf("failed to list room candidates: %w", err)
	}
	for _, race := range rooms {
		if race.SchedulingThread != "" {
			a.threadAdapter.Track(race.SchedulingThread)
		}

		cfg, err := a.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			logger.Warn("Skipping race with unknown event during reconciliation",
				attr.RaceID("race_id", race.ID),
				attr.Error(err),
			)
			continue
		}

		for _, kind := range roomKinds {
			start := race.StartFor(kind)
			if start == nil {
				continue
			}
			if handle := race.RoomHandle(kind); handle != "" {
				msg, err := a.helpers.CreateNewMessage(&racechatevents.RoomAttachPayloadV1{
					RaceID: race.ID,
					Kind:   kind,
					Handle: handle,
				}, racechatevents.RoomAttachV1)
				if err != nil {
					return err
				}
				if err := a.bus.Publish(racechatevents.RoomAttachV1, msg); err != nil {
					return fmt.Errorf("failed to publish room attach: %w", err)
				}
				continue
			}
			if err := a.queue.ScheduleRoomOpen(ctx, race.ID, kind, start.Add(-cfg.OpenRoomLead)); err != nil {
				logger.Warn("Failed to reinsert room-open job",
					attr.RaceID("race_id", race.ID),
					attr.String("kind", string(kind)),
					attr.Error(err),
				)
			}
		}
	}

	seeds, err := a.raceRepo.ListSeedCandidates(ctx, now, reconcileHorizon)
	if err != nil {
		return fmt.Errorf("failed to list seed candidates: %w", err)
	}
	for _, race := range seeds {
		start := race.StartFor(sharedtypes.RoomKindNormal)
		if start == nil {
			start = race.StartFor(sharedtypes.RoomKindAsync1)
		}
		if start == nil {
			continue
		}
		cfg, err := a.eventRepo.GetConfig(ctx, race.EventID)
		if err != nil {
			continue
		}
		if err := a.queue.ScheduleSeedRoll(ctx, race.ID, 1, start.Add(-cfg.SeedLead)); err != nil {
			logger.Warn("Failed to reinsert seed-roll job",
				attr.RaceID("race_id", race.ID),
				attr.Error(err),
			)
		}
	}

	logger.Info("Startup reconciliation complete",
		attr.Int("room_candidates", len(rooms)),
		attr.Int("seed_candidates", len(seeds)),
	)
	return nil
}
