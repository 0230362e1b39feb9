// Package racequeue turns wall-clock deadlines into bus events with River
// jobs persisted in Postgres. Workers do no domain work: each one publishes
// the corresponding timer event and lets the owning module's handlers decide.
package racequeue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"

	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// QueueService schedules and cancels the durable timers of a race.
type QueueService interface {
	ScheduleRoomOpen(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, at time.Time) error
	ScheduleRoomCreateRetry(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, attempt int, at time.Time) error
	ScheduleSeedRoll(ctx context.Context, raceID sharedtypes.RaceID, attempt int, at time.Time) error
	ScheduleDraftReminder(ctx context.Context, raceID sharedtypes.RaceID, stepsDone int, at time.Time) error
	// CancelRaceJobs cancels every pending timer for the race; used on
	// withdrawal and before re-planning after a schedule change.
	CancelRaceJobs(ctx context.Context, raceID sharedtypes.RaceID) error
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Service is the River-backed QueueService.
type Service struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	db     *bun.DB
	logger *slog.Logger
}

var _ QueueService = (*Service)(nil)

// NewService builds the River client with one worker per job kind. River
// needs its own pgx pool; bun's connection serves the cancellation queries.
func NewService(ctx context.Context, bunDB *bun.DB, dsn string, logger *slog.Logger, bus eventbus.EventBus, helpers utils.Helpers) (*Service, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN for River: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database for River: %w", err)
	}

	publish := func(ctx context.Context, payload any, topic string) error {
		msg, err := helpers.CreateNewMessage(payload, topic)
		if err != nil {
			return fmt.Errorf("failed to build timer message: %w", err)
		}
		return bus.Publish(topic, msg)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, river.WorkFunc(func(ctx context.Context, job *river.Job[RoomOpenJob]) error {
		return publish(ctx, roomevents.OpenDuePayloadV1{
			RaceID: job.Args.RaceID,
			Kind:   job.Args.Room,
		}, roomevents.RoomOpenDueV1)
	}))
	river.AddWorker(workers, river.WorkFunc(func(ctx context.Context, job *river.Job[RoomCreateRetryJob]) error {
		return publish(ctx, roomevents.CreateRetryDuePayloadV1{
			RaceID:  job.Args.RaceID,
			Kind:    job.Args.Room,
			Attempt: job.Args.Attempt,
		}, roomevents.RoomCreateRetryDueV1)
	}))
	river.AddWorker(workers, river.WorkFunc(func(ctx context.Context, job *river.Job[SeedRollJob]) error {
		return publish(ctx, seedevents.RollDuePayloadV1{
			RaceID:  job.Args.RaceID,
			Attempt: job.Args.Attempt,
		}, seedevents.SeedRollDueV1)
	}))
	river.AddWorker(workers, river.WorkFunc(func(ctx context.Context, job *river.Job[DraftReminderJob]) error {
		return publish(ctx, draftevents.ReminderDuePayloadV1{
			RaceID:    job.Args.RaceID,
			StepsDone: job.Args.StepsDone,
		}, draftevents.DraftReminderDueV1)
	}))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			"race":             {MaxWorkers: 25},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Service{client: client, pool: pool, db: bunDB, logger: logger}, nil
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Race queue service started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.pool.Close()
	s.logger.InfoContext(ctx, "Race queue service stopped")
	return nil
}

func (s *Service) ScheduleRoomOpen(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, at time.Time) error {
	return s.insert(ctx, RoomOpenJob{RaceID: raceID, Room: kind}, at)
}

func (s *Service) ScheduleRoomCreateRetry(ctx context.Context, raceID sharedtypes.RaceID, kind sharedtypes.RoomKind, attempt int, at time.Time) error {
	return s.insert(ctx, RoomCreateRetryJob{RaceID: raceID, Room: kind, Attempt: attempt}, at)
}

func (s *Service) ScheduleSeedRoll(ctx context.Context, raceID sharedtypes.RaceID, attempt int, at time.Time) error {
	return s.insert(ctx, SeedRollJob{RaceID: raceID, Attempt: attempt}, at)
}

func (s *Service) ScheduleDraftReminder(ctx context.Context, raceID sharedtypes.RaceID, stepsDone int, at time.Time) error {
	return s.insert(ctx, DraftReminderJob{RaceID: raceID, StepsDone: stepsDone}, at)
}

func (s *Service) insert(ctx context.Context, args river.JobArgs, at time.Time) error {
	now := time.Now()
	if at.Before(now) {
		// Deadline already passed (startup reconciliation, late schedule):
		// run immediately rather than dropping it.
		at = now
	}
	_, err := s.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       "race",
		ScheduledAt: at,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", args.Kind(), err)
	}
	s.logger.DebugContext(ctx, "Scheduled race timer job",
		attr.String("kind", args.Kind()),
		attr.Time("at", at),
	)
	return nil
}

// CancelRaceJobs looks up pending jobs whose args reference the race and
// cancels them through the client.
func (s *Service) CancelRaceJobs(ctx context.Context, raceID sharedtypes.RaceID) error {
	type jobRow struct {
		ID   int64  `bun:"id"`
		Kind string `bun:"kind"`
	}

	var jobs []jobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind").
		Where("kind IN (?)", bun.In(raceJobKinds)).
		Where("state IN (?, ?, ?)", "available", "scheduled", "retryable").
		Where("args->>'race_id' = ?", string(raceID)).
		Scan(ctx, &jobs)
	if err != nil {
		return fmt.Errorf("failed to query jobs for cancellation: %w", err)
	}

	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to cancel race timer job",
				attr.Int64("job_id", job.ID),
				attr.String("kind", job.Kind),
				attr.Error(err),
			)
		}
	}
	if len(jobs) > 0 {
		s.logger.InfoContext(ctx, "Cancelled race timer jobs",
			attr.RaceID("race_id", raceID),
			attr.Int("count", len(jobs)),
		)
	}
	return nil
}

func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	var count int
	if err := s.db.NewSelect().Table("river_job").ColumnExpr("COUNT(*)").Scan(ctx, &count); err != nil {
		return fmt.Errorf("queue health check failed: %w", err)
	}
	return nil
}
