package seedgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/midoshouse/midos.house/app/shared/eventbus"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	seedgenevents "github.com/midoshouse/midos.house/app/shared/events/seedgen"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultJobDeadline  = 10 * time.Minute
)

// Adapter consumes seedgen job effects: it submits generation jobs and polls
// each one in its own goroutine until done, failed, or past deadline, then
// publishes the outcome as a seed event.
type Adapter struct {
	client       Client
	pollInterval time.Duration
	jobDeadline  time.Duration
	logger       *slog.Logger

	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// NewAdapter wires the seedgen adapter onto its router.
func NewAdapter(
	ctx context.Context,
	obs observability.Observability,
	cfg Config,
	client Client,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Adapter, error) {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	jobDeadline := cfg.JobDeadline
	if jobDeadline <= 0 {
		jobDeadline = defaultJobDeadline
	}

	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &Adapter{
		client:       client,
		pollInterval: pollInterval,
		jobDeadline:  jobDeadline,
		logger:       obs.Provider.Logger,
		router:       router,
		subscriber:   bus,
		publisher:    bus,
		helper:       helpers,
		tracer:       obs.Registry.Tracer,
		metrics:      obs.Registry.Handlers,
		runCtx:       runCtx,
		runCancel:    runCancel,
	}

	router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("seedgen"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	handlerName := "seedgen." + seedgenevents.JobSubmitV1
	router.AddHandler(
		handlerName,
		seedgenevents.JobSubmitV1,
		a.subscriber,
		"", // destination read from message metadata
		a.publisher,
		handlerwrapper.WrapTransformingTyped(handlerName, a.logger, a.tracer, a.helper, a.metrics, a.handleJobSubmit),
	)
	return a, nil
}

// handleJobSubmit submits the job and hands polling to a background
// goroutine; submission failures surface immediately as roll failures.
func (a *Adapter) handleJobSubmit(ctx context.Context, payload *seedgenevents.JobSubmitPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	jobID, err := a.client.SubmitJob(ctx, payload.Settings)
	if err != nil {
		a.logger.WarnContext(ctx, "Seed job submission failed",
			attr.RaceID("race_id", payload.RaceID),
			attr.Int("attempt", payload.Attempt),
			attr.Error(err),
		)
		return []handlerwrapper.Result{{
			Topic: seedevents.SeedRollFailedV1,
			Payload: &seedevents.RollFailedPayloadV1{
				RaceID:  payload.RaceID,
				Reason:  fmt.Sprintf("job submission failed: %v", err),
				Attempt: payload.Attempt,
			},
		}}, nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.poll(a.runCtx, payload.RaceID, payload.Attempt, jobID)
	}()
	return nil, nil
}

// poll watches one job until it settles or passes its deadline.
func (a *Adapter) poll(ctx context.Context, raceID sharedtypes.RaceID, attempt int, jobID string) {
	ctx, cancel := context.WithTimeout(ctx, a.jobDeadline)
	defer cancel()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				a.publishFailure(raceID, attempt, fmt.Sprintf("job %s exceeded its deadline", jobID))
			}
			return
		case <-ticker.C:
		}

		status, err := a.client.PollJob(ctx, jobID)
		if err != nil {
			a.logger.Warn("Seed job poll failed",
				attr.RaceID("race_id", raceID),
				attr.String("job_id", jobID),
				attr.Error(err),
			)
			continue
		}

		switch status.Status {
		case JobStatusDone:
			a.publish(seedevents.SeedRolledV1, &seedevents.RolledPayloadV1{
				RaceID:      raceID,
				File:        status.File,
				HashIcons:   status.HashIcons,
				SpoilerPath: status.SpoilerPath,
			})
			return
		case JobStatusFailed:
			a.publishFailure(raceID, attempt, status.Error)
			return
		case JobStatusPending, JobStatusRunning:
			// Keep polling.
		default:
			a.logger.Warn("Unknown seed job status",
				attr.String("job_id", jobID),
				attr.String("status", status.Status),
			)
		}
	}
}

func (a *Adapter) publishFailure(raceID sharedtypes.RaceID, attempt int, reason string) {
	a.publish(seedevents.SeedRollFailedV1, &seedevents.RollFailedPayloadV1{
		RaceID:  raceID,
		Reason:  reason,
		Attempt: attempt,
	})
}

func (a *Adapter) publish(topic string, payload any) {
	msg, err := a.helper.CreateNewMessage(payload, topic)
	if err != nil {
		a.logger.Error("Failed to build seed event", attr.Error(err))
		return
	}
	if err := a.publisher.Publish(topic, msg); err != nil {
		a.logger.Error("Failed to publish seed event",
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}

// Close stops the polling goroutines and waits for them.
func (a *Adapter) Close() error {
	a.runCancel()
	a.wg.Wait()
	return nil
}
