// Package racerouter binds race lifecycle topics to their handlers.
package racerouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	raceservice "github.com/midoshouse/midos.house/app/modules/race/application"
	racehandlers "github.com/midoshouse/midos.house/app/modules/race/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	teamevents "github.com/midoshouse/midos.house/app/shared/events/team"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// RaceRouter wires race handlers into the shared message router.
type RaceRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewRaceRouter creates a RaceRouter.
func NewRaceRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *RaceRouter {
	return &RaceRouter{
		logger:     logger,
		Router:     router,
		subscriber: bus,
		publisher:  bus,
		helper:     helper,
		tracer:     tracer,
		metrics:    metrics,
	}
}

// Configure registers middleware and handlers.
func (r *RaceRouter) Configure(ctx context.Context, service raceservice.Service) error {
	handlers := racehandlers.NewRaceHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("race"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register race handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *RaceRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "race." + topic
	r.Router.AddHandler(
		handlerName,
		topic,
		r.subscriber,
		"", // destination read from message metadata
		r.publisher,
		handlerwrapper.WrapTransformingTyped(handlerName, r.logger, r.tracer, r.helper, r.metrics, handler),
	)
}

// RegisterHandlers registers the module's typed handlers.
func (r *RaceRouter) RegisterHandlers(_ context.Context, handlers racehandlers.Handlers) error {
	registerHandler(r, raceevents.RaceCreateRequestedV1, handlers.HandleCreateRace)
	registerHandler(r, raceevents.RaceScheduleSetRequestedV1, handlers.HandleSetSchedule)
	registerHandler(r, raceevents.RaceScheduleRemoveRequestedV1, handlers.HandleRemoveSchedule)
	registerHandler(r, raceevents.RaceLockRequestedV1, handlers.HandleLock)
	registerHandler(r, raceevents.RaceUnlockRequestedV1, handlers.HandleUnlock)
	registerHandler(r, raceevents.RaceWithdrawRequestedV1, handlers.HandleWithdraw)
	registerHandler(r, teamevents.TeamMemberConfirmedV1, handlers.HandleMemberConfirmed)
	registerHandler(r, teamevents.TeamResignedV1, handlers.HandleTeamResigned)
	return nil
}

// Close stops the router.
func (r *RaceRouter) Close() error {
	return r.Router.Close()
}
