// Package draftrouter binds draft topics to their handlers.
package draftrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	draftservice "github.com/midoshouse/midos.house/app/modules/draft/application"
	drafthandlers "github.com/midoshouse/midos.house/app/modules/draft/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// DraftRouter wires draft handlers into the shared message router.
type DraftRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewDraftRouter creates a DraftRouter.
func NewDraftRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *DraftRouter {
	return &DraftRouter{
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
func (r *DraftRouter) Configure(ctx context.Context, service draftservice.Service) error {
	handlers := drafthandlers.NewDraftHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("draft"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register draft handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *DraftRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "draft." + topic
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
func (r *DraftRouter) RegisterHandlers(_ context.Context, handlers drafthandlers.Handlers) error {
	registerHandler(r, draftevents.DraftActionSubmittedV1, handlers.HandleActionSubmitted)
	registerHandler(r, raceevents.RaceCreatedV1, handlers.HandleRaceCreated)
	registerHandler(r, draftevents.DraftReminderDueV1, handlers.HandleReminderDue)
	return nil
}

// Close stops the router.
func (r *DraftRouter) Close() error {
	return r.Router.Close()
}
