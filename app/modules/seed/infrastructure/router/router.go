// Package seedrouter binds seed lifecycle topics to their handlers.
package seedrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	seedservice "github.com/midoshouse/midos.house/app/modules/seed/application"
	seedhandlers "github.com/midoshouse/midos.house/app/modules/seed/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	resultevents "github.com/midoshouse/midos.house/app/shared/events/result"
	seedevents "github.com/midoshouse/midos.house/app/shared/events/seed"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// SeedRouter wires seed handlers into the shared message router.
type SeedRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewSeedRouter creates a SeedRouter.
func NewSeedRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *SeedRouter {
	return &SeedRouter{
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
func (r *SeedRouter) Configure(ctx context.Context, service seedservice.Service) error {
	handlers := seedhandlers.NewSeedHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("seed"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register seed handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *SeedRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "seed." + topic
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
func (r *SeedRouter) RegisterHandlers(_ context.Context, handlers seedhandlers.Handlers) error {
	registerHandler(r, seedevents.SeedRollDueV1, handlers.HandleRollDue)
	registerHandler(r, seedevents.SeedRolledV1, handlers.HandleRolled)
	registerHandler(r, seedevents.SeedRollFailedV1, handlers.HandleRollFailed)
	registerHandler(r, resultevents.ResultRecordedV1, handlers.HandleResultRecorded)
	return nil
}

// Close stops the router.
func (r *SeedRouter) Close() error {
	return r.Router.Close()
}
