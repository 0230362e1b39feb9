// Package eventrouter binds event-config topics to their handlers.
package eventrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	eventservice "github.com/midoshouse/midos.house/app/modules/event/application"
	eventhandlers "github.com/midoshouse/midos.house/app/modules/event/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	configevents "github.com/midoshouse/midos.house/app/shared/events/config"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// EventRouter wires event-config handlers into the shared message router.
type EventRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewEventRouter creates an EventRouter.
func NewEventRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *EventRouter {
	return &EventRouter{
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
func (r *EventRouter) Configure(ctx context.Context, service eventservice.Service) error {
	handlers := eventhandlers.NewEventHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("event"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *EventRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "event." + topic
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
func (r *EventRouter) RegisterHandlers(_ context.Context, handlers eventhandlers.Handlers) error {
	registerHandler(r, configevents.EventConfigCreateRequestedV1, handlers.HandleCreateConfig)
	registerHandler(r, configevents.EventConfigUpdateRequestedV1, handlers.HandleUpdateConfig)
	registerHandler(r, configevents.EventConfigRetrievalRequestedV1, handlers.HandleRetrieveConfig)
	return nil
}

// Close stops the router.
func (r *EventRouter) Close() error {
	return r.Router.Close()
}
