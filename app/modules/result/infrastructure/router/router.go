// Package resultrouter binds reconciliation topics to their handlers.
package resultrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	resultservice "github.com/midoshouse/midos.house/app/modules/result/application"
	resulthandlers "github.com/midoshouse/midos.house/app/modules/result/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// ResultRouter wires result handlers into the shared message router.
type ResultRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewResultRouter creates a ResultRouter.
func NewResultRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *ResultRouter {
	return &ResultRouter{
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
func (r *ResultRouter) Configure(ctx context.Context, service resultservice.Service) error {
	handlers := resulthandlers.NewResultHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("result"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register result handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *ResultRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "result." + topic
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
func (r *ResultRouter) RegisterHandlers(_ context.Context, handlers resulthandlers.Handlers) error {
	registerHandler(r, roomevents.RoomClosedV1, handlers.HandleRoomClosed)
	registerHandler(r, bracketevents.BracketSetUpdatedV1, handlers.HandleBracketSetUpdated)
	return nil
}

// Close stops the router.
func (r *ResultRouter) Close() error {
	return r.Router.Close()
}
