// Package roomrouter binds room lifecycle topics to their handlers.
package roomrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	roomservice "github.com/midoshouse/midos.house/app/modules/room/application"
	roomhandlers "github.com/midoshouse/midos.house/app/modules/room/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// RoomRouter wires room handlers into the shared message router.
type RoomRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewRoomRouter creates a RoomRouter.
func NewRoomRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *RoomRouter {
	return &RoomRouter{
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
func (r *RoomRouter) Configure(ctx context.Context, service roomservice.Service) error {
	handlers := roomhandlers.NewRoomHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("room"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register room handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *RoomRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "room." + topic
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
func (r *RoomRouter) RegisterHandlers(_ context.Context, handlers roomhandlers.Handlers) error {
	registerHandler(r, roomevents.RoomOpenDueV1, handlers.HandleOpenDue)
	registerHandler(r, roomevents.RoomCreateRetryDueV1, handlers.HandleRetryDue)
	registerHandler(r, raceevents.RaceEntrantsUpdatedV1, handlers.HandleEntrantsUpdated)
	registerHandler(r, roomevents.RoomCreatedV1, handlers.HandleRoomCreated)
	registerHandler(r, roomevents.RoomCreationFailedV1, handlers.HandleCreationFailed)
	registerHandler(r, roomevents.RoomStatusChangedV1, handlers.HandleStatusChanged)
	registerHandler(r, roomevents.RoomChatReceivedV1, handlers.HandleChatReceived)
	registerHandler(r, draftevents.DraftAdvancedV1, handlers.HandleDraftAdvanced)
	registerHandler(r, draftevents.DraftRejectedV1, handlers.HandleDraftRejected)
	return nil
}

// Close stops the router.
func (r *RoomRouter) Close() error {
	return r.Router.Close()
}
