// Package teamrouter binds team topics to their handlers.
package teamrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	teamservice "github.com/midoshouse/midos.house/app/modules/team/application"
	teamhandlers "github.com/midoshouse/midos.house/app/modules/team/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	teamevents "github.com/midoshouse/midos.house/app/shared/events/team"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// TeamRouter wires team handlers into the shared message router.
type TeamRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewTeamRouter creates a TeamRouter.
func NewTeamRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *TeamRouter {
	return &TeamRouter{
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
func (r *TeamRouter) Configure(ctx context.Context, service teamservice.Service) error {
	handlers := teamhandlers.NewTeamHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("team"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register team handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *TeamRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "team." + topic
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
func (r *TeamRouter) RegisterHandlers(_ context.Context, handlers teamhandlers.Handlers) error {
	registerHandler(r, teamevents.TeamRegisterRequestedV1, handlers.HandleRegisterTeam)
	registerHandler(r, teamevents.TeamMemberConfirmRequestedV1, handlers.HandleConfirmMember)
	registerHandler(r, teamevents.TeamOptInUpdateRequestedV1, handlers.HandleUpdateOptIns)
	registerHandler(r, teamevents.TeamResignRequestedV1, handlers.HandleResign)
	return nil
}

// Close stops the router.
func (r *TeamRouter) Close() error {
	return r.Router.Close()
}
