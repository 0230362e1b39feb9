// Package schedulingrouter binds thread topics to their handlers.
package schedulingrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	schedulingservice "github.com/midoshouse/midos.house/app/modules/scheduling/application"
	schedulinghandlers "github.com/midoshouse/midos.house/app/modules/scheduling/infrastructure/handlers"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	schedevents "github.com/midoshouse/midos.house/app/shared/events/scheduling"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// SchedulingRouter wires scheduling handlers into the shared message router.
type SchedulingRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewSchedulingRouter creates a SchedulingRouter.
func NewSchedulingRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus, helper utils.Helpers, tracer trace.Tracer, metrics handlerwrapper.ReturningMetrics) *SchedulingRouter {
	return &SchedulingRouter{
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
func (r *SchedulingRouter) Configure(ctx context.Context, service schedulingservice.Service) error {
	handlers := schedulinghandlers.NewSchedulingHandlers(service)

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("scheduling"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register scheduling handlers: %w", err)
	}
	return nil
}

func registerHandler[T any](r *SchedulingRouter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "scheduling." + topic
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
func (r *SchedulingRouter) RegisterHandlers(_ context.Context, handlers schedulinghandlers.Handlers) error {
	registerHandler(r, raceevents.RaceCreatedV1, handlers.HandleRaceCreated)
	registerHandler(r, schedevents.ThreadCreatedV1, handlers.HandleThreadCreated)
	registerHandler(r, schedevents.ThreadCreationFailedV1, handlers.HandleThreadCreationFailed)
	registerHandler(r, schedevents.ThreadMessageReceivedV1, handlers.HandleThreadMessage)
	registerHandler(r, raceevents.RaceScheduleSetV1, handlers.HandleScheduleSet)
	registerHandler(r, raceevents.RaceScheduleRemovedV1, handlers.HandleScheduleRemoved)
	registerHandler(r, raceevents.RaceScheduleRejectedV1, handlers.HandleScheduleRejected)
	registerHandler(r, draftevents.DraftStartedV1, handlers.HandleDraftStarted)
	registerHandler(r, draftevents.DraftAdvancedV1, handlers.HandleDraftAdvanced)
	registerHandler(r, draftevents.DraftRejectedV1, handlers.HandleDraftRejected)
	registerHandler(r, draftevents.DraftCompletedV1, handlers.HandleDraftCompleted)
	return nil
}

// Close stops the router.
func (r *SchedulingRouter) Close() error {
	return r.Router.Close()
}
