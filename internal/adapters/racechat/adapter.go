package racechat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/midoshouse/midos.house/app/shared/eventbus"
	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// Adapter consumes racechat effect topics and bridges them to the chat
// service, feeding acknowledgements and room streams back onto the bus.
type Adapter struct {
	client  Client
	monitor *Monitor
	logger  *slog.Logger

	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics

	// runCtx scopes monitor goroutines to the adapter's lifetime.
	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewAdapter wires the racechat adapter onto the shared router.
func NewAdapter(
	ctx context.Context,
	obs observability.Observability,
	client Client,
	monitor *Monitor,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Adapter, error) {
	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &Adapter{
		client:     client,
		monitor:    monitor,
		logger:     obs.Provider.Logger,
		router:     router,
		subscriber: bus,
		publisher:  bus,
		helper:     helpers,
		tracer:     obs.Registry.Tracer,
		metrics:    obs.Registry.Handlers,
		runCtx:     runCtx,
		runCancel:  runCancel,
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("racechat"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	registerHandler(a, racechatevents.RoomCreateV1, a.handleRoomCreate)
	registerHandler(a, racechatevents.RoomAttachV1, a.handleRoomAttach)
	registerHandler(a, racechatevents.MessageSendV1, a.handleMessageSend)
	return a, nil
}

func registerHandler[T any](a *Adapter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "racechat." + topic
	a.router.AddHandler(
		handlerName,
		topic,
		a.subscriber,
		"", // destination read from message metadata
		a.publisher,
		handlerwrapper.WrapTransformingTyped(handlerName, a.logger, a.tracer, a.helper, a.metrics, handler),
	)
}

// handleRoomCreate opens a room at the chat service. Failures become
// room.creation.failed events so the room controller drives the retry policy.
func (a *Adapter) handleRoomCreate(ctx context.Context, payload *racechatevents.RoomCreatePayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	handle, err := a.client.CreateRoom(ctx, RoomRequest{
		Goal:              payload.Config.Goal,
		Info:              payload.Config.Info,
		Unlisted:          payload.Config.Unlisted,
		AutoStart:         payload.Config.AutoStart,
		StreamingRequired: payload.Config.StreamingRequired,
		InviteUserIDs:     payload.Config.InviteUserIDs,
	})
	if err != nil {
		if !errors.Is(err, ErrExternalCall) {
			return nil, err
		}
		return []handlerwrapper.Result{{
			Topic: roomevents.RoomCreationFailedV1,
			Payload: &roomevents.CreationFailedPayloadV1{
				RaceID:  payload.RaceID,
				Kind:    payload.Kind,
				Reason:  err.Error(),
				Attempt: payload.Attempt,
			},
		}}, nil
	}

	a.monitor.Watch(a.runCtx, handle)
	a.logger.InfoContext(ctx, "Race room created",
		attr.RaceID("race_id", payload.RaceID),
		attr.RoomHandle("handle", handle),
	)
	return []handlerwrapper.Result{{
		Topic: roomevents.RoomCreatedV1,
		Payload: &roomevents.CreatedPayloadV1{
			RaceID: payload.RaceID,
			Kind:   payload.Kind,
			Handle: handle,
		},
	}}, nil
}

// handleRoomAttach re-watches a known room after a restart.
func (a *Adapter) handleRoomAttach(_ context.Context, payload *racechatevents.RoomAttachPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	a.monitor.Watch(a.runCtx, payload.Handle)
	return nil, nil
}

func (a *Adapter) handleMessageSend(ctx context.Context, payload *racechatevents.MessageSendPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	if err := a.client.SendMessage(ctx, payload.Handle, payload.Text, payload.Pin); err != nil {
		return nil, fmt.Errorf("failed to send room message: %w", err)
	}
	return nil, nil
}

// Close stops the room monitors.
func (a *Adapter) Close() error {
	a.runCancel()
	a.monitor.Close()
	return nil
}
