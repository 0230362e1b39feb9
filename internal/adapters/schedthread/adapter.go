// Package schedthread adapts the team-chat scheduling service (Discord):
// thread creation and posting on the outbound side, inbound message relay for
// tracked threads on the other.
package schedthread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/midoshouse/midos.house/app/shared/eventbus"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	schedevents "github.com/midoshouse/midos.house/app/shared/events/scheduling"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// Config configures the Discord connection.
type Config struct {
	Token string `yaml:"token"`
	// GuildID is the server hosting scheduling threads.
	GuildID string `yaml:"guild_id"`
	// ChannelID is the parent channel threads are created under.
	ChannelID string `yaml:"channel_id"`
}

// Session is the slice of discordgo the adapter uses.
type Session interface {
	ThreadStart(channelID, name string, typ discordgo.ChannelType, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ThreadMemberAdd(threadID, memberID string, options ...discordgo.RequestOption) error
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
}

// Adapter consumes schedthread effect topics and relays inbound thread
// messages back onto the bus.
type Adapter struct {
	cfg     Config
	session Session
	logger  *slog.Logger

	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics

	// tracked guards the inbound relay: only messages in threads we created
	// (or re-learned at startup) become events.
	mu            sync.Mutex
	tracked       map[sharedtypes.ThreadRef]struct{}
	removeHandler func()
}

// NewAdapter wires the schedthread adapter onto its router and registers the
// inbound message handler on the Discord session.
func NewAdapter(
	_ context.Context,
	obs observability.Observability,
	cfg Config,
	session Session,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Adapter, error) {
	a := &Adapter{
		cfg:        cfg,
		session:    session,
		logger:     obs.Provider.Logger,
		router:     router,
		subscriber: bus,
		publisher:  bus,
		helper:     helpers,
		tracer:     obs.Registry.Tracer,
		metrics:    obs.Registry.Handlers,
		tracked:    map[sharedtypes.ThreadRef]struct{}{},
	}

	router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("schedthread"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	registerHandler(a, threadevents.ThreadCreateV1, a.handleThreadCreate)
	registerHandler(a, threadevents.MessagePostV1, a.handleMessagePost)

	a.removeHandler = session.AddHandler(a.onMessageCreate)
	return a, nil
}

func registerHandler[T any](a *Adapter, topic string, handler func(context.Context, *T) ([]handlerwrapper.Result, error)) {
	handlerName := "schedthread." + topic
	a.router.AddHandler(
		handlerName,
		topic,
		a.subscriber,
		"", // destination read from message metadata
		a.publisher,
		handlerwrapper.WrapTransformingTyped(handlerName, a.logger, a.tracer, a.helper, a.metrics, handler),
	)
}

// Track registers an existing thread for inbound relay, used at startup to
// re-learn threads that predate this process.
func (a *Adapter) Track(ref sharedtypes.ThreadRef) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracked[ref] = struct{}{}
}

func (a *Adapter) isTracked(ref sharedtypes.ThreadRef) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.tracked[ref]
	return ok
}

// handleThreadCreate starts a thread, invites the participants, and posts the
// opening message. Failures become thread.creation.failed events.
func (a *Adapter) handleThreadCreate(ctx context.Context, payload *threadevents.ThreadCreatePayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	// Discord caps thread names at 100 characters.
	name := payload.Title
	if len(name) > 100 {
		name = name[:100]
	}

	thread, err := a.session.ThreadStart(a.cfg.ChannelID, name, discordgo.ChannelTypeGuildPrivateThread, 10080)
	if err != nil {
		a.logger.WarnContext(ctx, "Thread creation failed",
			attr.RaceID("race_id", payload.RaceID),
			attr.Error(err),
		)
		return []handlerwrapper.Result{{
			Topic: schedevents.ThreadCreationFailedV1,
			Payload: &schedevents.ThreadCreationFailedPayloadV1{
				RaceID: payload.RaceID,
				Reason: err.Error(),
			},
		}}, nil
	}

	for _, userID := range payload.Participants {
		if err := a.session.ThreadMemberAdd(thread.ID, string(userID)); err != nil {
			a.logger.WarnContext(ctx, "Failed to invite participant to thread",
				attr.String("thread", thread.ID),
				attr.UserID("user_id", userID),
				attr.Error(err),
			)
		}
	}
	if payload.Content != "" {
		if _, err := a.session.ChannelMessageSend(thread.ID, payload.Content); err != nil {
			a.logger.WarnContext(ctx, "Failed to post thread opener",
				attr.String("thread", thread.ID),
				attr.Error(err),
			)
		}
	}

	ref := sharedtypes.ThreadRef(thread.ID)
	a.Track(ref)
	return []handlerwrapper.Result{{
		Topic:   schedevents.ThreadCreatedV1,
		Payload: &schedevents.ThreadCreatedPayloadV1{RaceID: payload.RaceID, Ref: ref},
	}}, nil
}

func (a *Adapter) handleMessagePost(_ context.Context, payload *threadevents.MessagePostPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}
	a.Track(payload.Ref)
	if _, err := a.session.ChannelMessageSend(string(payload.Ref), payload.Text); err != nil {
		return nil, fmt.Errorf("failed to post thread message: %w", err)
	}
	return nil, nil
}

// onMessageCreate relays human messages from tracked threads onto the bus.
func (a *Adapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ref := sharedtypes.ThreadRef(m.ChannelID)
	if !a.isTracked(ref) {
		return
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}

	payload := &schedevents.ThreadMessageReceivedPayloadV1{
		Ref:        ref,
		AuthorID:   sharedtypes.UserID(m.Author.ID),
		AuthorName: m.Author.Username,
		Text:       text,
	}
	msg, err := a.helper.CreateNewMessage(payload, schedevents.ThreadMessageReceivedV1)
	if err != nil {
		a.logger.Error("Failed to build thread message event", attr.Error(err))
		return
	}
	if err := a.publisher.Publish(schedevents.ThreadMessageReceivedV1, msg); err != nil {
		a.logger.Error("Failed to publish thread message event",
			attr.String("thread", m.ChannelID),
			attr.Error(err),
		)
	}
}

// Open connects the Discord session.
func (a *Adapter) Open() error {
	return a.session.Open()
}

// Close detaches the inbound handler and closes the session.
func (a *Adapter) Close() error {
	if a.removeHandler != nil {
		a.removeHandler()
	}
	return a.session.Close()
}
