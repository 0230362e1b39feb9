// Package eventbus provides the NATS JetStream message bus the module routers
// subscribe to and publish through. Streams are provisioned lazily, one per
// topic prefix (the first dot-separated token), each capturing "prefix.>".
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"

	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// EventBus is the publisher/subscriber pair handed to every router. Handlers
// registered with an empty publish topic rely on Publish routing each message
// by its topic metadata.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

// Config configures the bus connection.
type Config struct {
	URL string
	// AppName prefixes durable consumer names so redeliveries survive
	// restarts.
	AppName string
	// NKeySeed optionally authenticates the connection with an NKey seed.
	NKeySeed string
}

type jetStreamBus struct {
	logger     *slog.Logger
	conn       *nc.Conn
	js         nc.JetStreamContext
	publisher  *wmnats.Publisher
	subscriber *wmnats.Subscriber

	mu          sync.Mutex
	provisioned map[string]struct{}
}

var _ EventBus = (*jetStreamBus)(nil)

// New connects to NATS and builds the Watermill publisher/subscriber pair.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	options := []nc.Option{
		nc.Name(cfg.AppName),
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("NATS subscription error",
					attr.String("subject", s.Subject),
					attr.String("queue", s.Queue),
					attr.Error(err),
				)
				return
			}
			logger.Error("NATS connection error", attr.Error(err))
		}),
	}

	if cfg.NKeySeed != "" {
		kp, err := nkeys.FromSeed([]byte(cfg.NKeySeed))
		if err != nil {
			return nil, fmt.Errorf("failed to parse NKey seed: %w", err)
		}
		pub, err := kp.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive NKey public key: %w", err)
		}
		options = append(options, nc.Nkey(pub, kp.Sign))
	}

	conn, err := nc.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         cfg.URL,
			NatsOptions: options,
			Marshaler:   &wmnats.NATSMarshaler{},
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
			},
		},
		wmLogger,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:         cfg.URL,
			NatsOptions: options,
			Unmarshaler: &wmnats.NATSMarshaler{},
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
				DurablePrefix: cfg.AppName,
			},
		},
		wmLogger,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
	}

	return &jetStreamBus{
		logger:      logger,
		conn:        conn,
		js:          js,
		publisher:   publisher,
		subscriber:  subscriber,
		provisioned: map[string]struct{}{},
	}, nil
}

// Publish sends each message to topic, or to the message's topic metadata
// when topic is empty (the transformation-handler path).
func (b *jetStreamBus) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		target := topic
		if target == "" {
			target = msg.Metadata.Get(utils.TopicMetadataKey)
		}
		if target == "" {
			return fmt.Errorf("message %s has no destination topic", msg.UUID)
		}
		if err := b.ensureStream(target); err != nil {
			return err
		}
		if err := b.publisher.Publish(target, msg); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", target, err)
		}
	}
	return nil
}

func (b *jetStreamBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if err := b.ensureStream(topic); err != nil {
		return nil, err
	}
	return b.subscriber.Subscribe(ctx, topic)
}

// HealthChecker is implemented by buses that can report connection health;
// the ops readiness probe uses it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

func (b *jetStreamBus) HealthCheck(_ context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats connection is %v", b.conn.Status())
	}
	return nil
}

func (b *jetStreamBus) Close() error {
	var firstErr error
	if err := b.publisher.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close publisher: %w", err)
	}
	if err := b.subscriber.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close subscriber: %w", err)
	}
	b.conn.Close()
	return firstErr
}

// ensureStream provisions the stream covering the topic's prefix.
func (b *jetStreamBus) ensureStream(topic string) error {
	name := StreamName(topic)
	if name == "" {
		return fmt.Errorf("cannot derive stream name from topic %q", topic)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.provisioned[name]; ok {
		return nil
	}

	info, err := b.js.StreamInfo(name)
	if err != nil && err != nc.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info for %s: %w", name, err)
	}
	if info == nil {
		_, err = b.js.AddStream(&nc.StreamConfig{
			Name:     name,
			Subjects: []string{name + ".>"},
		})
		if err != nil {
			return fmt.Errorf("failed to add stream %s: %w", name, err)
		}
		b.logger.Info("Created JetStream stream", attr.String("stream", name))
	}

	b.provisioned[name] = struct{}{}
	return nil
}

// StreamName derives the stream for a topic: its first dot-separated token,
// restricted to the characters NATS allows in stream names.
func StreamName(topic string) string {
	prefix, _, _ := strings.Cut(topic, ".")
	for _, r := range prefix {
		if !isValidRune(r) {
			return ""
		}
	}
	if prefix == "" || prefix[0] == '-' || prefix[len(prefix)-1] == '-' {
		return ""
	}
	return prefix
}

func isValidRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}
