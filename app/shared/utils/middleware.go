package utils

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// MiddlewareHelper builds the metadata middleware applied to every module
// router.
type MiddlewareHelper struct{}

// NewMiddlewareHelper creates a MiddlewareHelper.
func NewMiddlewareHelper() *MiddlewareHelper {
	return &MiddlewareHelper{}
}

// CommonMetadataMiddleware stamps the handling module and receipt time onto
// each message so downstream consumers can trace the path an event took.
func (MiddlewareHelper) CommonMetadataMiddleware(module string) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			msg.Metadata.Set("handled_by", module)
			if msg.Metadata.Get("received_at") == "" {
				msg.Metadata.Set("received_at", time.Now().UTC().Format(time.RFC3339Nano))
			}
			return h(msg)
		}
	}
}

// RoutingMetadataMiddleware propagates the routing topic from inbound to
// produced messages when a handler did not address them explicitly.
func (MiddlewareHelper) RoutingMetadataMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			produced, err := h(msg)
			if err != nil {
				return nil, err
			}
			for _, p := range produced {
				if p.Metadata.Get(TopicMetadataKey) == "" {
					p.Metadata.Set(TopicMetadataKey, msg.Metadata.Get(TopicMetadataKey))
				}
			}
			return produced, nil
		}
	}
}
