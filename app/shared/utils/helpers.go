// Package utils provides message construction helpers and router middleware
// shared by every module router.
package utils

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// TopicMetadataKey routes messages published through a handler registered
// with an empty publish topic: the event bus reads the destination from this
// metadata entry.
const TopicMetadataKey = "topic"

// Helpers constructs wire messages from payloads.
type Helpers interface {
	// CreateResultMessage builds a message derived from an inbound one,
	// preserving correlation metadata and addressing it to topic.
	CreateResultMessage(original *message.Message, payload any, topic string) (*message.Message, error)
	// CreateNewMessage builds a fresh message (no originating message),
	// addressed to topic with a new correlation ID.
	CreateNewMessage(payload any, topic string) (*message.Message, error)
}

// Helper is the production Helpers implementation.
type Helper struct {
	Logger *slog.Logger
}

var _ Helpers = (*Helper)(nil)

// NewHelper creates a Helper.
func NewHelper(logger *slog.Logger) *Helper {
	return &Helper{Logger: logger}
}

func (h *Helper) CreateResultMessage(original *message.Message, payload any, topic string) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for topic %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if original != nil {
		middleware.SetCorrelationID(middleware.MessageCorrelationID(original), msg)
		for k, v := range original.Metadata {
			if k == TopicMetadataKey {
				continue
			}
			msg.Metadata.Set(k, v)
		}
	}
	msg.Metadata.Set(TopicMetadataKey, topic)
	return msg, nil
}

func (h *Helper) CreateNewMessage(payload any, topic string) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for topic %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	middleware.SetCorrelationID(watermill.NewUUID(), msg)
	msg.Metadata.Set(TopicMetadataKey, topic)
	return msg, nil
}

// UnmarshalPayload decodes a message body into T.
func UnmarshalPayload[T any](msg *message.Message) (*T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload into %T: %w", payload, err)
	}
	return &payload, nil
}
