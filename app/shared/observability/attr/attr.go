// Package attr centralizes slog attribute construction so log fields stay
// consistently named across modules.
package attr

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

type correlationIDKey struct{}

// WithCorrelationID stores a message correlation ID on the context for later
// extraction into log lines.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// CorrelationIDFromMsg reads the correlation ID from message metadata.
func CorrelationIDFromMsg(msg *message.Message) string {
	return middleware.MessageCorrelationID(msg)
}

// ExtractCorrelationID returns the context's correlation ID as a log
// attribute ("none" when absent).
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok && id != "" {
		return slog.String("correlation_id", id)
	}
	return slog.String("correlation_id", "none")
}

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

func Error(err error) slog.Attr { return slog.Any("error", err) }

func Duration(key string, d time.Duration) slog.Attr { return slog.Duration(key, d) }

func Time(key string, t time.Time) slog.Attr { return slog.Time(key, t) }

func RaceID(key string, id sharedtypes.RaceID) slog.Attr {
	return slog.String(key, string(id))
}

func TeamID(key string, id sharedtypes.TeamID) slog.Attr {
	return slog.String(key, string(id))
}

func EventID(key string, id sharedtypes.EventID) slog.Attr {
	return slog.String(key, string(id))
}

func UserID(key string, id sharedtypes.UserID) slog.Attr {
	return slog.String(key, string(id))
}

func RoomHandle(key string, h sharedtypes.RoomHandle) slog.Attr {
	return slog.String(key, string(h))
}
