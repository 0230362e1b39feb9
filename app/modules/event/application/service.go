// Package eventservice validates and stores per-event configuration.
package eventservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

const module = "event"

// EventService implements Service.
type EventService struct {
	repo    eventdb.Repository
	logger  *slog.Logger
	metrics metrics.OperationMetrics
	tracer  trace.Tracer
}

var _ Service = (*EventService)(nil)

// NewEventService creates an EventService.
func NewEventService(repo eventdb.Repository, logger *slog.Logger, m metrics.OperationMetrics, tracer trace.Tracer) *EventService {
	return &EventService{repo: repo, logger: logger, metrics: m, tracer: tracer}
}

type operationFunc func(ctx context.Context) (results.OperationResult, error)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func (s *EventService) withTelemetry(ctx context.Context, operationName string, eventID sharedtypes.EventID, op operationFunc) (result results.OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("event_id", string(eventID)),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, module)
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, module, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Recovered panic in service operation",
				attr.ExtractCorrelationID(ctx),
				attr.EventID("event_id", eventID),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, module)
			span.RecordError(err)
			result = results.OperationResult{}
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.EventID("event_id", eventID),
			attr.Error(wrapped),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, module)
		span.RecordError(wrapped)
		return result, wrapped
	}

	if result.Failure != nil {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.EventID("event_id", eventID),
			attr.Any("failure", result.Failure),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, module)
	return result, nil
}
