// Package raceservice is the single write path for race records. All state
// transitions funnel through here so the revision guard in the repository can
// linearize concurrent mutations.
package raceservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

const module = "race"

// RaceService implements Service.
type RaceService struct {
	repo      racedb.Repository
	eventRepo eventdb.Repository
	teamRepo  teamdb.Repository
	queue     racequeue.QueueService
	logger    *slog.Logger
	metrics   metrics.OperationMetrics
	tracer    trace.Tracer
	clock     func() time.Time
}

var _ Service = (*RaceService)(nil)

// NewRaceService creates a RaceService.
func NewRaceService(
	repo racedb.Repository,
	eventRepo eventdb.Repository,
	teamRepo teamdb.Repository,
	queue racequeue.QueueService,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) *RaceService {
	return &RaceService{
		repo:      repo,
		eventRepo: eventRepo,
		teamRepo:  teamRepo,
		queue:     queue,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

type operationFunc func(ctx context.Context) (results.OperationResult, error)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func (s *RaceService) withTelemetry(ctx context.Context, operationName string, raceID sharedtypes.RaceID, op operationFunc) (result results.OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("race_id", string(raceID)),
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
				attr.RaceID("race_id", raceID),
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
			attr.RaceID("race_id", raceID),
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
			attr.RaceID("race_id", raceID),
			attr.Any("failure", result.Failure),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, module)
	return result, nil
}
