// Package schedulingservice runs the per-race coordination thread: one thread
// per race where entrants negotiate the start time and submit draft actions.
package schedulingservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/modules/scheduling/timeparse"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/commands"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

const module = "scheduling"

// SchedulingService implements Service.
type SchedulingService struct {
	repo      racedb.Repository
	eventRepo eventdb.Repository
	teamRepo  teamdb.Repository
	parser    *commands.Parser
	times     *timeparse.Parser
	logger    *slog.Logger
	metrics   metrics.OperationMetrics
	tracer    trace.Tracer
	clock     func() time.Time
}

var _ Service = (*SchedulingService)(nil)

// NewSchedulingService creates a SchedulingService.
func NewSchedulingService(
	repo racedb.Repository,
	eventRepo eventdb.Repository,
	teamRepo teamdb.Repository,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) (*SchedulingService, error) {
	parser, err := commands.NewParser(
		"schedule", "schedule-remove", "withdraw", "lock", "unlock",
		"first", "second", "ban", "pick", "choice", "skip",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build thread command parser: %w", err)
	}
	return &SchedulingService{
		repo:      repo,
		eventRepo: eventRepo,
		teamRepo:  teamRepo,
		parser:    parser,
		times:     timeparse.NewParser(),
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		clock:     func() time.Time { return time.Now().UTC() },
	}, nil
}

type operationFunc func(ctx context.Context) (results.OperationResult, error)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func (s *SchedulingService) withTelemetry(ctx context.Context, operationName string, raceID sharedtypes.RaceID, op operationFunc) (result results.OperationResult, err error) {
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
