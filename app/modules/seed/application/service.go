// Package seedservice orchestrates seed generation: roll deadlines, generator
// retries, atomic attachment of the seed and its hash quintuple, and spoiler
// unlocking after the race is recorded.
package seedservice

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
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	"github.com/midoshouse/midos.house/app/shared/spoilertoken"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

const module = "seed"

const (
	// maxRollAttempts bounds generator retries before organizers take over.
	maxRollAttempts = 3
	// rollRetryDelay spaces generator retries.
	rollRetryDelay = 5 * time.Minute
)

// SeedService implements Service.
type SeedService struct {
	repo      racedb.Repository
	eventRepo eventdb.Repository
	queue     racequeue.QueueService
	signer    *spoilertoken.Signer
	baseURL   string
	logger    *slog.Logger
	metrics   metrics.OperationMetrics
	tracer    trace.Tracer
	clock     func() time.Time
}

var _ Service = (*SeedService)(nil)

// NewSeedService creates a SeedService. baseURL is the public ops base used
// to build spoiler unlock links.
func NewSeedService(
	repo racedb.Repository,
	eventRepo eventdb.Repository,
	queue racequeue.QueueService,
	signer *spoilertoken.Signer,
	baseURL string,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) *SeedService {
	return &SeedService{
		repo:      repo,
		eventRepo: eventRepo,
		queue:     queue,
		signer:    signer,
		baseURL:   baseURL,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

type operationFunc func(ctx context.Context) ([]results.HandlerResult, error)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func (s *SeedService) withTelemetry(ctx context.Context, operationName string, raceID sharedtypes.RaceID, op operationFunc) (out []results.HandlerResult, err error) {
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
			out = nil
		}
	}()

	out, err = op(ctx)
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
		return out, wrapped
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, module)
	return out, nil
}
