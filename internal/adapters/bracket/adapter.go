package bracket

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/midoshouse/midos.house/app/shared/eventbus"
	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/handlerwrapper"
)

// submitAttempts bounds report submissions, counting ambiguous outcomes.
const submitAttempts = 3

// Adapter consumes bracket report effects and submits them to the bracket
// service. The inbound direction (set updates) arrives through the ops
// webhook receiver, not here.
type Adapter struct {
	client Client
	logger *slog.Logger

	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	helper     utils.Helpers
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// NewAdapter wires the bracket adapter onto its router.
func NewAdapter(
	_ context.Context,
	obs observability.Observability,
	client Client,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Adapter, error) {
	a := &Adapter{
		client:     client,
		logger:     obs.Provider.Logger,
		router:     router,
		subscriber: bus,
		publisher:  bus,
		helper:     helpers,
		tracer:     obs.Registry.Tracer,
		metrics:    obs.Registry.Handlers,
	}

	router.AddMiddleware(
		middleware.CorrelationID,
		utils.NewMiddlewareHelper().CommonMetadataMiddleware("bracket"),
		utils.NewMiddlewareHelper().RoutingMetadataMiddleware(),
		middleware.Recoverer,
	)

	handlerName := "bracket." + bracketevents.BracketReportSubmitV1
	router.AddHandler(
		handlerName,
		bracketevents.BracketReportSubmitV1,
		a.subscriber,
		"", // destination read from message metadata
		a.publisher,
		handlerwrapper.WrapTransformingTyped(handlerName, a.logger, a.tracer, a.helper, a.metrics, a.handleReportSubmit),
	)
	return a, nil
}

// Close releases adapter resources. The adapter owns no goroutines or
// connections of its own; the router is owned by the caller.
func (a *Adapter) Close() error {
	return nil
}

// handleReportSubmit submits a set report. Ambiguous responses trigger a
// reconciling read: if the bracket already shows our winner the submission
// landed; if it shows nothing we retry; if it shows a different winner we
// stop and surface the disagreement.
func (a *Adapter) handleReportSubmit(ctx context.Context, payload *bracketevents.ReportSubmitPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	report := Report{SetID: payload.SetID, Winner: payload.Winner}
	for _, line := range payload.Games {
		report.Games = append(report.Games, GameLine{Game: line.Game, Winner: line.Winner})
	}

	acked := func() []handlerwrapper.Result {
		return []handlerwrapper.Result{{
			Topic:   bracketevents.BracketReportAckedV1,
			Payload: &bracketevents.ReportAckedPayloadV1{RaceID: payload.RaceID, SetID: payload.SetID},
		}}
	}
	failed := func(reason string, ambiguous bool) []handlerwrapper.Result {
		return []handlerwrapper.Result{{
			Topic: bracketevents.BracketReportFailedV1,
			Payload: &bracketevents.ReportFailedPayloadV1{
				RaceID:    payload.RaceID,
				SetID:     payload.SetID,
				Reason:    reason,
				Ambiguous: ambiguous,
			},
		}}
	}

	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		lastErr = a.client.SubmitReport(ctx, payload.EventID, report)
		if lastErr == nil {
			return acked(), nil
		}
		if !errors.Is(lastErr, ErrAmbiguous) {
			return failed(lastErr.Error(), false), nil
		}

		set, readErr := a.client.GetSet(ctx, payload.EventID, payload.SetID)
		if readErr != nil {
			a.logger.WarnContext(ctx, "Reconciling read failed after ambiguous report",
				attr.RaceID("race_id", payload.RaceID),
				attr.Int("attempt", attempt),
				attr.Error(readErr),
			)
			// No reconciling read possible; do not blind-retry.
			return failed(lastErr.Error(), true), nil
		}
		if set.Winner != nil {
			if *set.Winner == payload.Winner {
				// The ambiguous submission landed.
				return acked(), nil
			}
			return failed("bracket already shows a different winner", false), nil
		}
		// Set still open: the submission did not land, retry.
	}
	return failed(lastErr.Error(), true), nil
}
