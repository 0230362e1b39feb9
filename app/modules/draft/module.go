// Package draft runs the settings negotiation over persisted race records.
package draft

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	draftservice "github.com/midoshouse/midos.house/app/modules/draft/application"
	draftrouter "github.com/midoshouse/midos.house/app/modules/draft/infrastructure/router"
	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the draft service and its router.
type Module struct {
	EventBus     eventbus.EventBus
	DraftService draftservice.Service
	Router       *draftrouter.DraftRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the draft module.
func NewModule(
	ctx context.Context,
	obs observability.Observability,
	raceRepo racedb.Repository,
	eventRepo eventdb.Repository,
	queue racequeue.QueueService,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Module, error) {
	logger := obs.Provider.Logger
	service := draftservice.NewDraftService(raceRepo, eventRepo, queue, logger, obs.Registry.Operations, obs.Registry.Tracer)

	moduleRouter := draftrouter.NewDraftRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure draft router: %w", err)
	}

	return &Module{
		EventBus:      bus,
		DraftService:  service,
		Router:        moduleRouter,
		observability: obs,
	}, nil
}

// Run keeps the module alive until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()
	if wg != nil {
		defer wg.Done()
	}
	<-ctx.Done()
}

// Close stops the module.
func (m *Module) Close() error {
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if m.Router != nil {
		if err := m.Router.Close(); err != nil {
			return fmt.Errorf("error closing draft router: %w", err)
		}
	}
	return nil
}
