// Package result reconciles closed rooms into recorded races and decided
// matches.
package result

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	resultservice "github.com/midoshouse/midos.house/app/modules/result/application"
	resultrouter "github.com/midoshouse/midos.house/app/modules/result/infrastructure/router"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the result service and its router.
type Module struct {
	EventBus      eventbus.EventBus
	ResultService resultservice.Service
	Router        *resultrouter.ResultRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the result module.
func NewModule(
	ctx context.Context,
	obs observability.Observability,
	raceRepo racedb.Repository,
	eventRepo eventdb.Repository,
	teamRepo teamdb.Repository,
	queue racequeue.QueueService,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Module, error) {
	logger := obs.Provider.Logger
	service := resultservice.NewResultService(raceRepo, eventRepo, teamRepo, queue, logger, obs.Registry.Operations, obs.Registry.Tracer)

	moduleRouter := resultrouter.NewResultRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure result router: %w", err)
	}

	return &Module{
		EventBus:      bus,
		ResultService: service,
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
			return fmt.Errorf("error closing result router: %w", err)
		}
	}
	return nil
}
