// Package race owns the authoritative race record and its durable timers.
package race

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	raceservice "github.com/midoshouse/midos.house/app/modules/race/application"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	racerouter "github.com/midoshouse/midos.house/app/modules/race/infrastructure/router"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the race service, its timer queue, and its router.
type Module struct {
	EventBus     eventbus.EventBus
	RaceService  raceservice.Service
	QueueService racequeue.QueueService
	Router       *racerouter.RaceRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the race module. The queue service is built by the caller
// because River owns its own connection pool.
func NewModule(
	ctx context.Context,
	obs observability.Observability,
	repo racedb.Repository,
	eventRepo eventdb.Repository,
	teamRepo teamdb.Repository,
	queue racequeue.QueueService,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Module, error) {
	logger := obs.Provider.Logger
	service := raceservice.NewRaceService(repo, eventRepo, teamRepo, queue, logger, obs.Registry.Operations, obs.Registry.Tracer)

	moduleRouter := racerouter.NewRaceRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure race router: %w", err)
	}

	return &Module{
		EventBus:      bus,
		RaceService:   service,
		QueueService:  queue,
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
			return fmt.Errorf("error closing race router: %w", err)
		}
	}
	return nil
}
