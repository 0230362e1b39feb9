// Package seed attaches generated seeds to races and manages spoiler access.
package seed

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	seedservice "github.com/midoshouse/midos.house/app/modules/seed/application"
	seedrouter "github.com/midoshouse/midos.house/app/modules/seed/infrastructure/router"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/spoilertoken"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the seed service and its router.
type Module struct {
	EventBus    eventbus.EventBus
	SeedService seedservice.Service
	Router      *seedrouter.SeedRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the seed module. baseURL is the public ops base used in
// spoiler unlock links.
func NewModule(
	ctx context.Context,
	obs observability.Observability,
	raceRepo racedb.Repository,
	eventRepo eventdb.Repository,
	queue racequeue.QueueService,
	signer *spoilertoken.Signer,
	baseURL string,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Module, error) {
	logger := obs.Provider.Logger
	service := seedservice.NewSeedService(raceRepo, eventRepo, queue, signer, baseURL, logger, obs.Registry.Operations, obs.Registry.Tracer)

	moduleRouter := seedrouter.NewSeedRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure seed router: %w", err)
	}

	return &Module{
		EventBus:      bus,
		SeedService:   service,
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
			return fmt.Errorf("error closing seed router: %w", err)
		}
	}
	return nil
}
