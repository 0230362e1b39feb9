// Package scheduling runs the per-race coordination thread.
package scheduling

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	schedulingservice "github.com/midoshouse/midos.house/app/modules/scheduling/application"
	schedulingrouter "github.com/midoshouse/midos.house/app/modules/scheduling/infrastructure/router"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the scheduling service and its router.
type Module struct {
	EventBus          eventbus.EventBus
	SchedulingService schedulingservice.Service
	Router            *schedulingrouter.SchedulingRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the scheduling module.
func NewModule(
	ctx context.Context,
	obs observability.Observability,
	raceRepo racedb.Repository,
	eventRepo eventdb.Repository,
	teamRepo teamdb.Repository,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Module, error) {
	logger := obs.Provider.Logger
	service, err := schedulingservice.NewSchedulingService(raceRepo, eventRepo, teamRepo, logger, obs.Registry.Operations, obs.Registry.Tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduling service: %w", err)
	}

	moduleRouter := schedulingrouter.NewSchedulingRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure scheduling router: %w", err)
	}

	return &Module{
		EventBus:          bus,
		SchedulingService: service,
		Router:            moduleRouter,
		observability:     obs,
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
			return fmt.Errorf("error closing scheduling router: %w", err)
		}
	}
	return nil
}
