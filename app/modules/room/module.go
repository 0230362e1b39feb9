// Package room runs the race-room lifecycle against the chat service.
package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	roomservice "github.com/midoshouse/midos.house/app/modules/room/application"
	roomrouter "github.com/midoshouse/midos.house/app/modules/room/infrastructure/router"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the room service and its router.
type Module struct {
	EventBus    eventbus.EventBus
	RoomService roomservice.Service
	Router      *roomrouter.RoomRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the room module.
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
	service, err := roomservice.NewRoomService(raceRepo, eventRepo, teamRepo, queue, logger, obs.Registry.Operations, obs.Registry.Tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to create room service: %w", err)
	}

	moduleRouter := roomrouter.NewRoomRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure room router: %w", err)
	}

	return &Module{
		EventBus:      bus,
		RoomService:   service,
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
			return fmt.Errorf("error closing room router: %w", err)
		}
	}
	return nil
}
