// Package event owns per-event configuration records.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	eventservice "github.com/midoshouse/midos.house/app/modules/event/application"
	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	eventrouter "github.com/midoshouse/midos.house/app/modules/event/infrastructure/router"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the event-config service and its router.
type Module struct {
	EventBus     eventbus.EventBus
	EventService eventservice.Service
	Router       *eventrouter.EventRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the event module.
func NewModule(
	ctx context.Context,
	obs observability.Observability,
	repo eventdb.Repository,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Module, error) {
	logger := obs.Provider.Logger
	service := eventservice.NewEventService(repo, logger, obs.Registry.Operations, obs.Registry.Tracer)

	moduleRouter := eventrouter.NewEventRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure event router: %w", err)
	}

	return &Module{
		EventBus:      bus,
		EventService:  service,
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
			return fmt.Errorf("error closing event router: %w", err)
		}
	}
	return nil
}
