// Package team owns team registration and roster records.
package team

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	teamservice "github.com/midoshouse/midos.house/app/modules/team/application"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	teamrouter "github.com/midoshouse/midos.house/app/modules/team/infrastructure/router"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Module bundles the team service and its router.
type Module struct {
	EventBus    eventbus.EventBus
	TeamService teamservice.Service
	Router      *teamrouter.TeamRouter

	observability observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the team module.
func NewModule(
	ctx context.Context,
	obs observability.Observability,
	repo teamdb.Repository,
	bus eventbus.EventBus,
	router *message.Router,
	helpers utils.Helpers,
) (*Module, error) {
	logger := obs.Provider.Logger
	service := teamservice.NewTeamService(repo, logger, obs.Registry.Operations, obs.Registry.Tracer)

	moduleRouter := teamrouter.NewTeamRouter(logger, router, bus, helpers, obs.Registry.Tracer, obs.Registry.Handlers)
	if err := moduleRouter.Configure(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to configure team router: %w", err)
	}

	return &Module{
		EventBus:      bus,
		TeamService:   service,
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
			return fmt.Errorf("error closing team router: %w", err)
		}
	}
	return nil
}
