// Package app composes the storage, bus, timer queue, module routers,
// platform adapters, and operator surface into one process.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/midoshouse/midos.house/app/modules/draft"
	"github.com/midoshouse/midos.house/app/modules/event"
	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/modules/race"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/modules/result"
	"github.com/midoshouse/midos.house/app/modules/room"
	"github.com/midoshouse/midos.house/app/modules/scheduling"
	"github.com/midoshouse/midos.house/app/modules/seed"
	"github.com/midoshouse/midos.house/app/modules/team"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/spoilertoken"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/config"
	"github.com/midoshouse/midos.house/internal/adapters/bracket"
	"github.com/midoshouse/midos.house/internal/adapters/racechat"
	"github.com/midoshouse/midos.house/internal/adapters/schedthread"
	"github.com/midoshouse/midos.house/internal/adapters/seedgen"
	"github.com/midoshouse/midos.house/internal/ops"
)

// App owns every long-lived component of the process.
type App struct {
	Cfg           *config.Config
	Observability observability.Observability

	db      *bun.DB
	bus     eventbus.EventBus
	helpers utils.Helpers
	queue   *racequeue.Service

	raceRepo  racedb.Repository
	eventRepo eventdb.Repository
	teamRepo  teamdb.Repository

	routers []*message.Router

	teamModule       *team.Module
	eventModule      *event.Module
	raceModule       *race.Module
	draftModule      *draft.Module
	roomModule       *room.Module
	schedulingModule *scheduling.Module
	resultModule     *result.Module
	seedModule       *seed.Module

	racechatAdapter *racechat.Adapter
	threadAdapter   *schedthread.Adapter
	bracketAdapter  *bracket.Adapter
	seedgenAdapter  *seedgen.Adapter

	opsServer *ops.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp wires every component. Nothing starts processing until Run.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.ValidateService(); err != nil {
		return nil, err
	}

	obs := observability.Init(observability.Config{
		ServiceName: "midos-house",
		Environment: cfg.Observability.Environment,
		LogLevel:    cfg.Observability.LogLevel,
	})
	logger := obs.Provider.Logger

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	bus, err := eventbus.New(ctx, eventbus.Config{
		URL:      cfg.NATS.URL,
		AppName:  "midos-house",
		NKeySeed: cfg.NATS.NKeySeed,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	helpers := utils.NewHelper(logger)

	raceRepo := &racedb.RaceDBImpl{DB: db}
	eventRepo := &eventdb.EventDBImpl{DB: db}
	teamRepo := &teamdb.TeamDBImpl{DB: db}

	queue, err := racequeue.NewService(ctx, db, cfg.Postgres.DSN, logger, bus, helpers)
	if err != nil {
		return nil, fmt.Errorf("failed to build queue service: %w", err)
	}

	signer := spoilertoken.NewSigner([]byte(cfg.Spoiler.Secret), cfg.Spoiler.TTL)

	a := &App{
		Cfg:           cfg,
		Observability: obs,
		db:            db,
		bus:           bus,
		helpers:       helpers,
		queue:         queue,
		raceRepo:      raceRepo,
		eventRepo:     eventRepo,
		teamRepo:      teamRepo,
	}

	wmLogger := watermill.NewSlogLogger(logger)
	newRouter := func() (*message.Router, error) {
		router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, wmLogger)
		if err != nil {
			return nil, err
		}
		a.routers = append(a.routers, router)
		return router, nil
	}

	// Each module and adapter gets its own router so middleware stacks and
	// handler lifecycles stay independent.
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.teamModule, err = team.NewModule(ctx, obs, teamRepo, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build team module: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.eventModule, err = event.NewModule(ctx, obs, eventRepo, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build event module: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.raceModule, err = race.NewModule(ctx, obs, raceRepo, eventRepo, teamRepo, queue, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build race module: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.draftModule, err = draft.NewModule(ctx, obs, raceRepo, eventRepo, queue, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build draft module: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.roomModule, err = room.NewModule(ctx, obs, raceRepo, eventRepo, teamRepo, queue, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build room module: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.schedulingModule, err = scheduling.NewModule(ctx, obs, raceRepo, eventRepo, teamRepo, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build scheduling module: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.resultModule, err = result.NewModule(ctx, obs, raceRepo, eventRepo, teamRepo, queue, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build result module: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.seedModule, err = seed.NewModule(ctx, obs, raceRepo, eventRepo, queue, signer, cfg.PublicBaseURL, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build seed module: %w", err)
	}

	chatClient := racechat.NewHTTPClient(cfg.Racechat, logger)
	monitor := racechat.NewMonitor(cfg.Racechat.WSBaseURL, bus, helpers, logger)
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.racechatAdapter, err = racechat.NewAdapter(ctx, obs, chatClient, monitor, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build racechat adapter: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to build discord session: %w", err)
	}
	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.threadAdapter, err = schedthread.NewAdapter(ctx, obs, cfg.Discord, session, bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build schedthread adapter: %w", err)
	}

	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.bracketAdapter, err = bracket.NewAdapter(ctx, obs, bracket.NewHTTPClient(cfg.Bracket), bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build bracket adapter: %w", err)
	}

	if router, err := newRouter(); err != nil {
		return nil, err
	} else if a.seedgenAdapter, err = seedgen.NewAdapter(ctx, obs, cfg.Seedgen, seedgen.NewHTTPClient(cfg.Seedgen), bus, router, helpers); err != nil {
		return nil, fmt.Errorf("failed to build seedgen adapter: %w", err)
	}

	a.opsServer = ops.NewServer(
		cfg.Ops, logger, raceRepo, teamRepo, bus, helpers, signer, obs.Registry.Prometheus,
		ops.Probe{Name: "db", Check: db.PingContext},
		ops.Probe{Name: "queue", Check: queue.HealthCheck},
		ops.Probe{Name: "bus", Check: a.busProbe},
	)

	return a, nil
}

// busProbe reports bus health when the bus exposes it.
func (a *App) busProbe(ctx context.Context) error {
	if hc, ok := a.bus.(eventbus.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Run starts the queue, every router, the external sessions, and the ops
// server, then reconciles persisted state and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	logger := a.Observability.Provider.Logger

	if err := a.queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue: %w", err)
	}

	for _, router := range a.routers {
		router := router
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := router.Run(ctx); err != nil {
				logger.Error("Router stopped with error", attr.Error(err))
				cancel()
			}
		}()
	}
	for _, router := range a.routers {
		select {
		case <-router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := a.threadAdapter.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.opsServer.Start(); err != nil {
			logger.Error("Ops server stopped with error", attr.Error(err))
			cancel()
		}
	}()

	if err := a.reconcile(ctx); err != nil {
		logger.Error("Startup reconciliation failed", attr.Error(err))
	}

	logger.Info("midos.house is running")
	<-ctx.Done()
	return nil
}

// Close tears everything down in dependency order.
func (a *App) Close(ctx context.Context) error {
	logger := a.Observability.Provider.Logger
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.opsServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shut down ops server", attr.Error(err))
	}

	for _, m := range []interface{ Close() error }{
		a.seedgenAdapter, a.bracketAdapter, a.threadAdapter, a.racechatAdapter,
		a.seedModule, a.resultModule, a.schedulingModule, a.roomModule,
		a.draftModule, a.raceModule, a.eventModule, a.teamModule,
	} {
		if err := m.Close(); err != nil {
			logger.Error("Failed to close component", attr.Error(err))
		}
	}

	if err := a.queue.Stop(ctx); err != nil {
		logger.Error("Failed to stop queue", attr.Error(err))
	}

	a.wg.Wait()

	if err := a.bus.Close(); err != nil {
		logger.Error("Failed to close event bus", attr.Error(err))
	}
	if err := a.db.Close(); err != nil {
		logger.Error("Failed to close database", attr.Error(err))
	}
	return nil
}
