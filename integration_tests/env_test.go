// Package integration spins up real Postgres and NATS containers and
// exercises the storage, bus, and timer layers end to end. The suite is
// gated behind INTEGRATION=1 so the unit test run stays hermetic.
package integration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	eventmigrations "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories/migrations"
	racequeue "github.com/midoshouse/midos.house/app/modules/race/infrastructure/queue"
	racemigrations "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories/migrations"
	teammigrations "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories/migrations"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/integration_tests/containers"
)

type testEnv struct {
	db      *bun.DB
	dsn     string
	bus     eventbus.EventBus
	helpers utils.Helpers
	logger  *slog.Logger
	queue   *racequeue.Service
}

// newTestEnv starts both containers, migrates every schema (modules plus
// River), and wires the shared infrastructure. Cleanup tears it all down.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run integration tests")
	}

	ctx := context.Background()

	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		t.Fatalf("nats container: %v", err)
	}
	t.Cleanup(func() { _ = natsContainer.Terminate(context.Background()) })

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, migrations := range []*migrate.Migrations{
		racemigrations.Migrations,
		teammigrations.Migrations,
		eventmigrations.Migrations,
	} {
		migrator := migrate.NewMigrator(db, migrations)
		if err := migrator.Init(ctx); err != nil {
			t.Fatalf("migrator init: %v", err)
		}
		if _, err := migrator.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgx pool: %v", err)
	}
	riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		t.Fatalf("river migrator: %v", err)
	}
	if _, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		t.Fatalf("river migrate: %v", err)
	}
	pool.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus, err := eventbus.New(ctx, eventbus.Config{URL: natsURL, AppName: "integration"}, logger)
	if err != nil {
		t.Fatalf("event bus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	helpers := utils.NewHelper(logger)

	queue, err := racequeue.NewService(ctx, db, dsn, logger, bus, helpers)
	if err != nil {
		t.Fatalf("queue service: %v", err)
	}

	return &testEnv{
		db:      db,
		dsn:     dsn,
		bus:     bus,
		helpers: helpers,
		logger:  logger,
		queue:   queue,
	}
}

// receive waits for one message on ch, acking it.
func receive(t *testing.T, ch <-chan *message.Message, timeout time.Duration) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for message")
		return nil
	}
}
