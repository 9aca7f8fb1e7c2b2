package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/example/facility-reservations/internal/application"
	"github.com/example/facility-reservations/internal/config"
	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/persistence/memory"
	"github.com/example/facility-reservations/internal/persistence/mongodb"
	"github.com/example/facility-reservations/internal/persistence/redisstore"
	"github.com/example/facility-reservations/internal/persistence/sqlite"
	"github.com/example/facility-reservations/internal/persistence/sqlite/migration"
)

// wiring bundles the configured store and the services built on it.
type wiring struct {
	cfg          config.Config
	logger       *slog.Logger
	store        persistence.Store
	admins       *application.StoreAdminDirectory
	facilities   *application.FacilityRegistry
	reservations *application.ReservationService
	calendar     *application.CalendarIndex
	close        func(context.Context) error
}

func setupLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore connects to the backend selected by cfg.Store. The returned closer releases it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, func(context.Context) error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), func(context.Context) error { return nil }, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, func(context.Context) error { return store.Close() }, nil
	case config.StoreMongo:
		store, disconnect, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = disconnect(ctx)
			return nil, nil, fmt.Errorf("failed to create mongodb indexes: %w", err)
		}
		return store, disconnect, nil
	case config.StoreRedis:
		store, err := redisstore.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, func(context.Context) error { return store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// newWiring loads configuration, opens the store and loads both snapshots. When seed is
// true the configured facilities are registered first.
func newWiring(ctx context.Context, seed bool) (*wiring, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(os.Stderr, cfg.LogLevel)
	return buildWiring(ctx, cfg, logger, seed)
}

func buildWiring(ctx context.Context, cfg config.Config, logger *slog.Logger, seed bool) (*wiring, error) {
	store, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	rt := &wiring{cfg: cfg, logger: logger, store: store, close: closer}
	rt.admins = application.NewStoreAdminDirectory(store, logger)
	rt.facilities = application.NewFacilityRegistryWithLogger(store, rt.admins, logger)
	rt.reservations = application.NewReservationServiceWithLogger(store, rt.facilities, uuid.NewString, rt.now, logger)
	rt.calendar = application.NewCalendarIndex(rt.reservations)

	if err := rt.facilities.Reload(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	if seed {
		names, err := config.LoadFacilities(cfg.FacilitiesFile)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		if _, err := rt.facilities.Seed(ctx, names); err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
	}
	if err := rt.reservations.Reload(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

// now reports the current time in the configured location.
func (rt *wiring) now() time.Time {
	return time.Now().In(rt.location())
}

func (rt *wiring) location() *time.Location {
	if rt.cfg.Location == nil {
		return time.Local
	}
	return rt.cfg.Location
}

func (rt *wiring) Close(ctx context.Context) error {
	if rt == nil || rt.close == nil {
		return nil
	}
	err := rt.close(ctx)
	rt.close = nil
	return err
}
