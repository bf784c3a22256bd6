package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gorm.io/gorm"

	"github.com/narwhalmedia/catalog/internal/infrastructure/archive"
	"github.com/narwhalmedia/catalog/internal/infrastructure/events/kafka"
	"github.com/narwhalmedia/catalog/internal/infrastructure/events/nats"
	"github.com/narwhalmedia/catalog/internal/infrastructure/grpc/interceptors"
	"github.com/narwhalmedia/catalog/internal/library/metadata"
	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/internal/library/service"
	"github.com/narwhalmedia/catalog/pkg/cache"
	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/database"
	"github.com/narwhalmedia/catalog/pkg/events"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

func provideDB(cfg *config.CatalogConfig, logger interfaces.Logger) (*gorm.DB, func(), error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err = database.NewSQLiteDB(cfg.Database.Database, config.GormLogLevel(cfg.Database.LogLevel))
	default:
		db, err = database.NewGormDB(cfg.Database.ToPostgresConfig())
	}
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Info("Running database migrations...")
	logf := func(format string, args ...interface{}) {
		logger.Info(fmt.Sprintf(format, args...))
	}
	if err := repository.Migrate(db, logf); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, cleanup, nil
}

// providePersistentCache returns nil unless provider responses are cached
// in Redis across jobs.
func providePersistentCache(ctx context.Context, cfg *config.CatalogConfig, logger interfaces.Logger) (interfaces.Cache, func(), error) {
	if !cfg.Metadata.Cache.Persistent {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.RedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	c := cache.NewRedisCache(client, cfg.Metadata.Cache.KeyPrefix)
	if err := c.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Persistent metadata cache enabled", interfaces.String("address", cfg.Redis.RedisAddr()))
	return c, func() { c.Close() }, nil
}

func provideMetadataProvider(cfg *config.CatalogConfig, logger interfaces.Logger) (metadata.Provider, error) {
	return metadata.NewFromConfig(cfg.Metadata, logger)
}

// providePublisher returns nil for the memory driver.
func providePublisher(ctx context.Context, cfg *config.CatalogConfig, logger interfaces.Logger) (interfaces.EventPublisher, func(), error) {
	switch cfg.Events.Driver {
	case "nats":
		client, cleanup, err := nats.NewClient(ctx, cfg.Events.NATSURL, cfg.Events.NATSStream, cfg.Service.Name, logger)
		if err != nil {
			return nil, nil, err
		}
		p := nats.NewPublisher(client, cleanup, logger)
		return p, func() { p.Close() }, nil
	case "kafka":
		p, err := kafka.NewPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// provideEventBus forwards every event to the broker when one is configured.
func provideEventBus(ctx context.Context, publisher interfaces.EventPublisher, logger interfaces.Logger) (*events.InMemoryEventBus, func(), error) {
	bus := events.NewInMemoryEventBus(logger)
	if publisher != nil {
		if err := bus.Subscribe(events.Wildcard, events.NewForwarder(publisher, logger)); err != nil {
			return nil, nil, err
		}
	}
	if err := bus.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start event bus: %w", err)
	}

	cleanup := func() {
		bus.Drain()
		if err := bus.Stop(); err != nil {
			logger.Error("Failed to stop event bus", interfaces.Error(err))
		}
	}
	return bus, cleanup, nil
}

// provideArchiver returns nil when archiving is disabled.
func provideArchiver(ctx context.Context, cfg *config.CatalogConfig, logger interfaces.Logger) (service.JobArchiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	archiver, err := archive.NewFromConfig(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, err
	}
	return archiver, nil
}

func provideScanController(
	libraries repository.LibraryStore,
	catalog repository.Catalog,
	provider metadata.Provider,
	bus interfaces.EventBus,
	persistent interfaces.Cache,
	archiver service.JobArchiver,
	cfg *config.CatalogConfig,
	logger interfaces.Logger,
) *service.ScanController {
	var opts []service.Option
	if persistent != nil {
		opts = append(opts, service.WithPersistentCache(persistent, cfg.Metadata.Cache.TTL))
	}
	if archiver != nil {
		opts = append(opts, service.WithArchiver(archiver))
	}
	return service.NewScanController(libraries, catalog, provider, bus, cfg, logger, opts...)
}

func provideHealthServer() *health.Server {
	return health.NewServer()
}

func provideGRPCServer(cfg *config.CatalogConfig, hs *health.Server, logger interfaces.Logger) *grpc.Server {
	logger = logger.Named("grpc")
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryRecoveryInterceptor(logger),
			interceptors.UnaryLoggingInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecoveryInterceptor(logger),
			interceptors.StreamLoggingInterceptor(logger),
		),
	)
	healthpb.RegisterHealthServer(server, hs)
	if !config.IsProduction(&cfg.Service) {
		reflection.Register(server)
	}
	return server
}
