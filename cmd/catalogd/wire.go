//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/internal/library/service"
	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/events"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// InitializeApp wires the catalog daemon.
func InitializeApp(ctx context.Context, cfg *config.CatalogConfig, logger interfaces.Logger) (*App, func(), error) {
	wire.Build(
		// Storage
		provideDB,
		repository.NewGormCatalog,
		wire.Bind(new(repository.LibraryStore), new(*repository.GormCatalog)),
		wire.Bind(new(repository.Catalog), new(*repository.GormCatalog)),

		// Metadata
		provideMetadataProvider,
		providePersistentCache,

		// Events
		providePublisher,
		provideEventBus,
		wire.Bind(new(interfaces.EventBus), new(*events.InMemoryEventBus)),

		// Scanning
		provideArchiver,
		provideScanController,
		wire.Bind(new(service.ScanService), new(*service.ScanController)),
		service.NewScheduler,

		// gRPC
		provideHealthServer,
		provideGRPCServer,

		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
