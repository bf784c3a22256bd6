package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
	"github.com/narwhalmedia/catalog/pkg/logger"
)

func main() {
	cfg := config.MustLoadServiceConfig("catalog", config.GetDefaultCatalogConfig())

	log, err := logger.NewFromConfig(&logger.Config{
		Level:       cfg.Logger.Level,
		Development: cfg.Logger.Development || config.IsDevelopment(&cfg.Service),
		Encoding:    cfg.Logger.Format,
		OutputPaths: []string{cfg.Logger.OutputPath},
	})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Catalog service starting",
		interfaces.String("version", config.GetServiceVersion(&cfg.Service)),
		interfaces.String("environment", cfg.Service.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := InitializeApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize catalog service", interfaces.Error(err))
	}
	defer cleanup()

	if err := app.Run(ctx); err != nil {
		log.Error("Catalog service stopped with error", interfaces.Error(err))
		return
	}
	log.Info("Catalog service stopped")
}
