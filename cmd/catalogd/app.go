package main

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/internal/library/service"
	"github.com/narwhalmedia/catalog/internal/library/walker"
	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

const (
	shutdownTimeout = 30 * time.Second
	healthInterval  = 15 * time.Second
)

// App holds the wired catalog daemon.
type App struct {
	Config     *config.CatalogConfig
	Logger     interfaces.Logger
	Catalog    *repository.GormCatalog
	Controller *service.ScanController
	Scheduler  *service.Scheduler
	GRPC       *grpc.Server
	Health     *health.Server
}

// Run serves until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Load(ctx); err != nil {
		return err
	}
	a.Scheduler.Start()

	var wg sync.WaitGroup
	watchCtx, stopWatchers := context.WithCancel(ctx)
	defer stopWatchers()
	if err := a.startWatchers(watchCtx, &wg); err != nil {
		return err
	}

	addr := config.GetGRPCListenAddress(&a.Config.Service)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("gRPC server starting", interfaces.String("address", addr))
		serveErr <- a.GRPC.Serve(lis)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.monitorHealth(watchCtx)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		a.Logger.Error("gRPC server stopped", interfaces.Error(err))
	}

	a.Logger.Info("Shutting down...")
	a.Health.Shutdown()
	a.GRPC.GracefulStop()
	a.Scheduler.Stop()
	stopWatchers()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Controller.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("Scan jobs did not stop in time", interfaces.Error(err))
	}
	return err
}

func (a *App) startWatchers(ctx context.Context, wg *sync.WaitGroup) error {
	if !a.Config.Watcher.Enabled {
		return nil
	}

	enabled := true
	libraries, err := a.Catalog.ListLibraries(ctx, &enabled)
	if err != nil {
		return err
	}

	opts := walker.WatchOptions{
		Options: walker.Options{
			Extensions:     a.Config.Scanner.Extensions,
			IgnorePatterns: a.Config.Scanner.IgnorePatterns,
			FollowSymlinks: a.Config.Scanner.FollowSymlinks,
		},
		Debounce:   a.Config.Watcher.Debounce,
		Backoff:    a.Config.Watcher.ResubscribeBackoff,
		MaxBackoff: a.Config.Watcher.MaxResubscribeBackoff,
	}
	for _, library := range libraries {
		if !library.WatchEnabled {
			continue
		}
		w := walker.NewWatcher(library.ID, library.Path, opts, a.Controller.Enqueue, a.Logger)
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				a.Logger.Error("Watcher stopped", interfaces.String("path", path), interfaces.Error(err))
			}
		}(library.Path)
	}
	return nil
}

// monitorHealth reports NOT_SERVING while the catalog database is unreachable.
func (a *App) monitorHealth(ctx context.Context) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if err := a.Catalog.Ping(pingCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			a.Logger.Warn("Catalog unreachable", interfaces.Error(err))
		}
		a.Health.SetServingStatus("", status)
	}

	check()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
