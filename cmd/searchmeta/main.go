// searchmeta gRPC Server
// Serves search-indexing metadata for a mapped domain model
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/searchmeta/examples/bookstore"
	"github.com/nainya/searchmeta/internal/config"
	"github.com/nainya/searchmeta/internal/logger"
	"github.com/nainya/searchmeta/internal/metrics"
	"github.com/nainya/searchmeta/internal/server"
	"github.com/nainya/searchmeta/pkg/catalog"
	"github.com/nainya/searchmeta/pkg/indexmanager"
	"github.com/nainya/searchmeta/pkg/provider"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "searchmeta: %v\n", err)
		os.Exit(2)
	}

	log := logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal("Server failed").Err(err).Send()
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	m.StartUptime(ctx, 15*time.Second)

	sm := bookstore.NewMapping()
	if err := sm.Validate(); err != nil {
		return fmt.Errorf("invalid search mapping: %w", err)
	}

	managers := indexmanager.DefaultRegistry()
	p := provider.New(sm,
		provider.WithIndexManagers(managers),
		provider.WithLogger(log.ProviderLogger()),
		provider.WithMetrics(m),
	)

	var cat *catalog.Catalog
	if cfg.Catalog.Driver != "" {
		var err error
		cat, err = catalog.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN,
			catalog.WithLogger(log.CatalogLogger(cfg.Catalog.Driver)),
			catalog.WithMetrics(m),
		)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
	}

	srv, err := server.NewServer(server.Config{
		Mapping:             sm,
		Provider:            p,
		IndexManagers:       managers,
		Catalog:             cat,
		DefaultIndexManager: cfg.DefaultIndexManager,
		Logger:              log,
		Metrics:             m,
	})
	if err != nil {
		if cat != nil {
			cat.Close()
		}
		return err
	}
	defer srv.Close()

	if cat != nil && cfg.Catalog.PublishOnStart {
		results, err := srv.PublishAll(ctx)
		if err != nil {
			return fmt.Errorf("publish metadata: %w", err)
		}
		log.Info("Published metadata catalog").Int("snapshots", len(results)).Send()
	}

	log.LogServerStart(cfg.GRPCAddr, cfg.Catalog.Driver, len(sm.Types()))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
	)
	server.RegisterMetadataServiceServer(grpcServer, srv)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	var ready atomic.Bool
	obs := server.NewObservabilityServer(cfg.ObservabilityPort, log, prometheus.DefaultGatherer, ready.Load)
	go func() {
		if err := obs.Start(); err != nil {
			log.Error("Observability server stopped").Err(err).Send()
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()

	healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	ready.Store(true)
	log.LogServerReady(lis.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	log.LogServerShutdown()
	ready.Store(false)
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn("Graceful stop timed out, forcing").Send()
		grpcServer.Stop()
	}

	return obs.Shutdown(shutdownCtx)
}
