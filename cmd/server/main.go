package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/stuartshay/geostore/internal/config"
	"github.com/stuartshay/geostore/internal/database"
	grpcserver "github.com/stuartshay/geostore/internal/grpc"
	"github.com/stuartshay/geostore/internal/host"
	"github.com/stuartshay/geostore/internal/httpapi"
	"github.com/stuartshay/geostore/internal/jobs"
	"github.com/stuartshay/geostore/internal/metasync"
	"github.com/stuartshay/geostore/internal/proximity"
	"github.com/stuartshay/geostore/internal/queue"
	"github.com/stuartshay/geostore/internal/store"
	"github.com/stuartshay/geostore/internal/tracing"
)

// services is everything main starts and stops
type services struct {
	db     *database.Client
	queue  *queue.Queue
	grpc   *grpc.Server
	health *health.Server
	http   http.Handler
}

func main() {
	// Initialize structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	log.Info().Msg("Starting geostore service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setLogLevel(cfg.LogLevel)

	log.Info().
		Str("service_name", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("grpc_port", cfg.GRPCPort).
		Str("http_port", cfg.HTTPPort).
		Str("db_driver", cfg.DatabaseDriver).
		Str("default_distance", cfg.DefaultDistance).
		Msg("Configuration loaded")

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	svc, err := buildServices(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.db.Close()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create TCP listener")
	}

	go func() {
		log.Info().Str("port", cfg.GRPCPort).Msg("gRPC server listening")
		if err := svc.grpc.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           svc.http,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutdown signal received, gracefully stopping...")
	svc.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown failed")
	}

	stopped := make(chan struct{})
	go func() {
		svc.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		svc.grpc.Stop()
	case <-stopped:
		log.Info().Msg("gRPC server stopped")
	}

	if err := svc.queue.Shutdown(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown job queue")
	}

	if err := shutdownTracer(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown tracer")
	}

	log.Info().Msg("Service shutdown complete")
}

// buildServices opens and migrates the database and wires the store, the
// proximity engine, the job queue and both transports
func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	dialect, err := database.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := database.NewClient(dialect, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("database client: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	log.Info().Str("driver", string(dialect)).Msg("Database health check passed")

	hostObjects := host.NewSQL(db)
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := hostObjects.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate host tables: %w", err)
	}

	st := store.New(db, hostObjects, metasync.New(hostObjects), store.Options{QueryTimeout: cfg.QueryTimeout})
	engine := proximity.NewEngine(db, proximity.Options{
		DefaultDistance: cfg.DefaultDistance,
		MaxLimit:        cfg.MaxNearbyLimit,
		QueryTimeout:    cfg.QueryTimeout,
	})
	q := queue.NewQueue(cfg.Workers, 100, jobs.NewRunner(st, cfg.ExportPath).Process)

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	grpcserver.RegisterLocationServiceServer(grpcServer, grpcserver.NewServer(st, engine, q))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable server reflection for debugging
	reflection.Register(grpcServer)

	router := httpapi.NewRouter(httpapi.Deps{
		Store:       st,
		Engine:      engine,
		DB:          db,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})

	return &services{
		db:     db,
		queue:  q,
		grpc:   grpcServer,
		health: healthServer,
		http:   httpapi.Handler(router, cfg.ServiceName),
	}, nil
}

// setLogLevel configures the global log level
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Info().Str("level", level).Msg("Log level set")
}
