package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/api"
	"github.com/nicco6482/desintesa/api/services"
	"github.com/nicco6482/desintesa/db"
	"github.com/nicco6482/desintesa/pkg/config"
	"github.com/nicco6482/desintesa/pkg/lifecycle"
	"github.com/nicco6482/desintesa/pkg/logging"
	"github.com/nicco6482/desintesa/pkg/metrics"
	embeddednats "github.com/nicco6482/desintesa/pkg/services/embedded-nats"
	"github.com/nicco6482/desintesa/pkg/services/workers"
)

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Service.Environment,
		Service:     cfg.Service.Name,
		Version:     cfg.Service.Version,
	})
	if envErr != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	store, closeStore, err := db.OpenStore(ctx, storeConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to open order store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("Failed to close order store")
		}
	}()

	catalog := db.NewFileCatalog(cfg.Catalog)
	if _, err := catalog.LoadCatalog(ctx); err != nil {
		return fmt.Errorf("failed to load chemical catalog: %w", err)
	}

	// Initialize embedded NATS
	var (
		natsServer    *embeddednats.EmbeddedNATS
		workerManager *workers.Manager
		publisher     services.EventPublisher
	)
	if cfg.NATS.Enabled {
		natsServer, err = initNATS(cfg, log)
		if err != nil {
			return err
		}
		publisher = natsServer

		workerManager, err = workers.NewManager(natsServer, log)
		if err != nil {
			shutdownNATS(natsServer, cfg, log)
			return fmt.Errorf("failed to create worker manager: %w", err)
		}
		if err := workerManager.Start(); err != nil {
			shutdownNATS(natsServer, cfg, log)
			return fmt.Errorf("failed to start workers: %w", err)
		}
	} else {
		log.Warn().Msg("NATS disabled; order events will not be published")
	}

	orderService := services.NewOrderService(store, lifecycle.NewFolioGenerator(cfg.Folio), publisher, m, log)
	catalogService := services.NewCatalogService(catalog)

	handlers := api.NewHandlers(orderService, catalogService, log).
		WithVersion(cfg.Service.Name, cfg.Service.Version)
	if checker, ok := store.(interface{ Health() error }); ok {
		handlers.AddHealthCheck("store", checker.Health)
	}
	if natsServer != nil {
		handlers.AddHealthCheck("nats", natsServer.HealthCheck)
	}

	server := &http.Server{
		Addr: ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(handlers, api.RouterConfig{
			AllowedOrigin: cfg.HTTP.AllowedOrigin,
			Metrics:       m,
			Log:           log,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("store", string(store.Driver())).
			Bool("nats", natsServer != nil).
			Msg("Starting desintesa API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	signal.Stop(sigChan)

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server gracefully")
	}

	// Let in-flight event publishes finish before NATS goes away
	orderService.Wait()

	if workerManager != nil {
		if err := workerManager.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop workers")
		}
	}

	if natsServer != nil {
		if err := natsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown NATS")
		}
	}

	log.Info().Msg("Server shutdown complete")
	return runErr
}

func initNATS(cfg *config.Config, log zerolog.Logger) (*embeddednats.EmbeddedNATS, error) {
	natsCfg := embeddednats.DefaultConfig()
	natsCfg.DataDir = cfg.NATS.DataDir
	natsCfg.Port = cfg.NATS.Port

	natsServer, err := embeddednats.New(natsCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS: %w", err)
	}

	if err := natsServer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
	}

	if err := natsServer.CreateDesintesaStreams(); err != nil {
		shutdownNATS(natsServer, cfg, log)
		return nil, fmt.Errorf("failed to create desintesa streams: %w", err)
	}

	if err := natsServer.CreateDesintesaConsumers(); err != nil {
		shutdownNATS(natsServer, cfg, log)
		return nil, err
	}

	log.Info().Msg("NATS JetStream initialized successfully")
	return natsServer, nil
}

// shutdownNATS stops a server started during a failed startup.
func shutdownNATS(natsServer *embeddednats.EmbeddedNATS, cfg *config.Config, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := natsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown NATS")
	}
}

func storeConfig(cfg *config.Config) db.StoreConfig {
	return db.StoreConfig{
		Driver:      db.Driver(cfg.Store.Driver),
		OrdersFile:  cfg.Store.OrdersFile,
		SQLitePath:  cfg.Store.SQLitePath,
		PostgresDSN: cfg.Store.PostgresDSN,
		S3: db.S3Config{
			Bucket:    cfg.Store.S3Bucket,
			Region:    cfg.Store.S3Region,
			Endpoint:  cfg.Store.S3Endpoint,
			PathStyle: cfg.Store.S3PathStyle,
			Key:       cfg.Store.S3Key,

			AccessKeyID:     cfg.Store.S3AccessKeyID,
			SecretAccessKey: cfg.Store.S3SecretAccessKey,
		},
	}
}
