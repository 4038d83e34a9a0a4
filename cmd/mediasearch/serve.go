// Path: cmd/mediasearch/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"media-search/internal/delivery/rest"
	"media-search/internal/delivery/ui"
	"media-search/internal/events"
	"media-search/internal/logging"
	"media-search/internal/mediaapi"
	"media-search/internal/service"
	"media-search/internal/storage"

	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server with the search pages and the JSON API",
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	// 1. Load Configuration
	cfg, err := loadConfig(c, "")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.Component("main")

	// 2. Setup Context for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 3. Initialize the session store
	var store service.SessionStorage = storage.NewMemorySessionStorage()
	if cfg.Database.URI != "" {
		logger.Info().Str("db", cfg.Database.Name).Msg("connecting to MongoDB")
		client, db, err := storage.Connect(ctx, cfg.Database.URI, cfg.Database.Name)
		if err != nil {
			return fmt.Errorf("connecting to MongoDB: %w", err)
		}
		defer client.Disconnect(context.Background())

		mongoStore := storage.NewMongoSessionStorage(db, cfg.Database.Collection)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("creating indexes: %w", err)
		}
		store = mongoStore
	} else {
		logger.Warn().Msg("no database configured, sessions are kept in memory")
	}

	// 4. Initialize Components
	broker := events.NewBroker()
	apiClient := mediaapi.NewClient(cfg.API)
	manager := service.NewManager(service.ManagerConfig{
		DefaultQuery: defaultQuery(cfg),
		PageSizes:    cfg.Search.PageSizes,
		IdleTTL:      cfg.Server.SessionTTL,
		StoreTTL:     cfg.Server.StoreTTL,
	}, apiClient, store, broker)

	// 5. Start session eviction and purging in the background
	go manager.Run(ctx)

	// 6. Initialize and Start the HTTP Server
	handler := rest.NewRouter(rest.Options{
		Sessions:    manager,
		UI:          ui.NewHandlers(manager, cfg.Search.PageSizes, cfg.API.Timeout).Routes(),
		WaitTimeout: cfg.API.Timeout,
	})
	server := rest.NewServer(cfg.Server.Port, handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("api", cfg.API.BaseURL).Msg("HTTP server starting")
		errCh <- server.Start()
	}()

	// 7. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := server.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stopping HTTP server: %w", err))
	}

	// Closes every session and waits for pending saves.
	manager.Shutdown()

	logger.Info().Msg("server shut down")
	return errors.Join(errs...)
}
