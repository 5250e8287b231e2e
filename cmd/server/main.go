// Command server runs the sync backend: the HTTP API plus the
// background poller that keeps the storefronts and the accounting
// system converged.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/books"
	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/shopify"
	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/woo"
	"github.com/storesync/storefront-sync-backend/internal/api"
	"github.com/storesync/storefront-sync-backend/internal/application/service"
	appsync "github.com/storesync/storefront-sync-backend/internal/application/sync"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/logging"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := logging.NewLogger(cfg.Observability.Logging)

	if cfg.Remotes.Shopify.ShopDomain == "" || cfg.Remotes.Shopify.AccessToken == "" {
		logger.Error("storefront credentials not configured (SHOPIFY_SHOP_DOMAIN / SHOPIFY_ACCESS_TOKEN)")
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	shopifyClient := shopify.NewClient(cfg.Remotes.Shopify)
	booksClient := books.NewClient(cfg.Remotes.Books)

	var target appsync.ProductTarget
	if cfg.Remotes.Woo.Enabled {
		target = woo.NewClient(cfg.Remotes.Woo)
	} else {
		logger.Info("second storefront not configured; product sync disabled")
	}

	orchestrator := appsync.NewOrchestrator(
		store,
		shopifyClient,
		target,
		booksClient,
		logging.NewLoggerWithSystem(cfg.Observability.Logging, "sync"),
	)

	syncService := service.NewSyncService(orchestrator, logger)
	syncService.StartBackgroundCleanup(5 * time.Minute)
	defer syncService.StopBackgroundCleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := func() config.SyncSettings { return cfg.Sync.WithDefaults() }

	poller := appsync.NewPoller(
		settings,
		syncService.RunBlocking,
		logging.NewLoggerWithSystem(cfg.Observability.Logging, "poller"),
	)
	poller.Start(ctx)

	serverCfg := api.DefaultConfig()
	if cfg.Server.Port > 0 {
		serverCfg.Port = cfg.Server.Port
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	server := api.NewServer(serverCfg, store, syncService, settings, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}
