// Command sync runs one sync pass from the terminal, streaming the
// same NDJSON progress events the API serves to stdout.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/books"
	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/shopify"
	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/woo"
	appsync "github.com/storesync/storefront-sync-backend/internal/application/sync"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/logging"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		entity     = flag.String("entity", "products", "Entity stream to sync: products, inventory or orders")
		full       = flag.Bool("full", false, "Ignore the checkpoint and resync everything")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	loggingCfg := cfg.Observability.Logging
	if *verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "sync")

	if !appsync.ValidEntity(*entity) {
		logger.Error("unknown entity", "entity", *entity)
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var target appsync.ProductTarget
	if cfg.Remotes.Woo.Enabled {
		target = woo.NewClient(cfg.Remotes.Woo)
	}

	orchestrator := appsync.NewOrchestrator(
		store,
		shopify.NewClient(cfg.Remotes.Shopify),
		target,
		books.NewClient(cfg.Remotes.Books),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := appsync.NewNDJSONSink(os.Stdout)
	err = orchestrator.Run(ctx, *entity, uuid.NewString(), cfg.Sync.WithDefaults(), appsync.RunOptions{Full: *full}, sink)
	if err != nil {
		// the terminal event already carries the detail
		os.Exit(1)
	}
}
