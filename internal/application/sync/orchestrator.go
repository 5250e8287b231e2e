package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/books"
	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
	"github.com/storesync/storefront-sync-backend/internal/domain/matcher"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/storage"
)

// Orchestrator drives one sync run per entity stream: list changed
// records since the checkpoint, process them in bounded batches, then
// advance the checkpoint only after the whole run settles.
type Orchestrator struct {
	store  storage.Repository
	source Source
	target ProductTarget
	acct   Accounting
	logger *slog.Logger
}

// NewOrchestrator wires an orchestrator. target may be nil when no
// second storefront is configured; product runs then fail fast.
func NewOrchestrator(store storage.Repository, source Source, target ProductTarget, acct Accounting, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		source: source,
		target: target,
		acct:   acct,
		logger: logger,
	}
}

// runState is the mutable per-run bookkeeping shared by the concurrent
// batch workers.
type runState struct {
	mu      sync.Mutex
	maxSeen time.Time

	retries atomic.Int64
}

func (s *runState) observe(t time.Time) {
	if t.IsZero() {
		return
	}
	s.mu.Lock()
	if t.After(s.maxSeen) {
		s.maxSeen = t
	}
	s.mu.Unlock()
}

func (s *runState) countRetries(attempts int) {
	if attempts > 1 {
		s.retries.Add(int64(attempts - 1))
	}
}

// Run executes one sync run for an entity stream, emitting a start
// event, per-batch progress events and exactly one terminal event to
// sink. The checkpoint advances only on a fully settled run; canceled
// and failed runs leave it untouched so the next run replays the same
// window.
func (o *Orchestrator) Run(ctx context.Context, entity, runID string, settings config.SyncSettings, opts RunOptions, sink EventSink) error {
	settings = settings.WithDefaults()
	started := time.Now()
	state := &runState{}

	// the stream opens with exactly one start event, even when the run
	// dies before anything is listed; the total is not known yet and
	// arrives with the first progress event
	sink.Emit(ProgressEvent{Type: EventStart, RunID: runID, Entity: entity})

	var result WorkBatchResult
	var err error
	switch entity {
	case EntityProducts:
		result, err = o.runProducts(ctx, runID, settings, opts, sink, state)
	case EntityInventory:
		result, err = o.runInventory(ctx, runID, settings, opts, sink, state)
	case EntityOrders:
		result, err = o.runOrders(ctx, runID, settings, opts, sink, state)
	default:
		err = fmt.Errorf("unknown sync entity %q", entity)
	}

	event := ProgressEvent{
		RunID:            runID,
		Entity:           entity,
		Total:            result.Total,
		Scanned:          result.Total,
		Processed:        result.Processed,
		Created:          result.Created,
		Skipped:          result.Skipped,
		Failed:           result.Failed,
		Errors:           result.Errors,
		RateLimitRetries: int(state.retries.Load()),
		DurationMs:       time.Since(started).Milliseconds(),
	}

	switch {
	case err == nil:
		if !state.maxSeen.IsZero() {
			total := result.Total
			if saveErr := o.store.SaveCheckpoint(entity, state.maxSeen.UTC().Format(time.RFC3339Nano), &total); saveErr != nil {
				o.logger.Error("failed to save checkpoint", "entity", entity, "error", saveErr)
			}
		}
		event.Type = EventComplete
		sink.Emit(event)
		return nil
	case errors.Is(err, context.Canceled):
		event.Type = EventCanceled
		sink.Emit(event)
		return err
	default:
		event.Type = EventError
		event.Message = err.Error()
		sink.Emit(event)
		return err
	}
}

// sinceFor computes the incremental window start for an entity. The
// lookback widens the window to absorb clock skew between systems;
// re-processing is safe because every worker is idempotent.
func (o *Orchestrator) sinceFor(entity string, settings config.SyncSettings, opts RunOptions) (time.Time, error) {
	if opts.Full {
		return time.Time{}, nil
	}
	cp, err := o.store.GetCheckpoint(entity)
	if err != nil {
		return time.Time{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil || cp.LastPosition == "" {
		return time.Time{}, nil
	}
	pos, err := time.Parse(time.RFC3339Nano, cp.LastPosition)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt checkpoint position %q: %w", cp.LastPosition, err)
	}
	if settings.LookbackMinutes > 0 {
		pos = pos.Add(-time.Duration(settings.LookbackMinutes) * time.Minute)
	}
	return pos, nil
}

// emitScanned reports the source listing size as the first progress
// event of the stream.
func (o *Orchestrator) emitScanned(sink EventSink, runID, entity string, n int) {
	sink.Emit(ProgressEvent{Type: EventProgress, RunID: runID, Entity: entity, Total: n, Scanned: n})
}

func progressEmitter(sink EventSink, runID, entity string) func(WorkBatchResult) error {
	return func(r WorkBatchResult) error {
		sink.Emit(ProgressEvent{
			Type:      EventProgress,
			RunID:     runID,
			Entity:    entity,
			Total:     r.Total,
			Scanned:   r.Total,
			Processed: r.Processed,
			Created:   r.Created,
			Skipped:   r.Skipped,
			Failed:    r.Failed,
		})
		return nil
	}
}

func (o *Orchestrator) runProducts(ctx context.Context, runID string, settings config.SyncSettings, opts RunOptions, sink EventSink, state *runState) (WorkBatchResult, error) {
	if o.target == nil {
		return WorkBatchResult{}, errors.New("product sync requires a second storefront; none is configured")
	}

	since, err := o.sinceFor(EntityProducts, settings, opts)
	if err != nil {
		return WorkBatchResult{}, err
	}
	products, err := o.source.ListProductsUpdatedSince(ctx, since, settings.OnlyActive)
	if err != nil {
		return WorkBatchResult{}, fmt.Errorf("list products: %w", err)
	}
	o.emitScanned(sink, runID, EntityProducts, len(products))

	prices := accountingPriceLookup{acct: o.acct}
	matchSettings := matcher.Settings{
		PriceListID:         settings.PriceListID,
		PriceFallback:       settings.PriceFallback,
		IncludeImages:       settings.IncludeImages,
		IncludeTags:         settings.IncludeTags,
		IncludeDescriptions: settings.IncludeDescriptions,
		IncludeProductType:  settings.IncludeProductType,
	}

	return RunBatches(ctx, products, settings.BatchSize,
		func(p catalog.Product) string { return p.Title },
		func(ctx context.Context, product catalog.Product) (Outcome, error) {
			outcome, err := o.syncProduct(ctx, product, prices, matchSettings, settings.MaxRetries, state)
			if err == nil {
				state.observe(product.UpdatedAt)
			}
			return outcome, err
		},
		progressEmitter(sink, runID, EntityProducts))
}

func (o *Orchestrator) syncProduct(ctx context.Context, product catalog.Product, prices matcher.PriceLookup, matchSettings matcher.Settings, maxRetries int, state *runState) (Outcome, error) {
	existing, err := o.store.GetMappingBySourceID(storage.EntityTypeProduct, product.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		exists, err := o.target.ProductExists(ctx, existing.TargetID)
		if err != nil {
			return 0, err
		}
		if exists {
			return OutcomeSkipped, nil
		}
		// the mapped product was deleted on the target; fall through
		// and recreate, re-pointing the mapping at the new id
		o.logSync(EntityProducts, "shopify->woo", "stale",
			fmt.Sprintf("%q mapped to %s which no longer resolves", product.Title, existing.TargetID))
	}

	match, err := matcher.FindExisting(ctx, o.target, product)
	if err != nil {
		return 0, err
	}
	if match != nil {
		if err := o.store.UpsertMapping(storage.EntityTypeProduct, product.ID, match.TargetID,
			map[string]string{"matched_by": match.Identifier.Kind}); err != nil {
			return 0, err
		}
		o.logSync(EntityProducts, "shopify->woo", "skipped",
			fmt.Sprintf("%q already on target as %s (matched by %s)", product.Title, match.TargetID, match.Identifier.Kind))
		return OutcomeSkipped, nil
	}

	payload, skipped, err := matcher.BuildCreatePayload(ctx, prices, product, matchSettings)
	if err != nil {
		return 0, err
	}
	if skipped {
		o.logSync(EntityProducts, "shopify->woo", "skipped",
			fmt.Sprintf("%q skipped: no sellable variants after price resolution", product.Title))
		return OutcomeSkipped, nil
	}

	targetID, attempts, err := CallWithRetry(ctx, maxRetries, func(ctx context.Context) (string, error) {
		return o.target.CreateProduct(ctx, *payload)
	})
	state.countRetries(attempts)
	if err != nil {
		o.logSync(EntityProducts, "shopify->woo", "failed",
			fmt.Sprintf("create %q: %v", product.Title, err))
		return 0, err
	}

	if err := o.store.UpsertMapping(storage.EntityTypeProduct, product.ID, targetID, nil); err != nil {
		return 0, err
	}
	o.logSync(EntityProducts, "shopify->woo", "created",
		fmt.Sprintf("%q created on target as %s", product.Title, targetID))
	return OutcomeCreated, nil
}

func (o *Orchestrator) runInventory(ctx context.Context, runID string, settings config.SyncSettings, opts RunOptions, sink EventSink, state *runState) (WorkBatchResult, error) {
	since, err := o.sinceFor(EntityInventory, settings, opts)
	if err != nil {
		return WorkBatchResult{}, err
	}

	// The adjustments endpoint is paginated and flaky; every page fetch
	// goes through the retry helper.
	var adjustments []catalog.InventoryAdjustment
	for page := 1; ; page++ {
		type pageResult struct {
			items   []catalog.InventoryAdjustment
			hasMore bool
		}
		result, attempts, err := CallWithRetry(ctx, settings.MaxRetries, func(ctx context.Context) (pageResult, error) {
			items, hasMore, err := o.acct.ListInventoryAdjustments(ctx, since, page)
			return pageResult{items: items, hasMore: hasMore}, err
		})
		state.countRetries(attempts)
		if err != nil {
			return WorkBatchResult{}, fmt.Errorf("list inventory adjustments page %d: %w", page, err)
		}
		adjustments = append(adjustments, result.items...)
		if !result.hasMore {
			break
		}
	}
	o.emitScanned(sink, runID, EntityInventory, len(adjustments))

	return RunBatches(ctx, adjustments, settings.BatchSize,
		func(a catalog.InventoryAdjustment) string { return a.SKU },
		func(ctx context.Context, adj catalog.InventoryAdjustment) (Outcome, error) {
			if adj.SKU == "" || adj.Delta == 0 {
				return OutcomeSkipped, nil
			}
			productID, attempts, err := CallWithRetry(ctx, settings.MaxRetries, func(ctx context.Context) (string, error) {
				return o.source.SearchProductByIdentifier(ctx, catalog.Identifier{Kind: catalog.IdentifierSKU, Value: adj.SKU})
			})
			state.countRetries(attempts)
			if err != nil {
				return 0, err
			}
			if productID == "" {
				o.logSync(EntityInventory, "books->shopify", "skipped",
					fmt.Sprintf("no storefront product carries SKU %s", adj.SKU))
				return OutcomeSkipped, nil
			}
			_, attempts, err = CallWithRetry(ctx, settings.MaxRetries, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, o.source.AdjustInventory(ctx, adj.SKU, adj.Delta)
			})
			state.countRetries(attempts)
			if err != nil {
				o.logSync(EntityInventory, "books->shopify", "failed",
					fmt.Sprintf("adjust %s by %d: %v", adj.SKU, adj.Delta, err))
				return 0, err
			}
			state.observe(adj.AdjustedAt)
			o.logSync(EntityInventory, "books->shopify", "applied",
				fmt.Sprintf("adjusted %s by %d", adj.SKU, adj.Delta))
			return OutcomeCreated, nil
		},
		progressEmitter(sink, runID, EntityInventory))
}

func (o *Orchestrator) runOrders(ctx context.Context, runID string, settings config.SyncSettings, opts RunOptions, sink EventSink, state *runState) (WorkBatchResult, error) {
	since, err := o.sinceFor(EntityOrders, settings, opts)
	if err != nil {
		return WorkBatchResult{}, err
	}
	orders, err := o.source.ListOrdersUpdatedSince(ctx, since)
	if err != nil {
		return WorkBatchResult{}, fmt.Errorf("list orders: %w", err)
	}
	o.emitScanned(sink, runID, EntityOrders, len(orders))

	return RunBatches(ctx, orders, settings.BatchSize,
		func(ord catalog.Order) string { return ord.Number },
		func(ctx context.Context, order catalog.Order) (Outcome, error) {
			outcome, err := o.syncOrder(ctx, order, settings.MaxRetries, state)
			if err == nil {
				state.observe(order.UpdatedAt)
			}
			return outcome, err
		},
		progressEmitter(sink, runID, EntityOrders))
}

func (o *Orchestrator) syncOrder(ctx context.Context, order catalog.Order, maxRetries int, state *runState) (Outcome, error) {
	existing, err := o.store.GetMappingBySourceID(storage.EntityTypeOrder, order.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		exists, err := o.acct.InvoiceExists(ctx, existing.TargetID)
		if err != nil {
			return 0, err
		}
		if exists {
			return OutcomeSkipped, nil
		}
		// the invoice was voided or deleted in the accounting system;
		// fall through and re-invoice, re-pointing the mapping
		o.logSync(EntityOrders, "shopify->books", "stale",
			fmt.Sprintf("invoice %s for order %s no longer resolves", existing.TargetID, order.Number))
	}

	contactID, err := o.acct.FindOrCreateContact(ctx, order.CustomerEmail, order.CustomerName)
	if err != nil {
		return 0, fmt.Errorf("resolve contact for order %s: %w", order.Number, err)
	}

	lines := make([]books.InvoiceLine, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		lines = append(lines, books.InvoiceLine{
			SKU:         line.SKU,
			Description: line.Title,
			Quantity:    line.Quantity,
			UnitPrice:   line.Price,
		})
	}

	type invoiceRef struct{ id, number string }
	ref, attempts, err := CallWithRetry(ctx, maxRetries, func(ctx context.Context) (invoiceRef, error) {
		id, number, err := o.acct.CreateInvoice(ctx, books.InvoiceCreate{
			ContactID: contactID,
			Reference: order.Number,
			Currency:  order.Currency,
			Lines:     lines,
		})
		return invoiceRef{id: id, number: number}, err
	})
	state.countRetries(attempts)
	if err != nil {
		o.logSync(EntityOrders, "shopify->books", "failed",
			fmt.Sprintf("invoice for order %s: %v", order.Number, err))
		return 0, err
	}

	if err := o.store.UpsertMapping(storage.EntityTypeOrder, order.ID, ref.id,
		map[string]string{"invoice_number": ref.number}); err != nil {
		return 0, err
	}
	o.logSync(EntityOrders, "shopify->books", "created",
		fmt.Sprintf("order %s invoiced as %s", order.Number, ref.number))
	return OutcomeCreated, nil
}

// logSync appends an audit record. Failures are logged and swallowed:
// the audit trail never blocks the sync itself.
func (o *Orchestrator) logSync(entity, direction, status, message string) {
	record := &storage.SyncLogRecord{
		Entity:    entity,
		Direction: direction,
		Status:    status,
		Message:   message,
	}
	if err := o.store.AppendSyncLog(record); err != nil {
		o.logger.Warn("failed to append sync log", "entity", entity, "error", err)
	}
}

// accountingPriceLookup adapts the accounting client to the matcher's
// price interface: identifier to item to price-list entry.
type accountingPriceLookup struct {
	acct Accounting
}

func (l accountingPriceLookup) LookupPrice(ctx context.Context, identifier, priceListID string) (string, bool, error) {
	item, err := l.acct.FindItemByIdentifier(ctx, identifier)
	if err != nil {
		return "", false, err
	}
	if item == nil {
		return "", false, nil
	}
	price, ok := item.PriceForList(priceListID)
	return price, ok, nil
}
