// Package sync implements the incremental synchronization engine: the
// orchestrator that drives bulk runs, the retry and batching helpers it
// is built from, the progress event stream, and the background poller.
package sync

import (
	"context"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote/books"
	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
)

// Entity stream names. Each has its own checkpoint and can run
// independently.
const (
	EntityProducts  = "products"
	EntityInventory = "inventory"
	EntityOrders    = "orders"
)

// Entities lists all known entity streams.
var Entities = []string{EntityProducts, EntityInventory, EntityOrders}

// ValidEntity reports whether entity names a known stream.
func ValidEntity(entity string) bool {
	for _, e := range Entities {
		if e == entity {
			return true
		}
	}
	return false
}

// Source is the primary storefront: the system of record for products
// and orders, and the target for stock adjustments.
type Source interface {
	ListProductsUpdatedSince(ctx context.Context, since time.Time, onlyActive bool) ([]catalog.Product, error)
	ListOrdersUpdatedSince(ctx context.Context, since time.Time) ([]catalog.Order, error)
	// SearchProductByIdentifier probes for a product carrying the given
	// identifier, returning "" when nothing matches. Inventory runs use
	// it to drop adjustments for SKUs the storefront does not carry.
	SearchProductByIdentifier(ctx context.Context, ident catalog.Identifier) (string, error)
	AdjustInventory(ctx context.Context, sku string, delta int) error
}

// ProductTarget is the storefront products are copied to. Nil when the
// second storefront is not configured.
type ProductTarget interface {
	FindProductByIdentifier(ctx context.Context, ident catalog.Identifier) (string, error)
	// ProductExists reports whether a previously mapped id still
	// resolves, so a product deleted on the target gets recreated
	// instead of silently skipped forever.
	ProductExists(ctx context.Context, id string) (bool, error)
	CreateProduct(ctx context.Context, payload catalog.ProductCreate) (string, error)
}

// Accounting is the bookkeeping system: price lists, stock movements,
// invoices and contacts.
type Accounting interface {
	FindItemByIdentifier(ctx context.Context, identifier string) (*books.Item, error)
	ListInventoryAdjustments(ctx context.Context, since time.Time, page int) ([]catalog.InventoryAdjustment, bool, error)
	CreateInvoice(ctx context.Context, payload books.InvoiceCreate) (id, number string, err error)
	// InvoiceExists reports whether a previously mapped invoice id
	// still resolves; voided or deleted invoices are re-created.
	InvoiceExists(ctx context.Context, id string) (bool, error)
	FindOrCreateContact(ctx context.Context, email, name string) (string, error)
}

// RunOptions parameterizes one sync run.
type RunOptions struct {
	// Full ignores the stored checkpoint and replays the entire
	// stream from the beginning.
	Full bool
}
