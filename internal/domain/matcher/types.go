package matcher

import (
	"context"

	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
)

// TargetFinder probes a target system for an existing product carrying
// an identifier. Implementations return "" when nothing matches.
type TargetFinder interface {
	FindProductByIdentifier(ctx context.Context, ident catalog.Identifier) (string, error)
}

// PriceLookup resolves an identifier to a price on a configured price
// list in the accounting system. found is false when either the item or
// the price-list entry is absent.
type PriceLookup interface {
	LookupPrice(ctx context.Context, identifier, priceListID string) (price string, found bool, err error)
}

// CandidateMatch is the outcome of probing one identifier: the
// identifier tried plus the matched target id. Ephemeral; used only to
// decide create-vs-skip.
type CandidateMatch struct {
	Identifier catalog.Identifier
	TargetID   string
}

// Settings is the per-run slice of sync configuration the matcher and
// builder consume.
type Settings struct {
	PriceListID         string
	PriceFallback       string // "shopify", "none", or "skip"
	IncludeImages       bool
	IncludeTags         bool
	IncludeDescriptions bool
	IncludeProductType  bool
}

// Price fallback policies. These mirror the configuration constants;
// redeclared here so the domain package stands alone.
const (
	FallbackShopify = "shopify"
	FallbackNone    = "none"
	FallbackSkip    = "skip"
)

// defaultOptionValue fills variant option slots the source does not
// populate, keeping target option cardinality consistent.
const defaultOptionValue = "Default"
